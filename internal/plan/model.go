package plan

import "time"

// Discipline is the training-session category, distinct from the sport.
type Discipline string

const (
	DisciplineEndurance   Discipline = "endurance"
	DisciplineThreshold   Discipline = "threshold"
	DisciplineMAS         Discipline = "mas" // max aerobic speed work
	DisciplineIntervals   Discipline = "intervals"
	DisciplineLongOuting  Discipline = "long_outing"
	DisciplineRecovery    Discipline = "recovery"
	DisciplineStrength    Discipline = "strength"
	DisciplineMobility    Discipline = "mobility"
	DisciplineRest        Discipline = "rest"
	DisciplineCompetition Discipline = "competition"
	DisciplineTest        Discipline = "test"
)

// Intensity is an ordered effort level.
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityIntense  Intensity = "intense"
	IntensityMaximal  Intensity = "maximal"
)

// Rank returns the position of the intensity in the ordering
// light < moderate < intense < maximal. Unknown values rank below light.
func (i Intensity) Rank() int {
	switch i {
	case IntensityLight:
		return 1
	case IntensityModerate:
		return 2
	case IntensityIntense:
		return 3
	case IntensityMaximal:
		return 4
	}
	return 0
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusPostponed Status = "postponed"
)

// Source records how a session entered the store.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceImported  Source = "imported"
	SourceManual    Source = "manual"
)

// TrainingSession is the central record of the store.
//
// BatchID is set only for generated sessions and groups every session
// produced by the same generation cycle. ExternalID is set only for
// imported sessions and carries the provider's activity identifier,
// which the importer uses for deduplication.
type TrainingSession struct {
	ID          string     `json:"id"`
	Date        time.Time  `json:"date"`
	Discipline  Discipline `json:"discipline"`
	Sport       string     `json:"sport"`
	DurationMin int        `json:"duration_min"`
	Description string     `json:"description"`
	Intensity   Intensity  `json:"intensity"`
	Status      Status     `json:"status"`
	Source      Source     `json:"source"`
	BatchID     string     `json:"batch_id,omitempty"`

	// Post-completion metrics, populated only when Status == StatusCompleted.
	DistanceKm *float64 `json:"distance_km,omitempty"`
	AvgHR      *int     `json:"avg_hr,omitempty"`
	Effort     *int     `json:"effort,omitempty"` // perceived effort 1-10
	Comment    string   `json:"comment,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`
}

// AvgSpeedKmh derives the average speed from the completion metrics.
// Returns 0, false when distance or duration is missing.
func (s *TrainingSession) AvgSpeedKmh() (float64, bool) {
	if s.DistanceKm == nil || *s.DistanceKm <= 0 || s.DurationMin <= 0 {
		return 0, false
	}
	return *s.DistanceKm / (float64(s.DurationMin) / 60.0), true
}

// AthleteProfile is the singleton per-user record feeding the context builder.
type AthleteProfile struct {
	GoalType            string     `json:"goal_type,omitempty"`
	GoalDate            *time.Time `json:"goal_date,omitempty"`
	MaxAerobicSpeedKmh  *float64   `json:"mas_kmh,omitempty"`
	MaxHR               *int       `json:"max_hr,omitempty"`
	RestingHR           *int       `json:"resting_hr,omitempty"`
	EndurancePaceSecKm  *int       `json:"endurance_pace_sec_km,omitempty"`
	ThresholdPaceSecKm  *int       `json:"threshold_pace_sec_km,omitempty"`
	MASPaceSecKm        *int       `json:"mas_pace_sec_km,omitempty"`
	Sports              []string   `json:"sports,omitempty"`
	WeeklyHours         *float64   `json:"weekly_hours,omitempty"`
	Constraints         string     `json:"constraints,omitempty"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
}

// MessageAuthor flags who wrote a conversation message.
type MessageAuthor string

const (
	AuthorUser      MessageAuthor = "user"
	AuthorAssistant MessageAuthor = "assistant"
)

// ConversationMessage is one entry of the append-only coaching conversation.
type ConversationMessage struct {
	ID        int64         `json:"id"`
	Author    MessageAuthor `json:"author"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
}

// ProposedSession is the loosely typed shape emitted by the extractor,
// prior to normalization against the enumerations above. Field tags match
// the wire contract the assistant is prompted to produce.
type ProposedSession struct {
	Date        string  `json:"date"` // calendar date, YYYY-MM-DD
	Type        string  `json:"type"`
	Sport       string  `json:"sport"`
	DurationMin float64 `json:"dureeMinutes"`
	Description string  `json:"description"`
	Intensity   string  `json:"intensite"`
}
