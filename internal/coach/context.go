package coach

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	units "github.com/docker/go-units"

	"github.com/nbouchiba/allure/internal/llm"
	"github.com/nbouchiba/allure/internal/plan"
)

const (
	// HistoryLimit caps how many past conversation messages travel with
	// each request, oldest first.
	HistoryLimit = 20
	// RecentCompletedLimit caps the recent-activity digest.
	RecentCompletedLimit = 5
)

const systemPrompt = `You are a personal running and endurance coach. You help the athlete plan,
revise and discuss their training.

When you propose or revise training sessions, include them as a JSON array
inside a fenced code block tagged json. Each record must have these keys:
"date" (YYYY-MM-DD), "type" (session category), "sport", "dureeMinutes"
(number), "description", "intensite". Keep the rest of your reply as plain
conversational text outside the block.`

// BuildMessages assembles the full request payload for the generative
// service: the system context, up to HistoryLimit past messages oldest
// first, and the new user message last.
//
// A nil profile simply omits the athlete summary; it is not an error.
// plannedGenerated carries the current future generated sessions and is
// only included when the caller is adjusting an existing plan.
func BuildMessages(profile *plan.AthleteProfile, history []plan.ConversationMessage, recent []plan.TrainingSession, plannedGenerated []plan.TrainingSession, userMsg string) []llm.ChatMessage {
	var system strings.Builder
	system.WriteString(systemPrompt)

	if summary := profileSummary(profile); summary != "" {
		system.WriteString("\n\nAthlete profile:\n")
		system.WriteString(summary)
	}
	if digest := recentActivityDigest(recent); digest != "" {
		system.WriteString("\n\nRecent completed sessions:\n")
		system.WriteString(digest)
	}
	if planned := plannedPlanJSON(plannedGenerated); planned != "" {
		system.WriteString("\n\nCurrently planned sessions (propose modifications against these):\n")
		system.WriteString(planned)
	}

	messages := []llm.ChatMessage{{Role: llm.RoleSystem, Content: system.String()}}

	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	for _, m := range history {
		role := llm.RoleUser
		if m.Author == plan.AuthorAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: m.Content})
	}

	return append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: userMsg})
}

// profileSummary renders only the fields the athlete actually filled in.
func profileSummary(p *plan.AthleteProfile) string {
	if p == nil {
		return ""
	}

	var lines []string
	if p.GoalType != "" {
		goal := p.GoalType
		if p.GoalDate != nil {
			goal += " on " + p.GoalDate.Format("2006-01-02")
		}
		lines = append(lines, "- Goal: "+goal)
	}
	if p.MaxAerobicSpeedKmh != nil {
		lines = append(lines, fmt.Sprintf("- Max aerobic speed: %.1f km/h", *p.MaxAerobicSpeedKmh))
	}
	if p.MaxHR != nil {
		lines = append(lines, fmt.Sprintf("- Max heart rate: %d bpm", *p.MaxHR))
	}
	if p.RestingHR != nil {
		lines = append(lines, fmt.Sprintf("- Resting heart rate: %d bpm", *p.RestingHR))
	}
	if p.EndurancePaceSecKm != nil {
		lines = append(lines, "- Endurance pace: "+formatPace(*p.EndurancePaceSecKm))
	}
	if p.ThresholdPaceSecKm != nil {
		lines = append(lines, "- Threshold pace: "+formatPace(*p.ThresholdPaceSecKm))
	}
	if p.MASPaceSecKm != nil {
		lines = append(lines, "- Max aerobic speed pace: "+formatPace(*p.MASPaceSecKm))
	}
	if len(p.Sports) > 0 {
		lines = append(lines, "- Sports: "+strings.Join(p.Sports, ", "))
	}
	if p.WeeklyHours != nil {
		lines = append(lines, fmt.Sprintf("- Weekly availability: %.1f hours", *p.WeeklyHours))
	}
	if p.Constraints != "" {
		lines = append(lines, "- Constraints: "+p.Constraints)
	}

	return strings.Join(lines, "\n")
}

func formatPace(secPerKm int) string {
	return fmt.Sprintf("%d:%02d min/km", secPerKm/60, secPerKm%60)
}

// recentActivityDigest renders the most recent completed sessions, newest
// first, with a derived average speed when the metrics allow it.
func recentActivityDigest(recent []plan.TrainingSession) string {
	if len(recent) > RecentCompletedLimit {
		recent = recent[:RecentCompletedLimit]
	}

	var lines []string
	for i := range recent {
		s := &recent[i]
		line := fmt.Sprintf("- %s %s (%s), %s", s.Date.Format("2006-01-02"), s.Sport,
			s.Discipline, units.HumanDuration(time.Duration(s.DurationMin)*time.Minute))
		if s.DistanceKm != nil {
			line += fmt.Sprintf(", %.1f km", *s.DistanceKm)
		}
		if speed, ok := s.AvgSpeedKmh(); ok {
			line += fmt.Sprintf(", avg %.1f km/h", speed)
		}
		if s.AvgHR != nil {
			line += fmt.Sprintf(", avg HR %d", *s.AvgHR)
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// plannedPlanJSON serializes the current future generated sessions with
// enough detail for the service to propose modifications without
// re-deriving state.
func plannedPlanJSON(planned []plan.TrainingSession) string {
	if len(planned) == 0 {
		return ""
	}

	type entry struct {
		Date        string `json:"date"`
		Type        string `json:"type"`
		Sport       string `json:"sport"`
		DurationMin int    `json:"dureeMinutes"`
		Description string `json:"description"`
		Intensity   string `json:"intensite"`
	}

	entries := make([]entry, 0, len(planned))
	for i := range planned {
		s := &planned[i]
		entries = append(entries, entry{
			Date:        s.Date.Format("2006-01-02"),
			Type:        string(s.Discipline),
			Sport:       s.Sport,
			DurationMin: s.DurationMin,
			Description: s.Description,
			Intensity:   string(s.Intensity),
		})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	return string(data)
}
