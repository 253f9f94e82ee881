// Package reconcile replaces previously generated, not-yet-completed
// sessions with a newly proposed batch as one logical operation.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nbouchiba/allure/internal/plan"
)

// Mode selects the reconciliation semantics.
type Mode int

const (
	// NewPlan retires every future generated session across all prior
	// batches before inserting the replacement.
	NewPlan Mode = iota
	// Adjustment restricts the retirement to the current batch, so an
	// unrelated concurrent batch is never wiped.
	Adjustment
)

// Store is the slice of the session store the reconciler needs.
type Store interface {
	PlannedFrom(ctx context.Context, from time.Time) ([]plan.TrainingSession, error)
	ReplaceBatch(ctx context.Context, deleteIDs []string, inserts []plan.TrainingSession) error
}

// Result reports what a reconciliation did.
type Result struct {
	BatchID  string
	Deleted  int
	Inserted int
}

// DefaultPlannedHour is the time-of-day assigned to proposed sessions,
// which carry a calendar date only.
const DefaultPlannedHour = 9

// Reconciler applies proposed batches against the store.
type Reconciler struct {
	store Store
	log   logrus.FieldLogger

	// generatedForDeletion decides which sessions count as machine
	// generated when computing the deletion set. The default also matches
	// sessions carrying a legacy batch association without an explicit
	// generated tag.
	generatedForDeletion func(*plan.TrainingSession) bool
	now                  func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithGeneratedPredicate overrides the deletion-eligibility predicate.
func WithGeneratedPredicate(pred func(*plan.TrainingSession) bool) Option {
	return func(r *Reconciler) { r.generatedForDeletion = pred }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a Reconciler bound to the given store.
func New(store Store, log logrus.FieldLogger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:                store,
		log:                  log,
		generatedForDeletion: DefaultGeneratedPredicate,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultGeneratedPredicate treats a session as machine generated when it
// is tagged as such, or when it carries a batch association left behind by
// older versions that never set the source tag.
func DefaultGeneratedPredicate(s *plan.TrainingSession) bool {
	return s.Source == plan.SourceGenerated || s.BatchID != ""
}

// Apply replaces the relevant generated sessions with the proposed batch.
//
// An empty batchID starts a new batch. An empty proposal is a no-op:
// reconciliation never deletes without a non-empty replacement, so a
// malformed or empty reply can't silently empty a plan. Deletion and
// insertion run in a single store transaction.
func (r *Reconciler) Apply(ctx context.Context, proposed []plan.ProposedSession, batchID string, mode Mode) (Result, error) {
	if len(proposed) == 0 {
		return Result{BatchID: batchID}, nil
	}

	// Adjustment without a current batch has nothing to scope the deletion
	// to; treat it as a fresh plan instead of failing.
	if mode == Adjustment && batchID == "" {
		r.log.Warn("adjustment requested without a batch, falling back to new-plan semantics")
		mode = NewPlan
	}
	if batchID == "" {
		batchID = uuid.NewString()
	}

	startOfToday := r.startOfToday()
	candidates, err := r.store.PlannedFrom(ctx, startOfToday)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load planned sessions: %w", err)
	}

	var deleteIDs []string
	for i := range candidates {
		s := &candidates[i]
		if !r.generatedForDeletion(s) {
			continue
		}
		if mode == Adjustment && s.BatchID != batchID {
			continue
		}
		deleteIDs = append(deleteIDs, s.ID)
	}

	inserts := r.buildSessions(proposed, batchID)
	if len(inserts) == 0 {
		// Every proposed session was dropped during validation. Deleting
		// without a replacement would empty the plan, so keep it as is.
		r.log.WithField("proposed", len(proposed)).Warn("no usable sessions in proposal, leaving plan untouched")
		return Result{BatchID: batchID}, nil
	}

	if err := r.store.ReplaceBatch(ctx, deleteIDs, inserts); err != nil {
		return Result{}, fmt.Errorf("failed to replace batch: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"batch_id": batchID,
		"deleted":  len(deleteIDs),
		"inserted": len(inserts),
	}).Info("plan reconciled")

	return Result{BatchID: batchID, Deleted: len(deleteIDs), Inserted: len(inserts)}, nil
}

func (r *Reconciler) buildSessions(proposed []plan.ProposedSession, batchID string) []plan.TrainingSession {
	var sessions []plan.TrainingSession
	for _, p := range proposed {
		date, err := time.ParseInLocation("2006-01-02", p.Date, time.Local)
		if err != nil {
			r.log.WithField("date", p.Date).Warn("skipping proposed session with unparseable date")
			continue
		}
		date = date.Add(DefaultPlannedHour * time.Hour)

		sessions = append(sessions, plan.TrainingSession{
			ID:          uuid.NewString(),
			Date:        date,
			Discipline:  plan.NormalizeDiscipline(p.Type),
			Sport:       p.Sport,
			DurationMin: int(p.DurationMin),
			Description: p.Description,
			Intensity:   plan.NormalizeIntensity(p.Intensity),
			Status:      plan.StatusPlanned,
			Source:      plan.SourceGenerated,
			BatchID:     batchID,
		})
	}
	return sessions
}

func (r *Reconciler) startOfToday() time.Time {
	now := r.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
