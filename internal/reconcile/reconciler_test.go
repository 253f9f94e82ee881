package reconcile

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nbouchiba/allure/internal/plan"
	"github.com/nbouchiba/allure/internal/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, *store.Store) {
	t.Helper()
	s, err := store.New(context.Background(), filepath.Join(t.TempDir(), "allure.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	return New(s, log), s
}

func seedGenerated(t *testing.T, s *store.Store, batchID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		ts := plan.TrainingSession{
			ID:          fmt.Sprintf("%s-%d", batchID, i),
			Date:        time.Now().AddDate(0, 0, i+1),
			Discipline:  plan.DisciplineEndurance,
			Sport:       "Running",
			DurationMin: 45,
			Intensity:   plan.IntensityModerate,
			Status:      plan.StatusPlanned,
			Source:      plan.SourceGenerated,
			BatchID:     batchID,
		}
		if err := s.InsertSession(context.Background(), &ts); err != nil {
			t.Fatalf("failed to seed session: %v", err)
		}
	}
}

func proposeSessions(count int) []plan.ProposedSession {
	var proposed []plan.ProposedSession
	for i := 0; i < count; i++ {
		proposed = append(proposed, plan.ProposedSession{
			Date:        time.Now().AddDate(0, 0, i+1).Format("2006-01-02"),
			Type:        "Endurance",
			Sport:       "Running",
			DurationMin: 45,
			Description: "Easy run",
			Intensity:   "Modéré",
		})
	}
	return proposed
}

func TestApply_NewPlanReplacesAllPriorBatches(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	seedGenerated(t, s, "B1", 14)

	res, err := r.Apply(ctx, proposeSessions(14), "", NewPlan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Deleted != 14 || res.Inserted != 14 {
		t.Errorf("expected 14 deleted / 14 inserted, got %d / %d", res.Deleted, res.Inserted)
	}
	if res.BatchID == "" || res.BatchID == "B1" {
		t.Errorf("expected a fresh batch id, got %q", res.BatchID)
	}

	remaining, _ := s.ListSessions(ctx)
	for _, ts := range remaining {
		if ts.BatchID == "B1" {
			t.Errorf("session %s from prior batch survived a new plan", ts.ID)
		}
		if ts.Status != plan.StatusPlanned || ts.Source != plan.SourceGenerated {
			t.Errorf("unexpected replacement session: %+v", ts)
		}
	}
}

func TestApply_AdjustmentSparesOtherBatches(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	seedGenerated(t, s, "B1", 3)
	seedGenerated(t, s, "B2", 3)

	res, err := r.Apply(ctx, proposeSessions(2), "B1", Adjustment)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.BatchID != "B1" {
		t.Errorf("expected batch B1 to be reused, got %q", res.BatchID)
	}
	if res.Deleted != 3 || res.Inserted != 2 {
		t.Errorf("expected 3 deleted / 2 inserted, got %d / %d", res.Deleted, res.Inserted)
	}

	remaining, _ := s.ListSessions(ctx)
	b2 := 0
	for _, ts := range remaining {
		if ts.BatchID == "B2" {
			b2++
		}
	}
	if b2 != 3 {
		t.Errorf("expected all 3 B2 sessions untouched, got %d", b2)
	}
}

func TestApply_CompletedSessionsAreNeverDeleted(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	done := plan.TrainingSession{
		ID: "done-1", Date: time.Now().AddDate(0, 0, 1),
		Discipline: plan.DisciplineEndurance, Sport: "Running", DurationMin: 45,
		Intensity: plan.IntensityModerate, Status: plan.StatusCompleted,
		Source: plan.SourceGenerated, BatchID: "B1",
	}
	if err := s.InsertSession(ctx, &done); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	if _, err := r.Apply(ctx, proposeSessions(1), "", NewPlan); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if _, err := s.GetSession(ctx, "done-1"); err != nil {
		t.Error("completed session was deleted by reconciliation")
	}
}

func TestApply_PastSessionsAreSpared(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	past := plan.TrainingSession{
		ID: "past-1", Date: time.Now().AddDate(0, 0, -3),
		Discipline: plan.DisciplineEndurance, Sport: "Running", DurationMin: 45,
		Intensity: plan.IntensityModerate, Status: plan.StatusPlanned,
		Source: plan.SourceGenerated, BatchID: "B1",
	}
	if err := s.InsertSession(ctx, &past); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	if _, err := r.Apply(ctx, proposeSessions(1), "", NewPlan); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if _, err := s.GetSession(ctx, "past-1"); err != nil {
		t.Error("past session was deleted by reconciliation")
	}
}

func TestApply_LegacyBatchAssociationCountsAsGenerated(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	// Older versions tagged sessions with a batch but not a source.
	legacy := plan.TrainingSession{
		ID: "legacy-1", Date: time.Now().AddDate(0, 0, 2),
		Discipline: plan.DisciplineEndurance, Sport: "Running", DurationMin: 45,
		Intensity: plan.IntensityModerate, Status: plan.StatusPlanned,
		Source: plan.SourceManual, BatchID: "old-batch",
	}
	if err := s.InsertSession(ctx, &legacy); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	res, err := r.Apply(ctx, proposeSessions(1), "", NewPlan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Deleted != 1 {
		t.Errorf("expected legacy session deleted, got %d deletions", res.Deleted)
	}
}

func TestApply_ManualSessionsAreSpared(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	manual := plan.TrainingSession{
		ID: "manual-1", Date: time.Now().AddDate(0, 0, 2),
		Discipline: plan.DisciplineStrength, Sport: "Strength", DurationMin: 30,
		Intensity: plan.IntensityModerate, Status: plan.StatusPlanned,
		Source: plan.SourceManual,
	}
	if err := s.InsertSession(ctx, &manual); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	if _, err := r.Apply(ctx, proposeSessions(1), "", NewPlan); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if _, err := s.GetSession(ctx, "manual-1"); err != nil {
		t.Error("manual session was deleted by reconciliation")
	}
}

func TestApply_EmptyProposalIsNoOp(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	seedGenerated(t, s, "B1", 5)

	res, err := r.Apply(ctx, nil, "", NewPlan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Deleted != 0 || res.Inserted != 0 {
		t.Errorf("expected no-op, got %+v", res)
	}

	remaining, _ := s.ListSessions(ctx)
	if len(remaining) != 5 {
		t.Errorf("expected existing plan untouched, got %d sessions", len(remaining))
	}
}

func TestApply_AllDatesUnparseableLeavesPlanUntouched(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	seedGenerated(t, s, "B1", 5)

	proposed := []plan.ProposedSession{
		{Date: "June 3rd", Type: "Endurance", Sport: "Running", DurationMin: 45},
		{Date: "tomorrow", Type: "Endurance", Sport: "Running", DurationMin: 45},
	}

	res, err := r.Apply(ctx, proposed, "", NewPlan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Deleted != 0 || res.Inserted != 0 {
		t.Errorf("expected no-op when no proposal survives validation, got %+v", res)
	}

	remaining, _ := s.ListSessions(ctx)
	if len(remaining) != 5 {
		t.Errorf("expected existing plan untouched, got %d sessions", len(remaining))
	}
}

func TestApply_AdjustmentWithoutBatchFallsBackToNewPlan(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	seedGenerated(t, s, "B1", 2)

	res, err := r.Apply(ctx, proposeSessions(2), "", Adjustment)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Deleted != 2 {
		t.Errorf("expected fallback to new-plan deletion, got %d deleted", res.Deleted)
	}
	if res.BatchID == "" || res.BatchID == "B1" {
		t.Errorf("expected fresh batch id, got %q", res.BatchID)
	}
}

func TestApply_NormalizesAndDatesProposals(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()

	proposed := []plan.ProposedSession{
		{Date: "2031-06-03", Type: "Fractionné", Sport: "Running", DurationMin: 40, Intensity: "Maximal"},
		{Date: "not-a-date", Type: "Endurance", Sport: "Running", DurationMin: 45},
	}

	res, err := r.Apply(ctx, proposed, "", NewPlan)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Inserted != 1 {
		t.Fatalf("expected 1 inserted (bad date skipped), got %d", res.Inserted)
	}

	sessions, _ := s.ListSessions(ctx)
	got := sessions[0]
	if got.Discipline != plan.DisciplineIntervals {
		t.Errorf("expected intervals discipline, got %q", got.Discipline)
	}
	if got.Intensity != plan.IntensityMaximal {
		t.Errorf("expected maximal intensity, got %q", got.Intensity)
	}
	if got.Date.Hour() != DefaultPlannedHour {
		t.Errorf("expected %02d:00 default hour, got %d", DefaultPlannedHour, got.Date.Hour())
	}
	if got.Date.Year() != 2031 || got.Date.Month() != 6 || got.Date.Day() != 3 {
		t.Errorf("unexpected date %v", got.Date)
	}
}
