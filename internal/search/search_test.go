package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nbouchiba/allure/internal/plan"
	"github.com/nbouchiba/allure/internal/store"
)

func TestIndexAndSearch(t *testing.T) {
	idx, err := OpenMemOnly()
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	defer idx.Close()

	sessions := []plan.TrainingSession{
		{ID: "s1", Date: time.Now(), Discipline: plan.DisciplineIntervals,
			Sport: "Running", Description: "6x400m on the track"},
		{ID: "s2", Date: time.Now(), Discipline: plan.DisciplineEndurance,
			Sport: "Cycling", Description: "Steady spin", Comment: "legs felt heavy"},
	}
	for i := range sessions {
		if err := idx.IndexSession(&sessions[i]); err != nil {
			t.Fatalf("IndexSession failed: %v", err)
		}
	}

	ids, err := idx.Search("track", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s1" {
		t.Errorf("expected [s1], got %v", ids)
	}

	ids, _ = idx.Search("heavy legs", 10)
	if len(ids) == 0 || ids[0] != "s2" {
		t.Errorf("expected s2 first, got %v", ids)
	}

	if err := idx.Remove("s1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	ids, _ = idx.Search("track", 10)
	if len(ids) != 0 {
		t.Errorf("expected no hits after removal, got %v", ids)
	}
}

func TestRebuildFromStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx, filepath.Join(t.TempDir(), "allure.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	ts := plan.TrainingSession{
		ID: "s1", Date: time.Now(), Discipline: plan.DisciplineLongOuting,
		Sport: "Running", DurationMin: 90, Description: "Long trail outing",
		Intensity: plan.IntensityModerate, Status: plan.StatusPlanned,
		Source: plan.SourceManual,
	}
	if err := s.InsertSession(ctx, &ts); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}

	idx, err := OpenMemOnly()
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	defer idx.Close()

	if err := idx.Rebuild(ctx, s); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	ids, err := idx.Search("trail", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s1" {
		t.Errorf("expected [s1], got %v", ids)
	}
}
