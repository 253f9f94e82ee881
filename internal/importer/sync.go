package importer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nbouchiba/allure/internal/cache"
	"github.com/nbouchiba/allure/internal/strava"
)

// CursorCacheKey is where the last-synced activity timestamp lives.
const CursorCacheKey = "strava_last_sync"

// Fetcher fetches activities started after the given epoch second.
type Fetcher func(ctx context.Context, after int64, perPage int) ([]strava.Activity, error)

// Syncer pulls new activities from the provider and runs them through the
// importer, keeping a cursor in the cache so repeated runs only fetch what
// changed. A lost or stale cursor is harmless: the importer's dedup makes
// refetching old activities a no-op.
type Syncer struct {
	fetch  Fetcher
	imp    *Importer
	cursor cache.Cache
	log    logrus.FieldLogger
}

// NewSyncer creates a Syncer.
func NewSyncer(fetch Fetcher, imp *Importer, cursor cache.Cache, log logrus.FieldLogger) *Syncer {
	return &Syncer{fetch: fetch, imp: imp, cursor: cursor, log: log}
}

// Sync fetches activities newer than the cursor and imports them.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	var after int64
	if raw, err := s.cursor.Get(ctx, CursorCacheKey); err == nil && raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			after = v
		}
	}

	activities, err := s.fetch(ctx, after, 100)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch activities: %w", err)
	}
	if len(activities) == 0 {
		return Result{}, nil
	}

	res, err := s.imp.Import(ctx, activities)
	if err != nil {
		return res, err
	}

	latest := after
	for _, a := range activities {
		if ts := a.StartDate.Unix(); ts > latest {
			latest = ts
		}
	}
	if err := s.cursor.Set(ctx, CursorCacheKey, strconv.FormatInt(latest, 10)); err != nil {
		s.log.WithError(err).Warn("failed to persist sync cursor")
	}

	return res, nil
}
