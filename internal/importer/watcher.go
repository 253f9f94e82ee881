package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/nbouchiba/allure/internal/strava"
)

// Watcher imports activity-export files dropped into a directory. Each
// file is a JSON array of activities in the provider's shape. Files go
// through the same dedup path as the live sync, so dropping the same
// export twice is harmless.
type Watcher struct {
	dir string
	imp *Importer
	log logrus.FieldLogger
}

// NewWatcher creates a Watcher over the given directory.
func NewWatcher(dir string, imp *Importer, log logrus.FieldLogger) *Watcher {
	return &Watcher{dir: dir, imp: imp, log: log}
}

// Run watches the directory until the context is cancelled. Files already
// present at startup are imported first.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read watch dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.importFile(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.importFile(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	if !strings.HasSuffix(path, ".json") {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.log.WithError(err).WithField("file", path).Warn("failed to read export file")
		return
	}

	var activities []strava.Activity
	if err := json.Unmarshal(data, &activities); err != nil {
		w.log.WithError(err).WithField("file", path).Warn("export file is not a valid activity list")
		return
	}

	res, err := w.imp.Import(ctx, activities)
	if err != nil {
		w.log.WithError(err).WithField("file", path).Error("failed to import export file")
		return
	}

	w.log.WithFields(logrus.Fields{
		"file":     filepath.Base(path),
		"inserted": res.Inserted,
		"skipped":  res.Skipped,
	}).Info("export file imported")
}
