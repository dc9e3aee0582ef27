// Package watcher detects manifest rebuilds. Serve mode uses it to reload
// the lineage map whenever dbt writes a fresh target/manifest.json.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/datablock-dev/dbt-ci/pkg/logging"
)

// ChangeEvent signals that the manifest was rewritten.
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
}

// ManifestWatcher watches a dbt project's target directory for manifest
// changes, debouncing the burst of writes a dbt compile produces.
type ManifestWatcher struct {
	watcher     *fsnotify.Watcher
	projectDir  string
	quietPeriod time.Duration
	events      chan ChangeEvent
}

// NewManifestWatcher creates a watcher for the project's target directory.
func NewManifestWatcher(projectDir string) (*ManifestWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &ManifestWatcher{
		watcher:     w,
		projectDir:  projectDir,
		quietPeriod: 500 * time.Millisecond,
		events:      make(chan ChangeEvent, 10),
	}, nil
}

// Start begins watching. The target directory must exist; dbt creates it
// on first compile.
func (mw *ManifestWatcher) Start(ctx context.Context) error {
	target := filepath.Join(mw.projectDir, "target")
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target directory does not exist: %s", target)
	}
	if err := mw.watcher.Add(target); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	logging.Info("watching for manifest changes", "path", target)
	go mw.run(ctx)
	return nil
}

func (mw *ManifestWatcher) run(ctx context.Context) {
	var pending string
	timer := time.NewTimer(mw.quietPeriod)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			mw.watcher.Close()
			close(mw.events)
			return

		case event, ok := <-mw.watcher.Events:
			if !ok {
				close(mw.events)
				return
			}
			if filepath.Base(event.Name) != "manifest.json" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = event.Name
			timer.Reset(mw.quietPeriod)

		case err, ok := <-mw.watcher.Errors:
			if !ok {
				continue
			}
			logging.Warn("watcher error", "error", err)

		case <-timer.C:
			if pending == "" {
				continue
			}
			mw.events <- ChangeEvent{Path: pending, Timestamp: time.Now()}
			pending = ""
		}
	}
}

// Events returns the channel of debounced manifest changes.
func (mw *ManifestWatcher) Events() <-chan ChangeEvent {
	return mw.events
}
