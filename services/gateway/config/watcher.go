// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/robsotonet/petlovecommunity-core/pkg/logging"
	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
)

// reloadDebounce batches editor save bursts into one reload.
const reloadDebounce = 200 * time.Millisecond

// PolicyWatcher hot-reloads the retry policy file into a PolicyTable.
// A reload that fails to read or parse keeps the previous table; the
// watcher never degrades a running gateway over a bad edit.
type PolicyWatcher struct {
	path    string
	table   *transaction.PolicyTable
	logger  *logging.Logger
	watcher *fsnotify.Watcher
	doneCh  chan struct{}
}

// NewPolicyWatcher watches path and applies valid reloads to table.
// The parent directory is watched rather than the file itself, since
// editors replace files by rename.
func NewPolicyWatcher(path string, table *transaction.PolicyTable, logger *logging.Logger) (*PolicyWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("policy watcher: empty path")
	}
	if table == nil {
		return nil, fmt.Errorf("policy watcher: nil policy table")
	}
	if logger == nil {
		logger = logging.New(logging.Config{Quiet: true})
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &PolicyWatcher{
		path:    path,
		table:   table,
		logger:  logger,
		watcher: fw,
		doneCh:  make(chan struct{}),
	}, nil
}

// Start runs the watch loop until ctx is cancelled or Close is called.
func (w *PolicyWatcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Close stops the watch loop and releases the fsnotify watcher.
func (w *PolicyWatcher) Close() error {
	err := w.watcher.Close()
	<-w.doneCh
	return err
}

func (w *PolicyWatcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("policy watcher error", "error", err.Error())
		}
	}
}

func (w *PolicyWatcher) reload() {
	policies, err := LoadPolicies(w.path)
	if err != nil {
		w.logger.Warn("policy reload rejected, keeping previous table",
			"path", w.path,
			"error", err.Error())
		return
	}
	w.table.Replace(policies)
	w.logger.Info("retry policies reloaded",
		"path", w.path,
		"types", len(policies))
}
