// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store owns the chat session collection: creation, selection,
// mutation, search, and persistence.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/chatrig/internal/model"
	"github.com/jeranaias/chatrig/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

// PersistError wraps a durable-storage failure. Unlike frame-level
// errors, these propagate: a failed write means the durability guarantee
// is gone.
type PersistError struct {
	Op  string // "save" or "load"
	Err error
}

func (e *PersistError) Error() string {
	return "session persistence " + e.Op + " failed: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// =============================================================================
// PERSISTER
// =============================================================================

// Persister serializes the full session collection. The store calls Save
// after every mutation, wholesale; there is no incremental persistence.
type Persister interface {
	Save(sessions []*model.ChatSession) error
	Load() ([]*model.ChatSession, error)
}

// =============================================================================
// FILE PERSISTER
// =============================================================================

// FilePersister stores the collection as one JSON document, written
// atomically on every save.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister writing to path. The parent
// directory is created on first save.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the backing file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Save writes the full collection atomically.
func (p *FilePersister) Save(sessions []*model.ChatSession) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(p.path, data, 0644)
}

// Load reads the collection back, reviving timestamps from their RFC 3339
// form. A missing file is an empty collection, not an error.
func (p *FilePersister) Load() ([]*model.ChatSession, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.ChatSession{}, nil
		}
		return nil, err
	}

	var sessions []*model.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*model.ChatSession{}
	}
	return sessions, nil
}

// Watch reports external modifications of the backing file until ctx is
// cancelled. Writes performed through this persister also trigger the
// callback; callers that only want foreign changes should compare
// content. Used by the shell to pick up changes from another instance.
func (p *FilePersister) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: atomic saves replace the file by rename, which
	// drops a watch placed on the file itself.
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != p.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return nil
}
