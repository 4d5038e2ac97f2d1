// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store owns the chat session collection: creation, selection,
// mutation, search, and persistence.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/chatrig/internal/model"
)

// =============================================================================
// STORE
// =============================================================================

// Store is the single owner of all chat sessions for the process
// lifetime. Sessions are kept most-recently-created first, with at most
// one active at a time. Every mutation is followed by a full-collection
// persistence write; persistence failures propagate to the caller since
// they mean loss of durability.
//
// Mutating operations on an ID that does not exist are silent no-ops.
type Store struct {
	mu        sync.Mutex
	persister Persister
	sessions  []*model.ChatSession
	activeID  string
}

// New creates a store backed by the given persister, loading any
// previously persisted sessions. The most recently created session
// becomes active, or none if the store is empty.
func New(p Persister) (*Store, error) {
	sessions, err := p.Load()
	if err != nil {
		return nil, &PersistError{Op: "load", Err: err}
	}

	s := &Store{
		persister: p,
		sessions:  sessions,
	}
	if len(sessions) > 0 {
		s.activeID = sessions[0].ID
	}
	return s, nil
}

// persistLocked writes the full collection. Callers hold s.mu.
func (s *Store) persistLocked() error {
	if err := s.persister.Save(s.sessions); err != nil {
		return &PersistError{Op: "save", Err: err}
	}
	return nil
}

// findLocked returns the session and its index, or nil and -1.
func (s *Store) findLocked(id string) (*model.ChatSession, int) {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return sess, i
		}
	}
	return nil, -1
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Create adds a new empty session bound to the given model, inserts it at
// the front of the collection, and makes it active.
func (s *Store) Create(modelName string) (*model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &model.ChatSession{
		ID:        uuid.New().String(),
		Title:     model.DefaultTitle,
		Model:     modelName,
		CreatedAt: time.Now(),
		Messages:  []model.Message{},
		Usage:     model.Usage{Used: 0, Total: model.DefaultContextWindow},
	}

	s.sessions = append([]*model.ChatSession{sess}, s.sessions...)
	s.activeID = sess.ID

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes a session. If it was active, the most recently created
// remaining session becomes active, or none.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, idx := s.findLocked(id)
	if idx < 0 {
		return nil
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		}
	}

	return s.persistLocked()
}

// =============================================================================
// SELECTION
// =============================================================================

// Active returns the active session, or nil if none.
func (s *Store) Active() *model.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, _ := s.findLocked(s.activeID)
	return sess
}

// SetActive switches the active pointer. No-op if the ID does not exist.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, idx := s.findLocked(id); idx >= 0 {
		s.activeID = id
	}
}

// Get returns a session by ID, or nil.
func (s *Store) Get(id string) *model.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, _ := s.findLocked(id)
	return sess
}

// Sessions returns all sessions in store order (most recently created
// first).
func (s *Store) Sessions() []*model.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.ChatSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// =============================================================================
// MUTATION
// =============================================================================

// Rename sets a session's title. The input is trimmed; a blank result
// reverts to the default title.
func (s *Store) Rename(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, idx := s.findLocked(id)
	if idx < 0 {
		return nil
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultTitle
	}
	sess.Title = title

	return s.persistLocked()
}

// AppendMessage appends to the session's log. This is the sole mutation
// path for conversation content. If this is the session's first message
// and it is a user message, the title is auto-derived from its content.
func (s *Store) AppendMessage(id string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, idx := s.findLocked(id)
	if idx < 0 {
		return nil
	}

	if len(sess.Messages) == 0 && msg.Role == model.RoleUser {
		sess.Title = model.DeriveTitle(msg.Content)
	}
	sess.Messages = append(sess.Messages, msg)

	return s.persistLocked()
}

// UpdateUsage overwrites the session's embedded usage snapshot.
func (s *Store) UpdateUsage(id string, used, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, idx := s.findLocked(id)
	if idx < 0 {
		return nil
	}

	sess.Usage = model.Usage{Used: used, Total: total}
	return s.persistLocked()
}

// UpdateModel rebinds the session to a different model.
func (s *Store) UpdateModel(id, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, idx := s.findLocked(id)
	if idx < 0 {
		return nil
	}

	sess.Model = modelName
	return s.persistLocked()
}

// =============================================================================
// SEARCH
// =============================================================================

// Search returns sessions whose title or any message content contains the
// query, case-insensitively. A blank query returns all sessions in store
// order.
func (s *Store) Search(query string) []*model.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		out := make([]*model.ChatSession, len(s.sessions))
		copy(out, s.sessions)
		return out
	}

	var results []*model.ChatSession
	for _, sess := range s.sessions {
		if strings.Contains(strings.ToLower(sess.Title), query) {
			results = append(results, sess)
			continue
		}
		for _, msg := range sess.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, sess)
				break
			}
		}
	}
	return results
}

// =============================================================================
// RECENCY GROUPING
// =============================================================================

// Groups partitions sessions by creation day relative to "now". Store
// order is preserved within each group.
type Groups struct {
	Today     []*model.ChatSession
	Yesterday []*model.ChatSession
	Older     []*model.ChatSession
}

// GroupByRecency partitions all sessions against the local midnight
// boundaries of now: created at or after today's midnight is Today, at or
// after yesterday's midnight is Yesterday, everything earlier is Older.
func (s *Store) GroupByRecency(now time.Time) Groups {
	s.mu.Lock()
	defer s.mu.Unlock()

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayMidnight := midnight.AddDate(0, 0, -1)

	var groups Groups
	for _, sess := range s.sessions {
		switch {
		case !sess.CreatedAt.Before(midnight):
			groups.Today = append(groups.Today, sess)
		case !sess.CreatedAt.Before(yesterdayMidnight):
			groups.Yesterday = append(groups.Yesterday, sess)
		default:
			groups.Older = append(groups.Older, sess)
		}
	}
	return groups
}
