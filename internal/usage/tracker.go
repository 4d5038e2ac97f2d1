// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package usage tracks per-session context window utilization.
package usage

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/jeranaias/chatrig/internal/model"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the token accounting for one session: tokens consumed
// against the model's context capacity.
type Snapshot struct {
	Used  int
	Total int
}

// Percent returns utilization as a percentage with one decimal place,
// using arithmetic round-half-up on the per-mille ratio.
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return math.Round(float64(s.Used)/float64(s.Total)*1000) / 10
}

// Display renders the snapshot as a human-readable status line, e.g.
// "4.2% · 8.5K / 204.8K context used".
func (s Snapshot) Display() string {
	return fmt.Sprintf("%.1f%% · %s / %s context used",
		s.Percent(), formatTokens(s.Used), formatTokens(s.Total))
}

// formatTokens renders a token count compactly: values of 1000 and above
// become thousands with one decimal and a K suffix.
func formatTokens(n int) string {
	if n >= 1000 {
		k := math.Round(float64(n)/100) / 10
		return strconv.FormatFloat(k, 'f', 1, 64) + "K"
	}
	return strconv.Itoa(n)
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker maintains usage snapshots keyed by session ID. It is a
// process-lifetime index; the store's embedded usage is the durable
// record, and the orchestrator keeps the two in step after every turn.
type Tracker struct {
	mu        sync.Mutex
	snapshots map[string]Snapshot
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{snapshots: make(map[string]Snapshot)}
}

// RecordTurn replaces the session's snapshot with the counts of a
// completed turn: used = promptTokens + evalTokens.
func (t *Tracker) RecordTurn(sessionID string, promptTokens, evalTokens, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots[sessionID] = Snapshot{
		Used:  promptTokens + evalTokens,
		Total: total,
	}
}

// SetCapacity updates the session's context capacity without touching the
// used count, creating a zero-usage snapshot if none exists.
func (t *Tracker) SetCapacity(sessionID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.snapshots[sessionID]
	snap.Total = total
	t.snapshots[sessionID] = snap
}

// Usage returns the session's snapshot, or a zero-usage snapshot against
// the default capacity if none has been recorded.
func (t *Tracker) Usage(sessionID string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.snapshots[sessionID]
	if !ok {
		return Snapshot{Used: 0, Total: model.DefaultContextWindow}
	}
	return snap
}

// Display returns the formatted status line for a session.
func (t *Tracker) Display(sessionID string) string {
	return t.Usage(sessionID).Display()
}

// Reset discards the session's snapshot entirely.
func (t *Tracker) Reset(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.snapshots, sessionID)
}
