// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store owns the chat session collection: creation, selection,
// mutation, search, and persistence.
package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatrig/internal/model"
)

func newSQLitePersister(t *testing.T) *SQLitePersister {
	t.Helper()
	p, err := NewSQLitePersister(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestSQLitePersister_RoundTrip(t *testing.T) {
	p := newSQLitePersister(t)

	// Fresh database is an empty collection.
	sessions, err := p.Load()
	require.NoError(t, err)
	assert.Empty(t, sessions)

	in := []*model.ChatSession{
		{
			ID:        "b",
			Title:     "second",
			Model:     "qwen3:8b",
			CreatedAt: time.Now().Truncate(time.Second),
			Messages:  []model.Message{model.NewUserMessage("hi")},
			Usage:     model.Usage{Used: 15, Total: 40960},
		},
		{
			ID:        "a",
			Title:     "first",
			Model:     "llama3:8b",
			CreatedAt: time.Now().Add(-time.Hour).Truncate(time.Second),
		},
	}
	require.NoError(t, p.Save(in))

	out, err := p.Load()
	require.NoError(t, err)
	require.Len(t, out, 2)

	// Store order survives the round trip.
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	assert.Equal(t, model.Usage{Used: 15, Total: 40960}, out[0].Usage)
	require.Len(t, out[0].Messages, 1)
	assert.Equal(t, "hi", out[0].Messages[0].Content)
}

func TestSQLitePersister_SaveReplacesCollection(t *testing.T) {
	p := newSQLitePersister(t)

	now := time.Now()
	require.NoError(t, p.Save([]*model.ChatSession{
		{ID: "a", CreatedAt: now},
		{ID: "b", CreatedAt: now},
	}))

	// A later save with a subset removes the rest.
	require.NoError(t, p.Save([]*model.ChatSession{{ID: "b", CreatedAt: now}}))

	out, err := p.Load()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}
