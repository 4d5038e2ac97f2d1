// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store is the single owner of chat session state. It keeps
// sessions most-recently-created first with one active session at a time,
// exposes creation, selection, mutation, search, and recency grouping,
// and persists the full collection after every mutation through a
// pluggable Persister (JSON file or SQLite).
//
// Mutations on unknown session IDs are tolerated as silent no-ops;
// persistence failures are not, and propagate to the caller.
package store
