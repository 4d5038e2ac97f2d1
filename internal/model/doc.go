// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the core data structures shared across chatrig:
// model descriptors refreshed from the local server, chat sessions with
// their append-only message logs, and per-session usage snapshots.
//
// Sessions and messages are plain serializable values. Mutation rules
// (append-only logs, single active session) are enforced by the store,
// not here.
package model
