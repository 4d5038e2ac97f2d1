// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package usage maintains per-session token accounting against each
// model's context capacity and formats it for display. Snapshots live
// for the process lifetime only; durable usage is persisted by the
// session store.
package usage
