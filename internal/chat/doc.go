// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the thin coordinator between the protocol client, the
// session store, and the usage tracker. One SendTurn call is one user
// turn: append the user message, stream the model's reply, commit usage
// to both accounting views atomically, append the assistant message.
package chat
