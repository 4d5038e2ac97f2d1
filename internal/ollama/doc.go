// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with a local
// Ollama server.
//
// The package has two halves:
//
//   - Client issues requests: model listing (/api/tags, /api/ps,
//     /api/show), readiness polling, and chat turns (/api/chat).
//
//   - FrameDecoder and Stream consume the chat response: the server
//     answers with newline-delimited JSON whose framing can split
//     anywhere across reads, so the decoder buffers to line boundaries,
//     skips blank and malformed records, and yields exactly one
//     StreamUpdate per frame in server order.
//
// Streams are pull-based: the caller drives them with Next and may
// abandon one at any time with Close. Cancellation is client-side
// teardown only; no stop acknowledgment from the server is assumed.
package ollama
