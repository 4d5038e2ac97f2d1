// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions, messages,
// and model descriptors.
package model

import "strings"

// DefaultContextWindow is the conservative context capacity assumed when
// the server does not report one for a model.
const DefaultContextWindow = 4096

// =============================================================================
// MODEL DESCRIPTOR
// =============================================================================

// Model describes an inference model available on the local server.
// Descriptors are refreshed by querying the server and are not persisted.
type Model struct {
	// Name is the model identifier used in API calls (e.g. "qwen3:8b")
	Name string `json:"name"`

	// Loaded reports whether the model is currently resident in server memory
	Loaded bool `json:"loaded"`

	// ContextWindow is the maximum combined prompt+response token budget
	ContextWindow int `json:"context_window"`

	// SupportsThinking reports whether the model exposes a reasoning
	// side-channel during generation
	SupportsThinking bool `json:"supports_thinking"`
}

// thinkingFamilies lists model family substrings known to expose a
// reasoning side-channel. Matched case-insensitively against the model
// name and reported family.
var thinkingFamilies = []string{
	"deepseek-r1",
	"qwen3",
	"qwq",
	"magistral",
	"gpt-oss",
	"smallthinker",
	"phi4-reasoning",
	"granite3.2",
	"exaone-deep",
}

// SupportsThinking reports whether a model name or family belongs to a
// known reasoning-capable family.
func SupportsThinking(nameOrFamily string) bool {
	s := strings.ToLower(nameOrFamily)
	for _, family := range thinkingFamilies {
		if strings.Contains(s, family) {
			return true
		}
	}
	return false
}
