// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with a local
// Ollama server.
package ollama

import "strings"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage is one entry of the conversation history sent upstream.
// Only role and content travel on the wire; thinking text and timestamps
// stay client-side.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatRequest is the request body for the /api/chat endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`

	// Think enables the model's reasoning side-channel. Only sent when
	// true; models without reasoning support reject an explicit false on
	// some server versions.
	Think bool `json:"think,omitempty"`
}

// ShowRequest is the request body for the /api/show endpoint.
type ShowRequest struct {
	Model string `json:"model"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ModelDetails carries the family information reported by /api/tags and
// /api/show.
type ModelDetails struct {
	Family   string   `json:"family"`
	Families []string `json:"families"`
}

// TagModel is one entry of the /api/tags model list.
type TagModel struct {
	Name    string       `json:"name"`
	Details ModelDetails `json:"details"`
}

// ListModelsResponse is the response from /api/tags.
type ListModelsResponse struct {
	Models []TagModel `json:"models"`
}

// RunningModel is one entry of the /api/ps list of loaded models.
type RunningModel struct {
	Model string `json:"model"`
}

// ListRunningResponse is the response from /api/ps.
type ListRunningResponse struct {
	Models []RunningModel `json:"models"`
}

// ShowResponse is the response from /api/show. ModelInfo is a loose map
// whose keys are prefixed by model architecture (e.g.
// "llama.context_length"), so the context window is extracted by suffix
// match rather than a fixed field.
type ShowResponse struct {
	Details   ModelDetails   `json:"details"`
	ModelInfo map[string]any `json:"model_info"`
}

// ContextWindow returns the context capacity reported under model_info,
// or 0 if the server did not report one.
func (r *ShowResponse) ContextWindow() int {
	for key, value := range r.ModelInfo {
		if key != "context_length" && !strings.HasSuffix(key, ".context_length") {
			continue
		}
		if n, ok := value.(float64); ok && n > 0 {
			return int(n)
		}
	}
	return 0
}

// serverError is the JSON error body Ollama returns on non-2xx statuses.
type serverError struct {
	Error string `json:"error"`
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// chatFrame is one decoded record of the /api/chat NDJSON stream. Every
// field is optional on the wire; absent fields decode to zero values.
type chatFrame struct {
	Message struct {
		Content  string `json:"content"`
		Thinking string `json:"thinking"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// StreamUpdate is the normalized incremental update produced for each
// decoded frame. Exactly one update is produced per frame, in frame
// order. Token counts are only meaningful on the update with Done set.
type StreamUpdate struct {
	// Content is the answer text fragment for this frame (may be empty)
	Content string

	// Thinking is the reasoning text fragment for this frame (may be empty)
	Thinking string

	// Done marks the final frame of the turn
	Done bool

	// PromptTokens and EvalTokens are the turn's token counts, populated
	// only on the Done frame
	PromptTokens int
	EvalTokens   int
}
