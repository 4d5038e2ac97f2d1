// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions, messages,
// and model descriptors.
package model

import (
	"strings"
	"time"

	"github.com/jeranaias/chatrig/internal/util"
)

// DefaultTitle is the title given to sessions before the first user
// message arrives, and the fallback for blank renames.
const DefaultTitle = "New chat"

// maxTitleRunes is the truncation point for auto-derived titles.
const maxTitleRunes = 40

// =============================================================================
// ROLES
// =============================================================================

// Role identifies the author of a message. Session history only ever
// stores user and assistant turns; system prompts are not persisted.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// =============================================================================
// MESSAGE
// =============================================================================

// Message is a single turn in a conversation. Messages are immutable once
// appended to a session.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Thinking holds the model's exposed reasoning text. Only ever set on
	// assistant messages from reasoning-capable models.
	Thinking string `json:"thinking,omitempty"`

	// ThinkingSeconds is wall-clock seconds from turn start to the last
	// thinking fragment received. Set iff Thinking is non-empty.
	ThinkingSeconds int `json:"thinking_seconds,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a user message stamped with the current time.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantMessage creates an assistant message stamped with the
// current time.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// =============================================================================
// USAGE SNAPSHOT
// =============================================================================

// Usage is the per-session token accounting embedded in a session. The
// usage tracker keeps an equivalent snapshot keyed by session ID; the
// orchestrator keeps both in step.
type Usage struct {
	Used  int `json:"used"`
	Total int `json:"total"`
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// ChatSession is one conversation: an append-only message log plus
// metadata. Sessions are owned by the store and must only be mutated
// through its operations.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
	Usage     Usage     `json:"usage"`
}

// DeriveTitle builds a session title from the first user message: the
// text is flattened to one line and truncated to 40 runes with an
// ellipsis marker if longer.
func DeriveTitle(content string) string {
	title := util.CollapseWhitespace(content)
	if title == "" {
		return DefaultTitle
	}
	return util.TruncateRunes(title, maxTitleRunes)
}

// FirstUserMessage returns the content of the earliest user message, or
// the empty string if none exists.
func (s *ChatSession) FirstUserMessage() string {
	for _, msg := range s.Messages {
		if msg.Role == RoleUser {
			return msg.Content
		}
	}
	return ""
}

// ExportMarkdown renders the session as a Markdown transcript with role
// labels and timestamps.
func (s *ChatSession) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# " + s.Title + "\n\n")
	sb.WriteString("Created: " + s.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range s.Messages {
		role := "**User**"
		if msg.Role == RoleAssistant {
			role = "**Assistant**"
		}
		sb.WriteString(role + " (" + msg.Timestamp.Format("15:04") + "):\n\n")
		if msg.Thinking != "" {
			sb.WriteString("> " + strings.ReplaceAll(msg.Thinking, "\n", "\n> ") + "\n\n")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}
