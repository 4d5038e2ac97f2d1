// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates one conversation turn end to end: it drives
// the protocol client, appends incremental output to the session store,
// and keeps the usage tracker and the store's embedded usage in step.
package chat

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/chatrig/internal/model"
	"github.com/jeranaias/chatrig/internal/ollama"
	"github.com/jeranaias/chatrig/internal/store"
	"github.com/jeranaias/chatrig/internal/usage"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator composes the protocol client, the session store, and the
// usage tracker. It owns the per-session critical section that keeps the
// tracker snapshot and the store's embedded usage equal after every
// completed turn: a session delete cannot interleave between the two
// writes.
type Orchestrator struct {
	mu      sync.Mutex // guards turn commit vs. delete
	client  *ollama.Client
	store   *store.Store
	tracker *usage.Tracker

	catalogMu sync.Mutex
	catalog   map[string]model.Model // last refreshed models, by name

	think bool // request reasoning from capable models
}

// New creates an orchestrator over the given collaborators. Thinking is
// requested from capable models unless disabled with SetThinking.
func New(client *ollama.Client, st *store.Store, tracker *usage.Tracker) *Orchestrator {
	return &Orchestrator{
		client:  client,
		store:   st,
		tracker: tracker,
		catalog: make(map[string]model.Model),
		think:   true,
	}
}

// SetThinking toggles the reasoning side-channel for models that support
// it. Set once during wiring, before any turns run.
func (o *Orchestrator) SetThinking(enabled bool) {
	o.think = enabled
}

// Store returns the session store for read paths (listing, search).
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// Tracker returns the usage tracker for read paths (status display).
func (o *Orchestrator) Tracker() *usage.Tracker {
	return o.tracker
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// RefreshModels queries the server for available models, marks the ones
// currently loaded, and resolves each context window. The result is
// cached for capacity lookups during turns; descriptors are never
// persisted.
func (o *Orchestrator) RefreshModels(ctx context.Context) ([]model.Model, error) {
	tags, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	loaded := make(map[string]bool)
	if running, err := o.client.ListRunning(ctx); err == nil {
		for _, rm := range running {
			loaded[rm.Model] = true
		}
	}

	models := make([]model.Model, 0, len(tags))
	for _, tag := range tags {
		m := model.Model{
			Name:             tag.Name,
			Loaded:           loaded[tag.Name],
			ContextWindow:    model.DefaultContextWindow,
			SupportsThinking: model.SupportsThinking(tag.Name) || model.SupportsThinking(tag.Details.Family),
		}
		if show, err := o.client.ShowModel(ctx, tag.Name); err == nil {
			if window := show.ContextWindow(); window > 0 {
				m.ContextWindow = window
			}
			if !m.SupportsThinking {
				m.SupportsThinking = model.SupportsThinking(show.Details.Family)
			}
		}
		models = append(models, m)
	}

	o.catalogMu.Lock()
	o.catalog = make(map[string]model.Model, len(models))
	for _, m := range models {
		o.catalog[m.Name] = m
	}
	o.catalogMu.Unlock()

	return models, nil
}

// lookupModel returns the cached descriptor for a model, falling back to
// name-based inference when the catalog has not been refreshed.
func (o *Orchestrator) lookupModel(name string) model.Model {
	o.catalogMu.Lock()
	defer o.catalogMu.Unlock()
	if m, ok := o.catalog[name]; ok {
		return m
	}
	return model.Model{
		Name:             name,
		ContextWindow:    model.DefaultContextWindow,
		SupportsThinking: model.SupportsThinking(name),
	}
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// EnsureActive returns the active session, creating one bound to the
// default model if none is active.
func (o *Orchestrator) EnsureActive() (*model.ChatSession, error) {
	if sess := o.store.Active(); sess != nil {
		return sess, nil
	}
	return o.store.Create(o.client.DefaultModel())
}

// DeleteSession removes a session and its usage snapshot. It takes the
// turn-commit lock so a delete never lands between the tracker update and
// the store update of a finishing turn.
func (o *Orchestrator) DeleteSession(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.store.Delete(id); err != nil {
		return err
	}
	o.tracker.Reset(id)
	return nil
}

// =============================================================================
// TURNS
// =============================================================================

// SendTurn runs one user turn against the active session. The user
// message is appended first; updates stream through onUpdate (which may
// be nil) in server order; on completion one assistant message is
// appended carrying the accumulated content, plus thinking text and its
// duration if any thinking was received.
//
// On transport failure the error is returned as-is: no partial assistant
// message is committed and usage is untouched. The user message remains,
// leaving the conversation consistent.
func (o *Orchestrator) SendTurn(ctx context.Context, text string, onUpdate func(ollama.StreamUpdate)) (*model.Message, error) {
	sess, err := o.EnsureActive()
	if err != nil {
		return nil, err
	}

	if err := o.store.AppendMessage(sess.ID, model.NewUserMessage(text)); err != nil {
		return nil, err
	}

	desc := o.lookupModel(sess.Model)
	history := o.wireHistory(sess.ID)

	stream, err := o.client.ChatStream(ctx, sess.Model, history, o.think && desc.SupportsThinking)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var content, thinking strings.Builder
	var promptTokens, evalTokens int
	var sawDone bool
	thinkingSeconds := 0
	start := time.Now()

	for {
		update, err := stream.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		content.WriteString(update.Content)
		if update.Thinking != "" {
			thinking.WriteString(update.Thinking)
			thinkingSeconds = int(time.Since(start).Seconds())
		}
		if update.Done {
			promptTokens = update.PromptTokens
			evalTokens = update.EvalTokens
			sawDone = true
		}
		if onUpdate != nil {
			onUpdate(update)
		}
	}

	// Commit usage to both views as one step, then the assistant message.
	if sawDone {
		o.mu.Lock()
		o.tracker.RecordTurn(sess.ID, promptTokens, evalTokens, desc.ContextWindow)
		err = o.store.UpdateUsage(sess.ID, promptTokens+evalTokens, desc.ContextWindow)
		o.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	assistant := model.NewAssistantMessage(content.String())
	if thinking.Len() > 0 {
		assistant.Thinking = thinking.String()
		assistant.ThinkingSeconds = thinkingSeconds
	}
	if err := o.store.AppendMessage(sess.ID, assistant); err != nil {
		return nil, err
	}

	return &assistant, nil
}

// wireHistory flattens the session's log into the upstream message list:
// role and content only, in conversation order.
func (o *Orchestrator) wireHistory(sessionID string) []ollama.ChatMessage {
	sess := o.store.Get(sessionID)
	if sess == nil {
		return nil
	}
	history := make([]ollama.ChatMessage, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		history = append(history, ollama.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return history
}
