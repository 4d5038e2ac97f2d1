// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with a local
// Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	return NewClientWithConfig(&ClientConfig{
		BaseURL:       baseURL,
		Timeout:       2 * time.Second,
		ReadyTimeout:  200 * time.Millisecond,
		ReadyInterval: 20 * time.Millisecond,
	})
}

// =============================================================================
// CHAT STREAM TESTS
// =============================================================================

func TestChatStream_HappyPath(t *testing.T) {
	var gotReq ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		io.WriteString(w, `{"message":{"content":"Hel"}}`+"\n")
		io.WriteString(w, `{"message":{"content":"lo"}}`+"\n")
		io.WriteString(w, `{"done":true,"prompt_eval_count":10,"eval_count":5}`+"\n")
	}))
	defer server.Close()

	client := testClient(server.URL)
	messages := []ChatMessage{{Role: "user", Content: "hi"}}

	stream, err := client.ChatStream(context.Background(), "test-model", messages, true)
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}
	result, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}

	if result.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", result.Content)
	}
	if result.PromptTokens != 10 || result.EvalTokens != 5 {
		t.Errorf("tokens = %d/%d, want 10/5", result.PromptTokens, result.EvalTokens)
	}

	if !gotReq.Stream {
		t.Error("request should have stream enabled")
	}
	if !gotReq.Think {
		t.Error("request should carry think flag")
	}
	if gotReq.Model != "test-model" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "hi" {
		t.Errorf("request messages = %+v", gotReq.Messages)
	}
}

func TestChatStream_RequestFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"model exploded"}`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.ChatStream(context.Background(), "m", nil, false)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}

	status, ok := IsRequestFailed(err)
	if !ok {
		t.Fatalf("expected request-failed error, got %v", err)
	}
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if err.Error() != "model exploded" {
		t.Errorf("message = %q, want server's error text", err.Error())
	}
}

func TestChatStream_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.ChatStream(context.Background(), "ghost", nil, false)
	if !IsModelNotFound(err) {
		t.Errorf("expected model-not-found, got %v", err)
	}
}

func TestChat_CollectsFullTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"thinking":"let me see"}}`+"\n")
		io.WriteString(w, `{"message":{"content":"42"}}`+"\n")
		io.WriteString(w, `{"done":true,"prompt_eval_count":3,"eval_count":1}`+"\n")
	}))
	defer server.Close()

	client := testClient(server.URL)
	result, err := client.Chat(context.Background(), "m", nil, true)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if result.Content != "42" || result.Thinking != "let me see" {
		t.Errorf("result = %+v", result)
	}
}

// =============================================================================
// MODEL OPERATION TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"models":[{"name":"qwen3:8b","details":{"family":"qwen3"}},{"name":"llama3:8b","details":{"family":"llama"}}]}`)
	}))
	defer server.Close()

	models, err := testClient(server.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].Name != "qwen3:8b" || models[0].Details.Family != "qwen3" {
		t.Errorf("first model = %+v", models[0])
	}
}

func TestListRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ps" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"models":[{"model":"qwen3:8b"}]}`)
	}))
	defer server.Close()

	running, err := testClient(server.URL).ListRunning(context.Background())
	if err != nil {
		t.Fatalf("ListRunning error: %v", err)
	}
	if len(running) != 1 || running[0].Model != "qwen3:8b" {
		t.Errorf("running = %+v", running)
	}
}

func TestShowModel_ContextWindow(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			"architecture prefixed",
			`{"model_info":{"llama.context_length":131072,"llama.vocab_size":32000}}`,
			131072,
		},
		{
			"bare key",
			`{"model_info":{"context_length":8192}}`,
			8192,
		},
		{
			"absent",
			`{"model_info":{"general.parameter_count":7000000000}}`,
			0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/show" {
					t.Errorf("path = %q", r.URL.Path)
				}
				var req ShowRequest
				json.NewDecoder(r.Body).Decode(&req)
				if req.Model != "m" {
					t.Errorf("request model = %q", req.Model)
				}
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			show, err := testClient(server.URL).ShowModel(context.Background(), "m")
			if err != nil {
				t.Fatalf("ShowModel error: %v", err)
			}
			if got := show.ContextWindow(); got != tc.want {
				t.Errorf("ContextWindow() = %d, want %d", got, tc.want)
			}
		})
	}
}

// =============================================================================
// READINESS TESTS
// =============================================================================

func TestWaitReady_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := testClient(server.URL).WaitReady(context.Background()); err != nil {
		t.Errorf("WaitReady error: %v", err)
	}
}

func TestWaitReady_Timeout(t *testing.T) {
	// Nothing listens here.
	client := testClient("http://127.0.0.1:1")

	err := client.WaitReady(context.Background())
	if err != ErrTimeout {
		t.Errorf("WaitReady = %v, want ErrTimeout", err)
	}
}

func TestCheckRunning_NotRunning(t *testing.T) {
	client := testClient("http://127.0.0.1:1")
	if !IsNotRunning(client.CheckRunning(context.Background())) {
		t.Error("expected not-running error")
	}
}
