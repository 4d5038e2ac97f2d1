// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with a local
// Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

// chunkedReader yields its payload in fixed-size chunks so tests can
// split frames at arbitrary byte boundaries, including mid-rune.
type chunkedReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.size
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func decodeAll(t *testing.T, r io.Reader) []string {
	t.Helper()
	dec := NewFrameDecoder(r)
	var records []string
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			return records
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		records = append(records, string(rec))
	}
}

// =============================================================================
// FRAME DECODER TESTS
// =============================================================================

func TestFrameDecoder_SplitInvariant(t *testing.T) {
	// Multi-byte content ensures UTF-8 runes survive chunk boundaries.
	payload := `{"message":{"content":"héllo"}}` + "\n" +
		`{"message":{"content":"wörld"}}` + "\n" +
		`{"done":true,"prompt_eval_count":7,"eval_count":3}` + "\n"

	whole := decodeAll(t, strings.NewReader(payload))

	for size := 1; size <= len(payload); size++ {
		chunked := decodeAll(t, &chunkedReader{data: []byte(payload), size: size})
		if len(chunked) != len(whole) {
			t.Fatalf("chunk size %d: got %d records, want %d", size, len(chunked), len(whole))
		}
		for i := range whole {
			if chunked[i] != whole[i] {
				t.Fatalf("chunk size %d: record %d = %q, want %q", size, i, chunked[i], whole[i])
			}
		}
	}
}

func TestFrameDecoder_SkipsMalformedLines(t *testing.T) {
	payload := `{"message":{"content":"a"}}` + "\n" +
		`this is not json` + "\n" +
		`{"message":{"content":"b"}}` + "\n"

	records := decodeAll(t, strings.NewReader(payload))
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestFrameDecoder_SkipsBlankLines(t *testing.T) {
	payload := "\n\n" + `{"done":true}` + "\n\n   \n" + `{"done":false}` + "\n"

	records := decodeAll(t, strings.NewReader(payload))
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestFrameDecoder_TrailingRecordWithoutNewline(t *testing.T) {
	payload := `{"message":{"content":"a"}}` + "\n" + `{"done":true}`

	records := decodeAll(t, strings.NewReader(payload))
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[1] != `{"done":true}` {
		t.Errorf("final record = %q", records[1])
	}
}

func TestFrameDecoder_Empty(t *testing.T) {
	records := decodeAll(t, strings.NewReader(""))
	if len(records) != 0 {
		t.Errorf("got %d records from empty stream, want 0", len(records))
	}
}

func TestFrameDecoder_OrderPreserved(t *testing.T) {
	var payload strings.Builder
	for i := 0; i < 50; i++ {
		rec, _ := json.Marshal(map[string]int{"seq": i})
		payload.Write(rec)
		payload.WriteByte('\n')
	}

	records := decodeAll(t, &chunkedReader{data: []byte(payload.String()), size: 7})
	if len(records) != 50 {
		t.Fatalf("got %d records, want 50", len(records))
	}
	for i, rec := range records {
		var frame struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal([]byte(rec), &frame); err != nil {
			t.Fatalf("record %d invalid: %v", i, err)
		}
		if frame.Seq != i {
			t.Fatalf("record %d has seq %d", i, frame.Seq)
		}
	}
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestStream_ThreeFrameTurn(t *testing.T) {
	payload := `{"message":{"content":"Hel"}}` + "\n" +
		`{"message":{"content":"lo"}}` + "\n" +
		`{"done":true,"prompt_eval_count":10,"eval_count":5}` + "\n"

	stream := newStream(context.Background(), io.NopCloser(strings.NewReader(payload)))

	var updates []StreamUpdate
	for {
		update, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		updates = append(updates, update)
	}

	if len(updates) != 3 {
		t.Fatalf("got %d updates, want 3", len(updates))
	}
	if updates[0].Content != "Hel" || updates[1].Content != "lo" {
		t.Errorf("content fragments = %q, %q", updates[0].Content, updates[1].Content)
	}
	if !updates[2].Done {
		t.Error("final update should be Done")
	}
	if updates[2].PromptTokens != 10 || updates[2].EvalTokens != 5 {
		t.Errorf("token counts = %d/%d, want 10/5", updates[2].PromptTokens, updates[2].EvalTokens)
	}
}

func TestStream_ThinkingFragments(t *testing.T) {
	payload := `{"message":{"thinking":"hmm "}}` + "\n" +
		`{"message":{"thinking":"okay","content":""}}` + "\n" +
		`{"message":{"content":"answer"}}` + "\n" +
		`{"done":true}` + "\n"

	stream := newStream(context.Background(), io.NopCloser(strings.NewReader(payload)))
	result, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	if result.Thinking != "hmm okay" {
		t.Errorf("Thinking = %q, want 'hmm okay'", result.Thinking)
	}
	if result.Content != "answer" {
		t.Errorf("Content = %q, want 'answer'", result.Content)
	}
}

func TestStream_CollectWithoutDoneFrame(t *testing.T) {
	payload := `{"message":{"content":"partial"}}` + "\n"

	stream := newStream(context.Background(), io.NopCloser(strings.NewReader(payload)))
	result, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	if result.Content != "partial" {
		t.Errorf("Content = %q", result.Content)
	}
	if result.PromptTokens != 0 || result.EvalTokens != 0 {
		t.Errorf("token counts = %d/%d, want 0/0", result.PromptTokens, result.EvalTokens)
	}
}

func TestStream_MalformedFrameMidTurn(t *testing.T) {
	payload := `{"message":{"content":"a"}}` + "\n" +
		`garbage` + "\n" +
		`{"message":{"content":"b"}}` + "\n" +
		`{"done":true,"prompt_eval_count":1,"eval_count":1}` + "\n"

	stream := newStream(context.Background(), io.NopCloser(strings.NewReader(payload)))
	result, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if result.Content != "ab" {
		t.Errorf("Content = %q, want 'ab'", result.Content)
	}
}

// closeTracker records whether the body was closed.
type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestStream_CloseReleasesBody(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader(`{"message":{"content":"x"}}` + "\n")}
	stream := newStream(context.Background(), body)

	if _, err := stream.Next(); err != nil {
		t.Fatalf("Next() error: %v", err)
	}

	// Abandon mid-stream: Close must not error and must be idempotent.
	if err := stream.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if !body.closed {
		t.Error("body was not closed")
	}

	if _, err := stream.Next(); err != io.EOF {
		t.Errorf("Next() after Close = %v, want io.EOF", err)
	}
}

func TestStream_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := &closeTracker{Reader: strings.NewReader(`{"done":true}` + "\n")}
	stream := newStream(ctx, body)

	if _, err := stream.Next(); err != context.Canceled {
		t.Errorf("Next() = %v, want context.Canceled", err)
	}
	if !body.closed {
		t.Error("cancellation should close the body")
	}
}

func TestStream_StopsAfterDone(t *testing.T) {
	payload := `{"done":true,"prompt_eval_count":1,"eval_count":2}` + "\n" +
		`{"message":{"content":"should never arrive"}}` + "\n"

	stream := newStream(context.Background(), io.NopCloser(strings.NewReader(payload)))

	update, err := stream.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if !update.Done {
		t.Fatal("first update should be Done")
	}
	if _, err := stream.Next(); err != io.EOF {
		t.Errorf("Next() after done = %v, want io.EOF", err)
	}
}
