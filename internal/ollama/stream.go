// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with a local
// Ollama server.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
)

// =============================================================================
// FRAME DECODER
// =============================================================================

// FrameDecoder turns an arbitrarily chunked byte stream into a sequence
// of complete JSON records. Records are framed by newlines; a record
// split across reads is reassembled before parsing, so multi-byte UTF-8
// characters straddling a read boundary are never corrupted.
//
// Blank lines are skipped. Lines that fail to parse are skipped too: the
// framing is record-oriented and one corrupt record must not kill the
// session. When the stream ends, a trailing unterminated line is decoded
// as one final record under the same tolerant rule.
type FrameDecoder struct {
	reader *bufio.Reader
	eof    bool
}

// NewFrameDecoder creates a decoder over r.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: bufio.NewReader(r)}
}

// Next returns the next complete JSON record, in input order. It returns
// io.EOF once the underlying stream is exhausted; any other error comes
// from the underlying reader.
func (d *FrameDecoder) Next() (json.RawMessage, error) {
	for {
		if d.eof {
			return nil, io.EOF
		}

		line, err := d.reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			// Last read: whatever remains in the buffer is the final
			// candidate record.
			d.eof = true
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}

		record := make(json.RawMessage, len(line))
		copy(record, line)
		return record, nil
	}
}

// =============================================================================
// CHAT STREAM
// =============================================================================

// Stream is a pull-based sequence of StreamUpdates for one chat turn.
// The caller drives it with Next and may abandon it at any point with
// Close, which tears down the underlying connection.
type Stream struct {
	ctx    context.Context
	body   io.ReadCloser
	dec    *FrameDecoder
	done   bool
	closed bool
}

func newStream(ctx context.Context, body io.ReadCloser) *Stream {
	return &Stream{
		ctx:  ctx,
		body: body,
		dec:  NewFrameDecoder(body),
	}
}

// Next returns the next update, one per decoded frame, preserving server
// order. It returns io.EOF after the final frame or when the underlying
// stream ends. Cancellation of the stream's context is checked at every
// read suspension point.
func (s *Stream) Next() (StreamUpdate, error) {
	if s.done || s.closed {
		return StreamUpdate{}, io.EOF
	}

	select {
	case <-s.ctx.Done():
		s.Close()
		return StreamUpdate{}, s.ctx.Err()
	default:
	}

	for {
		record, err := s.dec.Next()
		if err != nil {
			if err == io.EOF {
				s.Close()
				return StreamUpdate{}, io.EOF
			}
			// Reads aborted by context cancellation surface here as
			// transport errors; report the cancellation instead.
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				s.Close()
				return StreamUpdate{}, ctxErr
			}
			s.Close()
			return StreamUpdate{}, &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
		}

		var frame chatFrame
		if err := json.Unmarshal(record, &frame); err != nil {
			// Valid JSON of an unexpected shape; treat like a malformed frame.
			continue
		}

		update := StreamUpdate{
			Content:  frame.Message.Content,
			Thinking: frame.Message.Thinking,
			Done:     frame.Done,
		}
		if frame.Done {
			update.PromptTokens = frame.PromptEvalCount
			update.EvalTokens = frame.EvalCount
			s.done = true
			s.Close()
		}
		return update, nil
	}
}

// Close releases the stream's resources. It is safe to call at any time
// and more than once; abandoning a stream mid-turn closes the connection
// without error.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// =============================================================================
// COLLECTED RESULT
// =============================================================================

// ChatResult is the fully collected output of one turn, used when
// incremental delivery is not required.
type ChatResult struct {
	Content      string
	Thinking     string
	PromptTokens int
	EvalTokens   int
}

// Collect drains the stream and concatenates every update. Token counts
// are zero if the stream produced no completion frame.
func (s *Stream) Collect() (*ChatResult, error) {
	defer s.Close()

	var result ChatResult
	var content, thinking bytes.Buffer

	for {
		update, err := s.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		content.WriteString(update.Content)
		thinking.WriteString(update.Thinking)
		if update.Done {
			result.PromptTokens = update.PromptTokens
			result.EvalTokens = update.EvalTokens
		}
	}

	result.Content = content.String()
	result.Thinking = thinking.String()
	return &result, nil
}
