// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
)

// maxEventSize bounds a single event block to avoid unbounded growth on a
// body that never sends a blank line.
const maxEventSize = 1024 * 1024

// doneMarker ends a stream early.
const doneMarker = "[DONE]"

// =============================================================================
// CHUNK STREAM
// =============================================================================

// ChunkStream reads event blocks from a streaming response body. Reads are
// sequential; ChunkStream is not safe for concurrent Next calls. Close may
// be called from any goroutine.
type ChunkStream struct {
	op     string
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool

	closeOnce sync.Once
}

func newChunkStream(op string, body io.ReadCloser) *ChunkStream {
	return &ChunkStream{
		op:     op,
		body:   body,
		reader: bufio.NewReaderSize(body, 4096),
	}
}

// NewChunkStream wraps an arbitrary reader. Used by tests and by the plain
// REPL when replaying captured streams.
func NewChunkStream(body io.ReadCloser) *ChunkStream {
	return newChunkStream("stream", body)
}

// Next returns the next event block with "data:" prefixes intact. It
// returns io.EOF at the end of the stream or after a "[DONE]" event.
func (s *ChunkStream) Next(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}

	var (
		data  []string
		size  int
		event string
	)

	for {
		if err := ctx.Err(); err != nil {
			return "", classify(s.op, err)
		}

		line, err := s.reader.ReadString('\n')
		atEOF := errors.Is(err, io.EOF)
		if err != nil && !atEOF {
			if ctx.Err() != nil {
				return "", classify(s.op, ctx.Err())
			}
			return "", &TransportError{Type: ErrTypeNetwork, Op: s.op, Message: "stream interrupted", Cause: err}
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if len(data) > 0 {
				return s.finish(event, data)
			}
			event = ""
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
			// reconnection hints are not used
		default:
			size += len(line)
			if size > maxEventSize {
				return "", &TransportError{Type: ErrTypeDecode, Op: s.op, Message: "stream event too large"}
			}
			data = append(data, line)
		}

		if atEOF {
			s.done = true
			if len(data) == 0 {
				return "", io.EOF
			}
			return s.finish(event, data)
		}
	}
}

// finish turns a completed block into a chunk, io.EOF for "[DONE]", or a
// TransportError for an "error" event.
func (s *ChunkStream) finish(event string, data []string) (string, error) {
	if len(data) == 1 && strings.TrimSpace(payload(data[0])) == doneMarker {
		s.done = true
		return "", io.EOF
	}
	if event == "error" {
		s.done = true
		lines := make([]string, len(data))
		for i, d := range data {
			lines[i] = payload(d)
		}
		msg := strings.TrimSpace(strings.Join(lines, "\n"))
		var body errorResponse
		if json.Unmarshal([]byte(msg), &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return "", &TransportError{Type: ErrTypeServer, Op: s.op, Message: msg}
	}
	return strings.Join(data, "\n"), nil
}

// payload returns a data line without its field name.
func payload(line string) string {
	if !strings.HasPrefix(line, "data:") {
		return line
	}
	return strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
}

// Close releases the response body.
func (s *ChunkStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
