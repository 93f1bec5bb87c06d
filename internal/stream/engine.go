// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/studychat-tui/internal/backend"
	"github.com/jeranaias/studychat-tui/internal/logging"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/transcript"
)

// =============================================================================
// FRAMING
// =============================================================================

// framing matches the "data:" marker at the start of every line, plus one
// optional space or tab.
var framing = regexp.MustCompile(`(?m)^data:[ \t]?`)

// StripFraming removes the per-line "data:" markers from a raw chunk.
func StripFraming(chunk string) string {
	return framing.ReplaceAllString(chunk, "")
}

// =============================================================================
// SOURCES
// =============================================================================

// Source is an open stream of raw chunks. Next returns io.EOF at the end.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Opener starts server-side streams.
type Opener interface {
	OpenChatStream(ctx context.Context, id model.SessionID, text string, level model.Level) (Source, error)
	OpenRegenerateStream(ctx context.Context, id model.SessionID, level model.Level) (Source, error)
}

// clientOpener adapts *backend.Client to Opener.
type clientOpener struct {
	c *backend.Client
}

// BackendOpener returns an Opener backed by the HTTP client.
func BackendOpener(c *backend.Client) Opener {
	return clientOpener{c: c}
}

func (o clientOpener) OpenChatStream(ctx context.Context, id model.SessionID, text string, level model.Level) (Source, error) {
	s, err := o.c.OpenChatStream(ctx, id, text, level)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (o clientOpener) OpenRegenerateStream(ctx context.Context, id model.SessionID, level model.Level) (Source, error) {
	s, err := o.c.OpenRegenerateStream(ctx, id, level)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// REQUEST / RESULT
// =============================================================================

// Request describes one streamed reply.
type Request struct {
	SessionID model.SessionID
	Text      string // ignored when Regenerate is set
	Level     model.Level

	// Regenerate replaces the last assistant reply instead of sending Text.
	Regenerate bool
}

// Stats tracks timing for a stream.
type Stats struct {
	StartTime      time.Time
	FirstChunkTime time.Time
	EndTime        time.Time

	TTFT     time.Duration // time to first chunk
	Duration time.Duration
}

// RecordFirstChunk marks the time of first chunk arrival.
func (s *Stats) RecordFirstChunk() {
	if s.FirstChunkTime.IsZero() {
		s.FirstChunkTime = time.Now()
		s.TTFT = s.FirstChunkTime.Sub(s.StartTime)
	}
}

// finish records the end time.
func (s *Stats) finish() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// Result is the outcome of Run.
type Result struct {
	// Content is the text applied to the buffer.
	Content string
	Chunks  int
	Stats   Stats

	// Stale is set when the handle was invalidated mid-stream; the buffer
	// no longer shows this reply and nothing should be reported.
	Stale bool

	// Discarded is set when the placeholder was removed because no text
	// arrived before the stream failed.
	Discarded bool

	// Err is the transport error or cancellation that ended the stream.
	Err error
}

// Partial reports whether the reply ended early but kept some content.
func (r Result) Partial() bool {
	return r.Err != nil && !r.Discarded && !r.Stale
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine drives streams into one transcript buffer.
type Engine struct {
	buf    *transcript.Buffer
	opener Opener

	// observer is called with each applied delta, in order.
	observer func(delta string)
	log      zerolog.Logger
}

// NewEngine creates an engine for buf.
func NewEngine(buf *transcript.Buffer, opener Opener) *Engine {
	return &Engine{
		buf:    buf,
		opener: opener,
		log:    logging.For("stream"),
	}
}

// OnDelta registers a callback receiving each applied chunk. It runs on
// the goroutine calling Run.
func (e *Engine) OnDelta(fn func(delta string)) {
	e.observer = fn
}

// Run streams one reply into the buffer. It blocks until the stream ends,
// fails, is canceled through ctx, or its handle goes stale.
func (e *Engine) Run(ctx context.Context, req Request) (res Result) {
	res.Stats.StartTime = time.Now()
	defer res.Stats.finish()

	var h transcript.Handle
	err := e.buf.Owned(req.SessionID, func(tx *transcript.Tx) error {
		if req.Regenerate {
			tx.TrimLastAssistant()
		} else {
			tx.AppendUser(req.Text)
		}
		var err error
		h, err = tx.BeginAssistantStream()
		return err
	})
	if err != nil {
		if errors.Is(err, transcript.ErrSessionChanged) {
			res.Stale = true
		}
		res.Err = err
		return res
	}

	var src Source
	if req.Regenerate {
		src, err = e.opener.OpenRegenerateStream(ctx, req.SessionID, req.Level)
	} else {
		src, err = e.opener.OpenChatStream(ctx, req.SessionID, req.Text, req.Level)
	}
	if err != nil {
		e.end(&res, h, err)
		return res
	}
	defer src.Close()

	var content strings.Builder
	for {
		if !e.buf.Live(h) {
			res.Stale = true
			break
		}

		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Content = content.String()
			e.end(&res, h, err)
			return res
		}

		text := StripFraming(chunk)
		res.Stats.RecordFirstChunk()
		if err := e.buf.AppendStreamChunk(h, text); err != nil {
			res.Stale = true
			break
		}
		content.WriteString(text)
		res.Chunks++
		if e.observer != nil && text != "" {
			e.observer(text)
		}
	}

	res.Content = content.String()
	if res.Stale {
		e.log.Debug().Str("session", req.SessionID.String()).Int("chunks", res.Chunks).Msg("stream handle went stale")
		return res
	}
	if err := e.buf.FinalizeStream(h); err != nil {
		res.Stale = true
	}
	return res
}

// end closes the placeholder after a failure: partial content is kept and
// finalized, an empty placeholder is removed. Chunks that carried only
// framing do not count as content.
func (e *Engine) end(res *Result, h transcript.Handle, err error) {
	res.Err = err
	var ferr error
	if res.Content == "" {
		ferr = e.buf.DiscardStream(h)
		res.Discarded = ferr == nil
	} else {
		ferr = e.buf.FinalizeStream(h)
	}
	if ferr != nil {
		res.Stale = true
		return
	}
	e.log.Warn().Err(err).Int("chunks", res.Chunks).Msg("stream ended early")
}
