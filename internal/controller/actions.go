// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"

	"github.com/jeranaias/studychat-tui/internal/backend"
	"github.com/jeranaias/studychat-tui/internal/export"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/stream"
	"github.com/jeranaias/studychat-tui/internal/transcript"
)

var (
	// errStale marks a result dropped because a later action took over.
	errStale = errors.New("superseded by a later action")

	// errStopped marks a stream canceled by the user or a newer action.
	errStopped = errors.New("stream stopped")
)

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// Init makes sure a session exists, loads its history and refreshes the
// directory.
func (c *Controller) Init(ctx context.Context) error {
	token := c.beginView()
	c.setStatus(StatusLoading, true, nil)

	if _, err := c.dir.Refresh(ctx); err != nil {
		return c.fail(err)
	}
	id, err := c.ensureSession(ctx)
	if err != nil {
		return c.fail(err)
	}
	if err := c.loadHistory(ctx, id); err != nil {
		return c.failIfCurrent(token, err)
	}
	if _, err := c.dir.Refresh(ctx); err != nil {
		return c.failIfCurrent(token, err)
	}
	if err := c.followCorrection(ctx, token, id); err != nil {
		return c.failIfCurrent(token, err)
	}
	if c.currentView(token) {
		c.setStatus(StatusReady, false, nil)
	}
	c.log.Info().Str("session", c.dir.ActiveID().String()).Msg("initialized")
	return nil
}

// SwitchSession makes id the active session and loads its history. The
// buffer is emptied immediately so nothing from the previous session can
// be appended after the switch.
func (c *Controller) SwitchSession(ctx context.Context, id model.SessionID) error {
	if id.IsZero() {
		return c.fail(&ValidationError{Field: "session", Message: "No session selected"})
	}

	token := c.beginView()
	c.dir.SetActive(id)
	c.buf.Reset(id)
	c.stopStream()
	c.setStatus(StatusLoading, true, nil)

	// A session deleted elsewhere is corrected by the refresh below.
	if err := c.loadHistory(ctx, id); err != nil && !errors.Is(err, backend.ErrNotFound) {
		return c.failIfCurrent(token, err)
	}
	if _, err := c.dir.Refresh(ctx); err != nil {
		return c.failIfCurrent(token, err)
	}
	if err := c.followCorrection(ctx, token, id); err != nil {
		return c.failIfCurrent(token, err)
	}
	if c.currentView(token) {
		c.setStatus(StatusLoaded, false, nil)
	}
	return nil
}

// CreateSession creates a session on the server and switches to it.
func (c *Controller) CreateSession(ctx context.Context) error {
	c.setStatus(StatusLoading, true, nil)
	id, err := c.backend.CreateSession(ctx, c.cfg.DefaultTitle)
	if err != nil {
		return c.fail(err)
	}

	token := c.beginView()
	c.dir.SetActive(id)
	c.buf.Reset(id)
	c.stopStream()

	if _, err := c.dir.Refresh(ctx); err != nil {
		return c.failIfCurrent(token, err)
	}
	if err := c.loadHistory(ctx, id); err != nil {
		return c.failIfCurrent(token, err)
	}
	if c.currentView(token) {
		c.setStatus(StatusNewChat, false, nil)
	}
	c.log.Info().Str("session", id.String()).Msg("session created")
	return nil
}

// Rename sets the active session's title.
func (c *Controller) Rename(ctx context.Context, title string) error {
	title = normalize(title)
	if title == "" {
		return c.fail(&ValidationError{Field: "title", Message: "Title is empty"})
	}
	id := c.dir.ActiveID()
	if id.IsZero() {
		return c.fail(ErrNoActiveSession)
	}

	if err := c.backend.RenameSession(ctx, id, title); err != nil {
		return c.fail(err)
	}
	if _, err := c.dir.Refresh(ctx); err != nil {
		return c.fail(err)
	}
	c.setStatus(StatusRenamed, false, nil)
	return nil
}

// Delete removes the active session after confirmation, then activates
// another session, creating one if none remain.
func (c *Controller) Delete(ctx context.Context) error {
	id := c.dir.ActiveID()
	if id.IsZero() {
		return c.fail(ErrNoActiveSession)
	}
	s, ok := c.dir.Find(id)
	if !ok {
		s = model.Session{ID: id}
	}
	if !c.confirm(ctx, s) {
		return ErrNotConfirmed
	}

	if err := c.backend.DeleteSession(ctx, id); err != nil {
		return c.fail(err)
	}

	token := c.beginView()
	c.dir.ClearActive()
	c.buf.Reset("")
	c.stopStream()

	if _, err := c.dir.Refresh(ctx); err != nil {
		return c.failIfCurrent(token, err)
	}
	next, err := c.ensureSession(ctx)
	if err != nil {
		return c.failIfCurrent(token, err)
	}
	if err := c.loadHistory(ctx, next); err != nil {
		return c.failIfCurrent(token, err)
	}
	if c.currentView(token) {
		c.setStatus(StatusDeleted, false, nil)
	}
	c.log.Info().Str("deleted", id.String()).Str("active", next.String()).Msg("session deleted")
	return nil
}

// =============================================================================
// MESSAGING
// =============================================================================

// Send posts text to the active session, creating a session if none
// exists, then refreshes the directory so the title and preview update.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = normalize(text)
	if text == "" {
		return c.fail(&ValidationError{Field: "message", Message: "Message is empty"})
	}

	id, err := c.ensureSession(ctx)
	if err != nil {
		return c.fail(err)
	}
	if c.buf.SessionID() != id {
		c.buf.Reset(id)
	}

	c.mu.Lock()
	level, streamOn := c.level, c.cfg.StreamReplies
	c.mu.Unlock()

	c.setStatus(StatusThinking, true, nil)
	if streamOn {
		err = c.sendStreaming(ctx, stream.Request{SessionID: id, Text: text, Level: level})
	} else {
		err = c.sendOnce(ctx, id, text, level)
	}
	return c.finishReply(ctx, id, err)
}

// Regenerate replaces the last assistant reply in the active session.
func (c *Controller) Regenerate(ctx context.Context) error {
	id := c.dir.ActiveID()
	if id.IsZero() {
		return c.fail(ErrNoActiveSession)
	}
	if c.buf.SessionID() != id || !c.buf.HasAssistantReply() {
		return c.fail(ErrNoAssistantReply)
	}

	c.mu.Lock()
	level, streamOn := c.level, c.cfg.StreamReplies
	c.mu.Unlock()

	c.setStatus(StatusRegenerating, true, nil)
	var err error
	if streamOn {
		err = c.sendStreaming(ctx, stream.Request{SessionID: id, Level: level, Regenerate: true})
	} else {
		err = c.regenerateOnce(ctx, id, level)
	}
	return c.finishReply(ctx, id, err)
}

// CancelStream stops the reply currently streaming, keeping what arrived.
func (c *Controller) CancelStream() {
	if c.stopStream() {
		c.setStatus(StatusStopped, false, nil)
	}
}

// sendStreaming runs one stream through the engine.
func (c *Controller) sendStreaming(ctx context.Context, req stream.Request) error {
	sctx, done := c.startStream(ctx)
	res := c.engine.Run(sctx, req)
	stopped := sctx.Err() != nil
	done()

	switch {
	case res.Stale:
		return errStale
	case res.Err == nil:
		return nil
	case stopped:
		return errStopped
	}

	// A regenerate that failed before any content removed the old reply
	// locally only; restore it from the server.
	if req.Regenerate && res.Discarded {
		if err := c.loadHistory(ctx, req.SessionID); err != nil {
			c.log.Warn().Err(err).Msg("failed to restore history after regenerate")
		}
	}
	return res.Err
}

// sendOnce posts text and waits for the full reply.
func (c *Controller) sendOnce(ctx context.Context, id model.SessionID, text string, level model.Level) error {
	c.stopStream()
	err := c.buf.Owned(id, func(tx *transcript.Tx) error {
		tx.AppendUser(text)
		return nil
	})
	if err != nil {
		return errStale
	}

	reply, err := c.backend.SendChat(ctx, id, text, level)
	if err != nil {
		return err
	}
	err = c.buf.Owned(id, func(tx *transcript.Tx) error {
		tx.AppendAssistantFinal(reply.Reply)
		return nil
	})
	if err != nil {
		return errStale
	}
	if reply.SessionTitle != "" {
		c.log.Debug().Str("session", id.String()).Str("title", reply.SessionTitle).Msg("session auto-titled")
	}
	return nil
}

// regenerateOnce asks for a new reply and swaps it in.
func (c *Controller) regenerateOnce(ctx context.Context, id model.SessionID, level model.Level) error {
	c.stopStream()
	reply, err := c.backend.Regenerate(ctx, id, level)
	if err != nil {
		return err
	}
	err = c.buf.Owned(id, func(tx *transcript.Tx) error {
		tx.TrimLastAssistant()
		tx.AppendAssistantFinal(reply.Reply)
		return nil
	})
	if err != nil {
		return errStale
	}
	return nil
}

// finishReply reports the outcome of a send or regenerate and refreshes
// the directory.
func (c *Controller) finishReply(ctx context.Context, id model.SessionID, err error) error {
	switch {
	case errors.Is(err, errStale):
		c.log.Debug().Str("session", id.String()).Msg("reply superseded")
		return nil
	case errors.Is(err, errStopped):
		c.setStatus(StatusStopped, false, nil)
	case err != nil:
		c.fail(err)
		if _, rerr := c.dir.Refresh(ctx); rerr != nil {
			c.log.Warn().Err(rerr).Msg("refresh after failed reply")
		}
		return err
	}

	// History requested before the send was dropped because the buffer
	// changed; fetch it again now that the exchange is stored.
	if !c.buf.Loaded() && c.buf.SessionID() == id && !c.buf.Streaming() {
		if lerr := c.loadHistory(ctx, id); lerr != nil {
			return c.fail(lerr)
		}
	}
	if _, rerr := c.dir.Refresh(ctx); rerr != nil {
		return c.fail(rerr)
	}
	if err == nil {
		c.setStatus(StatusDone, false, nil)
	}
	return nil
}

// =============================================================================
// EXPORT AND CLIPBOARD
// =============================================================================

// ExportPDF downloads the active session as PDF and saves it in the export
// directory. Returns the written path.
func (c *Controller) ExportPDF(ctx context.Context) (string, error) {
	id := c.dir.ActiveID()
	if id.IsZero() {
		return "", c.fail(ErrNoActiveSession)
	}
	s, ok := c.dir.Find(id)
	if !ok {
		s = model.Session{ID: id}
	}

	c.setStatus(StatusExporting, true, nil)
	data, err := c.backend.ExportPDF(ctx, id)
	if err != nil {
		return "", c.fail(err)
	}
	path, err := export.SavePDF(c.cfg.ExportDir, s.DisplayTitle(), data)
	if err != nil {
		return "", c.fail(err)
	}
	c.setStatus("Exported "+path, false, nil)
	return path, nil
}

// ExportTranscript writes the visible transcript locally in format
// (markdown, html, json, yaml or text). Returns the written path.
func (c *Controller) ExportTranscript(format string) (string, error) {
	snap := c.buf.Snapshot()
	if len(snap.Messages) == 0 {
		return "", c.fail(ErrEmptyTranscript)
	}
	s, ok := c.dir.Find(snap.SessionID)
	if !ok {
		s = model.Session{ID: snap.SessionID}
	}

	t := &export.Transcript{Session: s, Messages: snap.Messages, Level: c.Level()}
	opts := export.DefaultOptions()
	opts.OutputDir = c.cfg.ExportDir
	opts.Theme = string(c.ptrs.ThemeMode())

	path, err := export.ExportToFile(t, format, opts)
	if err != nil {
		return "", c.fail(err)
	}
	c.setStatus("Exported "+path, false, nil)
	return path, nil
}

// CopyTranscript copies the transcript as "User: ..." / "Assistant: ..."
// paragraphs to the clipboard.
func (c *Controller) CopyTranscript() error {
	text := c.buf.Text()
	if text == "" {
		return c.fail(ErrEmptyTranscript)
	}
	if err := c.clipboard(text); err != nil {
		return c.fail(err)
	}
	c.setStatus(StatusCopied, false, nil)
	return nil
}

// =============================================================================
// STEP HELPERS
// =============================================================================

// ensureSession returns the active id, creating a session if none is set.
func (c *Controller) ensureSession(ctx context.Context) (model.SessionID, error) {
	if id := c.dir.ActiveID(); !id.IsZero() {
		return id, nil
	}
	id, err := c.backend.CreateSession(ctx, c.cfg.DefaultTitle)
	if err != nil {
		return "", err
	}
	c.dir.SetActive(id)
	c.buf.Load(id, nil)
	if _, err := c.dir.Refresh(ctx); err != nil {
		c.log.Warn().Err(err).Msg("refresh after implicit create")
	}
	c.log.Info().Str("session", id.String()).Msg("session created implicitly")
	return id, nil
}

// loadHistory fetches id's messages and loads them unless the active id,
// a newer load, or a buffer mutation has overtaken the request.
func (c *Controller) loadHistory(ctx context.Context, id model.SessionID) error {
	c.mu.Lock()
	c.load++
	seq := c.load
	c.mu.Unlock()

	if c.buf.SessionID() != id {
		c.buf.Reset(id)
	}
	version := c.buf.Snapshot().Version

	msgs, err := c.backend.GetMessages(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	stale := seq != c.load
	c.mu.Unlock()
	if stale || c.dir.ActiveID() != id {
		c.log.Debug().Str("session", id.String()).Msg("discarding stale history")
		return nil
	}
	if !c.buf.LoadIf(id, version, msgs) {
		c.log.Debug().Str("session", id.String()).Msg("transcript changed during history load")
	}
	return nil
}

// followCorrection loads the session the directory switched to when a
// refresh found the requested one missing.
func (c *Controller) followCorrection(ctx context.Context, token uint64, requested model.SessionID) error {
	active := c.dir.ActiveID()
	if active == requested || !c.currentView(token) {
		return nil
	}
	if active.IsZero() {
		created, err := c.ensureSession(ctx)
		if err != nil {
			return err
		}
		active = created
	}
	c.buf.Reset(active)
	return c.loadHistory(ctx, active)
}

// failIfCurrent reports err unless a later action has taken over the view.
func (c *Controller) failIfCurrent(token uint64, err error) error {
	if !c.currentView(token) {
		c.log.Debug().Err(err).Msg("error from superseded action")
		return nil
	}
	return c.fail(err)
}

// startStream stops any running stream and registers a new one. The
// returned func must be called when the stream ends.
func (c *Controller) startStream(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	st := &activeStream{cancel: cancel, done: make(chan struct{})}

	for {
		c.mu.Lock()
		prev := c.stream
		if prev == nil {
			c.stream = st
			c.mu.Unlock()
			break
		}
		c.stream = nil
		c.mu.Unlock()
		prev.cancel()
		<-prev.done
	}

	return ctx, func() {
		cancel()
		c.mu.Lock()
		if c.stream == st {
			c.stream = nil
		}
		c.mu.Unlock()
		close(st.done)
	}
}

// stopStream cancels the running stream and waits for it to finish.
// Reports whether one was running.
func (c *Controller) stopStream() bool {
	c.mu.Lock()
	st := c.stream
	c.stream = nil
	c.mu.Unlock()
	if st == nil {
		return false
	}
	st.cancel()
	<-st.done
	return true
}
