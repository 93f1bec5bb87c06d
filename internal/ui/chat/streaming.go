// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/studychat-tui/internal/controller"
	"github.com/jeranaias/studychat-tui/internal/session"
	"github.com/jeranaias/studychat-tui/internal/transcript"
)

// =============================================================================
// FRAME PACING
// =============================================================================

// maxFPS caps how often the view pulls snapshots while work is in flight.
const maxFPS = 30

// frameInterval is the delay between frames (~33ms).
const frameInterval = time.Second / maxFPS

// frameTickMsg asks the model to pull fresh snapshots.
type frameTickMsg time.Time

func frameTickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

// wakeMsg reports that the transcript or session list changed. It restarts
// frames when they have gone idle.
type wakeMsg struct{}

// Watch registers change callbacks on ctrl's transcript buffer and session
// directory and forwards them to send as wake messages until ctx is done.
// Bursts of changes collapse into one pending wake and the callbacks never
// block. Pass (*tea.Program).Send.
func Watch(ctx context.Context, ctrl *controller.Controller, send func(tea.Msg)) {
	wake := make(chan struct{}, 1)
	notify := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
	ctrl.Buffer().OnChange(func(transcript.Snapshot) { notify() })
	ctrl.Directory().OnChange(func(session.Snapshot) { notify() })

	go func() {
		defer ctrl.Buffer().OnChange(nil)
		defer ctrl.Directory().OnChange(nil)
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				send(wakeMsg{})
			}
		}
	}()
}

// frameState is the set of snapshots the view was last drawn from. The
// stream engine writes chunks into the transcript buffer from its own
// goroutine; the view never sees them individually, only the latest
// snapshot at the next frame.
type frameState struct {
	sessions   session.Snapshot
	transcript transcript.Snapshot
	status     controller.Status
}

// pull reads the controller's state. It reports which parts changed.
func (f *frameState) pull(c *controller.Controller) (sessionsChanged, transcriptChanged, statusChanged bool) {
	dir := c.Directory().Snapshot()
	buf := c.Buffer().Snapshot()
	st := c.Status()

	sessionsChanged = dir.Version != f.sessions.Version || dir.ActiveID != f.sessions.ActiveID
	transcriptChanged = buf.Version != f.transcript.Version || buf.SessionID != f.transcript.SessionID
	statusChanged = st.Version != f.status.Version

	f.sessions = dir
	f.transcript = buf
	f.status = st
	return sessionsChanged, transcriptChanged, statusChanged
}

// busy reports whether more frames are needed.
func (f *frameState) busy() bool {
	return f.status.Busy || f.transcript.Streaming()
}
