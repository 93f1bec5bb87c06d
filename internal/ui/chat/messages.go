// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/studychat-tui/internal/controller"
	"github.com/jeranaias/studychat-tui/internal/model"
)

// =============================================================================
// ACTION MESSAGES
// =============================================================================

// actionDoneMsg reports that a controller action returned.
type actionDoneMsg struct {
	action string
	note   string
	err    error
}

// actionFunc is a controller call run off the Update loop. note, when not
// empty, is shown in the status bar.
type actionFunc func(ctx context.Context) (note string, err error)

func actionCmd(ctx context.Context, name string, fn actionFunc) tea.Cmd {
	return func() tea.Msg {
		note, err := fn(ctx)
		return actionDoneMsg{action: name, note: note, err: err}
	}
}

// ReloadMsg carries preferences from a reloaded configuration file. Empty
// fields are left alone.
type ReloadMsg struct {
	Level         model.Level
	StreamReplies *bool
	Theme         string // "dark" or "light"; anything else is ignored
}

// =============================================================================
// CONTROLLER ADAPTERS
// =============================================================================

func initAction(c *controller.Controller) actionFunc {
	return func(ctx context.Context) (string, error) {
		return "", c.Init(ctx)
	}
}

func sendAction(c *controller.Controller, text string) actionFunc {
	return func(ctx context.Context) (string, error) {
		return "", c.Send(ctx, text)
	}
}

func regenerateAction(c *controller.Controller) actionFunc {
	return func(ctx context.Context) (string, error) {
		return "", c.Regenerate(ctx)
	}
}

func switchAction(c *controller.Controller, id model.SessionID) actionFunc {
	return func(ctx context.Context) (string, error) {
		return "", c.SwitchSession(ctx, id)
	}
}

func createAction(c *controller.Controller) actionFunc {
	return func(ctx context.Context) (string, error) {
		return "", c.CreateSession(ctx)
	}
}

func renameAction(c *controller.Controller, title string) actionFunc {
	return func(ctx context.Context) (string, error) {
		return "", c.Rename(ctx, title)
	}
}

func deleteAction(c *controller.Controller) actionFunc {
	return func(ctx context.Context) (string, error) {
		return "", c.Delete(ctx)
	}
}

func cancelAction(c *controller.Controller) actionFunc {
	return func(context.Context) (string, error) {
		c.CancelStream()
		return "", nil
	}
}

func exportPDFAction(c *controller.Controller) actionFunc {
	return func(ctx context.Context) (string, error) {
		path, err := c.ExportPDF(ctx)
		if err != nil {
			return "", err
		}
		return "Exported " + path, nil
	}
}

func exportTextAction(c *controller.Controller, format string) actionFunc {
	return func(context.Context) (string, error) {
		path, err := c.ExportTranscript(format)
		if err != nil {
			return "", err
		}
		return "Saved " + path, nil
	}
}

func copyAction(c *controller.Controller) actionFunc {
	return func(context.Context) (string, error) {
		return "", c.CopyTranscript()
	}
}
