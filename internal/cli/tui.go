// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/studychat-tui/internal/config"
	"github.com/jeranaias/studychat-tui/internal/logging"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/render"
	"github.com/jeranaias/studychat-tui/internal/ui/chat"
)

// runTUI starts the full-screen chat. Logs move to the configured file
// while the UI owns the terminal.
func runTUI(ctx context.Context, cfg *config.Config) error {
	if err := logging.ConfigureFile(cfg.Logging.Level, false, cfg.Logging.File); err != nil {
		logging.Discard()
	}
	defer logging.Close()
	log := logging.For("tui")

	gate := &chat.ConfirmGate{}
	app, err := newApp(cfg, gate.Confirm)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := chat.New(app.Controller, chat.Options{
		Context:       ctx,
		Gate:          gate,
		ConfirmDelete: cfg.Chat.ConfirmDelete,
		SidebarWidth:  cfg.UI.SidebarWidth,
	})
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	chat.Watch(ctx, app.Controller, p.Send)

	if path, err := configPath(); err == nil {
		r := &reloader{current: cfg}
		err := config.Watch(ctx, path, func(next *config.Config, err error) {
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("config reload failed")
				return
			}
			if msg, ok := r.apply(next); ok {
				p.Send(msg)
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("config watch disabled")
		}
	}

	log.Info().Str("server", cfg.Server.URL).Msg("starting terminal UI")
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}

// =============================================================================
// LIVE RELOAD
// =============================================================================

// reloader turns successive configurations into chat.ReloadMsg values
// carrying only the preferences that changed, so runtime choices such as
// the level survive unrelated edits.
type reloader struct {
	mu      sync.Mutex
	current *config.Config
}

func (r *reloader) apply(next *config.Config) (chat.ReloadMsg, bool) {
	r.mu.Lock()
	prev := r.current
	r.current = next
	r.mu.Unlock()

	config.SetGlobal(next)
	render.SetCodeStyles(next.UI.CodeThemeDark, next.UI.CodeThemeLight)
	logging.SetLevel(next.Logging.Level)

	var msg chat.ReloadMsg
	changed := false
	if next.Chat.DefaultLevel != prev.Chat.DefaultLevel {
		if level, err := model.ParseLevel(next.Chat.DefaultLevel); err == nil {
			msg.Level = level
			changed = true
		}
	}
	if next.Chat.StreamReplies != prev.Chat.StreamReplies {
		on := next.Chat.StreamReplies
		msg.StreamReplies = &on
		changed = true
	}
	if next.UI.Theme != prev.UI.Theme {
		msg.Theme = next.UI.Theme
		changed = true
	}
	if next.UI.CodeThemeDark != prev.UI.CodeThemeDark || next.UI.CodeThemeLight != prev.UI.CodeThemeLight {
		changed = true
	}
	return msg, changed
}
