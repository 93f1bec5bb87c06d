// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/studychat-tui/internal/backend"
	"github.com/jeranaias/studychat-tui/internal/config"
	"github.com/jeranaias/studychat-tui/internal/controller"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/session"
	"github.com/jeranaias/studychat-tui/internal/storage"
	"github.com/jeranaias/studychat-tui/internal/stream"
	"github.com/jeranaias/studychat-tui/internal/transcript"
	"github.com/jeranaias/studychat-tui/internal/ui/styles"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App holds the wired components shared by the TUI and the line REPL.
type App struct {
	Config     *config.Config
	Client     *backend.Client
	Pointers   *storage.Pointers
	Controller *controller.Controller
	Engine     *stream.Engine

	store storage.Store
}

// newApp builds the client, pointer store and controller from cfg.
// confirm is asked before a session is deleted.
func newApp(cfg *config.Config, confirm controller.Confirmer) (*App, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, &configError{err: err}
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, &configError{err: fmt.Errorf("open pointer store: %w", err)}
	}
	ptrs := storage.NewPointers(store)
	seedTheme(store, ptrs, cfg.UI.Theme)

	app, err := assemble(client, stream.BackendOpener(client), ptrs, cfg, confirm)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	app.Client = client
	app.store = store
	return app, nil
}

// assemble wires the session directory, transcript buffer, stream engine
// and controller around be.
func assemble(be controller.Backend, opener stream.Opener, ptrs *storage.Pointers, cfg *config.Config, confirm controller.Confirmer) (*App, error) {
	buf := transcript.New()
	engine := stream.NewEngine(buf, opener)
	ctrl, err := controller.New(controller.Deps{
		Backend:   be,
		Directory: session.NewDirectory(be, ptrs),
		Buffer:    buf,
		Engine:    engine,
		Pointers:  ptrs,
		Confirm:   confirm,
	}, controllerConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &App{
		Config:     cfg,
		Pointers:   ptrs,
		Controller: ctrl,
		Engine:     engine,
	}, nil
}

// Close releases the pointer store.
func (a *App) Close() error {
	ctrl := a.Controller
	if ctrl != nil {
		ctrl.CancelStream()
	}
	return closeStore(a.store)
}

func closeStore(store storage.Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// =============================================================================
// CONFIG MAPPING
// =============================================================================

func newClient(cfg *config.Config) (*backend.Client, error) {
	return backend.NewClientWithConfig(backendConfig(cfg))
}

func backendConfig(cfg *config.Config) *backend.Config {
	bc := backend.DefaultConfig()
	s := cfg.Server
	if s.URL != "" {
		bc.BaseURL = s.URL
	}
	if s.TimeoutSecs > 0 {
		bc.Timeout = time.Duration(s.TimeoutSecs) * time.Second
	}
	if s.StreamTimeoutSecs > 0 {
		bc.StreamTimeout = time.Duration(s.StreamTimeoutSecs) * time.Second
	}
	if s.MaxRetries >= 0 {
		bc.MaxRetries = s.MaxRetries
	}
	if s.RateLimit != 0 {
		bc.RateLimit = s.RateLimit
	}
	if s.Burst > 0 {
		bc.Burst = s.Burst
	}
	if s.UserAgent != "" {
		bc.UserAgent = s.UserAgent
	}
	return bc
}

func controllerConfig(cfg *config.Config) controller.Config {
	cc := controller.DefaultConfig()
	cc.StreamReplies = cfg.Chat.StreamReplies
	if cfg.Chat.DefaultTitle != "" {
		cc.DefaultTitle = cfg.Chat.DefaultTitle
	}
	if level, err := model.ParseLevel(cfg.Chat.DefaultLevel); err == nil {
		cc.DefaultLevel = level
	}
	if cfg.Chat.ExportDir != "" {
		cc.ExportDir = cfg.Chat.ExportDir
	}
	return cc
}

// seedTheme stores the configured theme the first time the app runs. After
// that the persisted pointer wins, since the user toggles it at runtime.
func seedTheme(store storage.Store, ptrs *storage.Pointers, configured string) {
	if _, ok := store.Get(storage.KeyThemeMode); ok {
		return
	}
	ptrs.SetThemeMode(styles.DetectMode(configured))
}
