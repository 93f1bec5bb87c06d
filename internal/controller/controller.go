// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/studychat-tui/internal/backend"
	"github.com/jeranaias/studychat-tui/internal/export"
	"github.com/jeranaias/studychat-tui/internal/logging"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/session"
	"github.com/jeranaias/studychat-tui/internal/storage"
	"github.com/jeranaias/studychat-tui/internal/stream"
	"github.com/jeranaias/studychat-tui/internal/transcript"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is the subset of the server API the controller calls directly.
// Streaming goes through the stream engine.
type Backend interface {
	session.Lister
	CreateSession(ctx context.Context, title string) (model.SessionID, error)
	GetMessages(ctx context.Context, id model.SessionID) ([]model.Message, error)
	SendChat(ctx context.Context, id model.SessionID, text string, level model.Level) (backend.ChatReply, error)
	Regenerate(ctx context.Context, id model.SessionID, level model.Level) (backend.ChatReply, error)
	RenameSession(ctx context.Context, id model.SessionID, title string) error
	DeleteSession(ctx context.Context, id model.SessionID) error
	ExportPDF(ctx context.Context, id model.SessionID) ([]byte, error)
}

// Confirmer asks the user to approve deleting s.
type Confirmer func(ctx context.Context, s model.Session) bool

// Deps are the collaborators a Controller drives.
type Deps struct {
	Backend   Backend
	Directory *session.Directory
	Buffer    *transcript.Buffer
	Engine    *stream.Engine
	Pointers  *storage.Pointers
	Confirm   Confirmer

	// Clipboard defaults to the system clipboard.
	Clipboard func(text string) error
}

// Config tunes controller behavior.
type Config struct {
	// StreamReplies selects the streaming endpoints for send and regenerate.
	StreamReplies bool

	// DefaultTitle names sessions created implicitly (default: "New Chat").
	DefaultTitle string

	// DefaultLevel is the initial proficiency level (default: beginner).
	DefaultLevel model.Level

	// ExportDir is where PDFs and transcripts are written (default: ".").
	ExportDir string
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		StreamReplies: true,
		DefaultTitle:  "New Chat",
		DefaultLevel:  model.LevelBeginner,
		ExportDir:     ".",
	}
}

// =============================================================================
// STATUS
// =============================================================================

// Status strings shown by the UI.
const (
	StatusLoading      = "Loading..."
	StatusReady        = "Ready"
	StatusLoaded       = "Loaded"
	StatusThinking     = "Thinking..."
	StatusRegenerating = "Regenerating..."
	StatusDone         = "Done"
	StatusStopped      = "Stopped"
	StatusNewChat      = "New chat"
	StatusRenamed      = "Renamed"
	StatusDeleted      = "Deleted"
	StatusCopied       = "Copied"
	StatusExporting    = "Exporting..."
)

// Status is the one-line state shown to the user.
type Status struct {
	Version uint64
	Text    string
	Busy    bool
	Err     error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// activeStream tracks the stream currently writing to the buffer.
type activeStream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller runs user actions. It is safe for concurrent use.
type Controller struct {
	backend   Backend
	dir       *session.Directory
	buf       *transcript.Buffer
	engine    *stream.Engine
	ptrs      *storage.Pointers
	confirm   Confirmer
	clipboard func(string) error
	cfg       Config

	mu     sync.Mutex
	level  model.Level
	status Status

	// view increments whenever the displayed session changes hands; load
	// increments per history request. Both are compared on completion.
	view   uint64
	load   uint64
	stream *activeStream

	onStatus func(Status)
	log      zerolog.Logger
}

// New creates a controller. Missing required collaborators return a
// *MissingResourceError.
func New(deps Deps, cfg Config) (*Controller, error) {
	switch {
	case deps.Backend == nil:
		return nil, &MissingResourceError{Resource: "backend"}
	case deps.Directory == nil:
		return nil, &MissingResourceError{Resource: "session directory"}
	case deps.Buffer == nil:
		return nil, &MissingResourceError{Resource: "transcript buffer"}
	case deps.Engine == nil:
		return nil, &MissingResourceError{Resource: "stream engine"}
	case deps.Confirm == nil:
		return nil, &MissingResourceError{Resource: "delete confirmation"}
	}

	def := DefaultConfig()
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = def.DefaultTitle
	}
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = def.DefaultLevel
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = def.ExportDir
	}
	if deps.Pointers == nil {
		deps.Pointers = storage.NewPointers(nil)
	}
	if deps.Clipboard == nil {
		deps.Clipboard = export.CopyToClipboard
	}

	return &Controller{
		backend:   deps.Backend,
		dir:       deps.Directory,
		buf:       deps.Buffer,
		engine:    deps.Engine,
		ptrs:      deps.Pointers,
		confirm:   deps.Confirm,
		clipboard: deps.Clipboard,
		cfg:       cfg,
		level:     cfg.DefaultLevel,
		log:       logging.For("controller"),
	}, nil
}

// OnStatus registers the status callback, called outside the lock.
func (c *Controller) OnStatus(fn func(Status)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Directory returns the session directory.
func (c *Controller) Directory() *session.Directory {
	return c.dir
}

// Buffer returns the transcript buffer.
func (c *Controller) Buffer() *transcript.Buffer {
	return c.buf
}

// Level returns the proficiency level sent with chat requests.
func (c *Controller) Level() model.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// SetLevel changes the proficiency level for subsequent requests.
func (c *Controller) SetLevel(level model.Level) {
	c.mu.Lock()
	c.level = level
	c.mu.Unlock()
	c.setStatus("Level: "+level.String(), false, nil)
}

// StreamReplies reports whether replies are streamed.
func (c *Controller) StreamReplies() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.StreamReplies
}

// SetStreamReplies switches between streaming and single-response chat.
func (c *Controller) SetStreamReplies(on bool) {
	c.mu.Lock()
	c.cfg.StreamReplies = on
	c.mu.Unlock()
}

// ThemeMode returns the persisted theme.
func (c *Controller) ThemeMode() storage.ThemeMode {
	return c.ptrs.ThemeMode()
}

// ToggleTheme flips and persists the theme.
func (c *Controller) ToggleTheme() storage.ThemeMode {
	mode := c.ptrs.ToggleTheme()
	c.setStatus("Theme: "+string(mode), false, nil)
	return mode
}

// Streaming reports whether a reply is currently streaming.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// setStatus publishes a new status line.
func (c *Controller) setStatus(text string, busy bool, err error) {
	c.mu.Lock()
	c.status = Status{Version: c.status.Version + 1, Text: text, Busy: busy, Err: err}
	st, fn := c.status, c.onStatus
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// fail reports err on the status line and returns it.
func (c *Controller) fail(err error) error {
	c.log.Warn().Err(err).Msg("action failed")
	c.setStatus("Error: "+StatusMessage(err), false, err)
	return err
}

// beginView claims the displayed session for a new action and returns its
// token.
func (c *Controller) beginView() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view++
	return c.view
}

// currentView reports whether no later action has claimed the view.
func (c *Controller) currentView(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view == token
}

// normalize trims and NFC-normalizes user input.
func normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
