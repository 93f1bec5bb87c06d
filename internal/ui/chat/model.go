// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/studychat-tui/internal/controller"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/session"
	"github.com/jeranaias/studychat-tui/internal/storage"
	"github.com/jeranaias/studychat-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// Focus is the pane receiving keys.
type Focus int

const (
	FocusInput   Focus = iota // Typing a message
	FocusSidebar              // Browsing sessions
)

// Mode is the modal prompt currently open, if any.
type Mode int

const (
	ModeNormal        Mode = iota
	ModeSearch             // Filtering the session list
	ModeRename             // Editing the active session's title
	ModeConfirmDelete      // Waiting for y/n
)

// Options configures a Model.
type Options struct {
	// Context bounds every action. Quitting cancels it.
	Context context.Context

	// Gate must be the confirmer the controller was built with.
	Gate *ConfirmGate

	// ConfirmDelete asks y/n before deleting (default true via New callers).
	ConfirmDelete bool

	// SidebarWidth is the session list width in cells.
	SidebarWidth int

	// ExportFormat is the transcript format saved by C-s (default markdown).
	ExportFormat string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the study chat.
type Model struct {
	ctrl      *controller.Controller
	gate      *ConfirmGate
	opts      Options
	ctx       context.Context
	cancelMgr *cancelManager
	theme     *styles.Theme
	keys      KeyMap
	cache     *renderCache

	// Dimensions
	width  int
	height int
	ready  bool

	// Widgets
	input    textinput.Model
	prompt   textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	// State
	focus    Focus
	mode     Mode
	frame    frameState
	filtered []model.Session
	cursor   int
	query    string
	notice   string
	noticeAt uint64
	pending  int
	ticking  bool
	showHelp bool
	quitting bool
}

// New creates the chat model. ctrl must have been constructed with
// opts.Gate.Confirm as its delete confirmer when opts.Gate is set.
func New(ctrl *controller.Controller, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.SidebarWidth <= 0 {
		opts.SidebarWidth = 30
	}
	if opts.ExportFormat == "" {
		opts.ExportFormat = "markdown"
	}
	if opts.Gate == nil {
		opts.Gate = &ConfirmGate{}
	}

	ctx, cancel := context.WithCancel(opts.Context)
	cm := newCancelManager()
	cm.setCancelFunc(cancel)

	theme := styles.NewTheme(ctrl.ThemeMode())

	input := textinput.New()
	input.Placeholder = "Ask a study question..."
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	prompt := textinput.New()
	prompt.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = styles.LineSpinner

	m := Model{
		ctrl:      ctrl,
		gate:      opts.Gate,
		opts:      opts,
		ctx:       ctx,
		cancelMgr: cm,
		keys:      DefaultKeyMap(),
		cache:     newRenderCache(),
		input:     input,
		prompt:    prompt,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
		help:      help.New(),
		// Init's load action and frame tick are always in flight first.
		pending:   1,
		ticking:   true,
	}
	m.applyTheme(theme)
	return m
}

// Init loads the session list and the restored session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		actionCmd(m.ctx, "init", initAction(m.ctrl)),
		frameTickCmd(),
		m.spinner.Tick,
	)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refreshViewport(true)
		return m, nil

	case frameTickMsg:
		m.ticking = false
		m.syncFrame()
		if m.frame.busy() || m.pending > 0 {
			return m, m.startFrames()
		}
		return m, nil

	case wakeMsg:
		return m, m.startFrames()

	case actionDoneMsg:
		return m.handleActionDone(msg)

	case ReloadMsg:
		return m.handleReload(msg)

	case spinner.TickMsg:
		if !m.frame.busy() && m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if m.pending > 0 {
		m.pending--
	}
	m.syncFrame()

	switch {
	case errors.Is(msg.err, controller.ErrNotConfirmed):
		m.setNotice("Delete canceled")
	case msg.err != nil:
		log.Debug().Str("action", msg.action).Err(msg.err).Msg("action failed")
		if m.frame.status.Err == nil {
			m.setNotice("Error: " + controller.StatusMessage(msg.err))
		}
	case msg.note != "":
		m.setNotice(msg.note)
	}

	if m.frame.busy() || m.pending > 0 {
		return m, m.startFrames()
	}
	return m, nil
}

func (m Model) handleReload(msg ReloadMsg) (tea.Model, tea.Cmd) {
	if msg.Level != "" && msg.Level != m.ctrl.Level() {
		m.ctrl.SetLevel(msg.Level)
	}
	if msg.StreamReplies != nil {
		m.ctrl.SetStreamReplies(*msg.StreamReplies)
	}
	switch mode := storage.ThemeMode(msg.Theme); mode {
	case storage.ThemeDark, storage.ThemeLight:
		if mode != m.ctrl.ThemeMode() {
			m.applyTheme(styles.NewTheme(m.ctrl.ToggleTheme()))
		}
	}
	m.syncFrame()
	m.cache.Reset()
	m.refreshViewport(true)
	m.setNotice("Settings reloaded")
	return m, nil
}

// run dispatches a controller action and keeps frames flowing until it
// returns.
func (m *Model) run(name string, fn actionFunc) tea.Cmd {
	m.pending++
	return tea.Batch(actionCmd(m.ctx, name, fn), m.startFrames(), m.spinner.Tick)
}

func (m *Model) startFrames() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return frameTickCmd()
}

// syncFrame pulls controller state and redraws what changed.
func (m *Model) syncFrame() {
	sessionsChanged, transcriptChanged, statusChanged := m.frame.pull(m.ctrl)
	if sessionsChanged {
		m.refreshSessions()
	}
	if statusChanged && m.frame.status.Version != m.noticeAt {
		m.notice = ""
	}
	if transcriptChanged {
		m.refreshViewport(true)
	}
}

func (m *Model) setNotice(text string) {
	m.notice = text
	m.noticeAt = m.frame.status.Version
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}

	switch m.mode {
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeRename:
		return m.handleRenameKey(msg)
	case ModeConfirmDelete:
		return m.handleConfirmKey(msg)
	}

	if m.focus == FocusSidebar {
		if mm, cmd, ok := m.handleSidebarKey(msg); ok {
			return mm, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if m.frame.transcript.Streaming() || m.ctrl.Streaming() {
			return m, m.run("cancel", cancelAction(m.ctrl))
		}
		if m.showHelp {
			m.showHelp = false
			m.layout()
		}
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		m.toggleFocus()
		return m, nil

	case msg.String() == "ctrl+f":
		return m.enterSearch()

	case key.Matches(msg, m.keys.Regenerate):
		return m, m.run("regenerate", regenerateAction(m.ctrl))

	case key.Matches(msg, m.keys.NewSession):
		return m, m.run("create", createAction(m.ctrl))

	case key.Matches(msg, m.keys.Rename):
		return m.enterRename()

	case key.Matches(msg, m.keys.Delete):
		if m.frame.sessions.ActiveID.IsZero() {
			m.setNotice("No active session")
			return m, nil
		}
		if m.opts.ConfirmDelete {
			m.mode = ModeConfirmDelete
			m.input.Blur()
			return m, nil
		}
		m.gate.Arm()
		return m, m.run("delete", deleteAction(m.ctrl))

	case key.Matches(msg, m.keys.ExportPDF):
		return m, m.run("export-pdf", exportPDFAction(m.ctrl))

	case key.Matches(msg, m.keys.ExportText):
		return m, m.run("export", exportTextAction(m.ctrl, m.opts.ExportFormat))

	case key.Matches(msg, m.keys.Copy):
		return m, m.run("copy", copyAction(m.ctrl))

	case key.Matches(msg, m.keys.Theme):
		m.applyTheme(styles.NewTheme(m.ctrl.ToggleTheme()))
		m.syncFrame()
		m.refreshViewport(true)
		return m, nil

	case key.Matches(msg, m.keys.Level):
		m.ctrl.SetLevel(m.ctrl.Level().Next())
		m.syncFrame()
		return m, nil

	case key.Matches(msg, m.keys.Stream):
		m.ctrl.SetStreamReplies(!m.ctrl.StreamReplies())
		if m.ctrl.StreamReplies() {
			m.setNotice("Streaming on")
		} else {
			m.setNotice("Streaming off")
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus != FocusInput {
		return m, nil
	}

	if key.Matches(msg, m.keys.Submit) {
		text := m.input.Value()
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.run("send", sendAction(m.ctrl, text))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSidebarKey handles keys that only apply while the session list has
// focus. ok is false when the key should fall through.
func (m Model) handleSidebarKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil, true
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		return m, nil, true
	case key.Matches(msg, m.keys.Search):
		mm, cmd := m.enterSearch()
		return mm.(Model), cmd, true
	case key.Matches(msg, m.keys.Submit):
		if m.cursor < 0 || m.cursor >= len(m.filtered) {
			return m, nil, true
		}
		id := m.filtered[m.cursor].ID
		m.toggleFocus()
		if id == m.frame.sessions.ActiveID && m.frame.transcript.SessionID == id {
			return m, nil, true
		}
		return m, m.run("switch", switchAction(m.ctrl, id)), true
	case key.Matches(msg, m.keys.Cancel) && !m.frame.transcript.Streaming():
		m.toggleFocus()
		return m, nil, true
	}
	return m, nil, false
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.query = ""
		m.refreshSessions()
		m.closePrompt()
		return m, nil
	case tea.KeyEnter:
		m.closePrompt()
		m.focus = FocusSidebar
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	m.query = m.prompt.Value()
	m.cursor = 0
	m.refreshSessions()
	return m, cmd
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closePrompt()
		return m, nil
	case tea.KeyEnter:
		title := m.prompt.Value()
		m.closePrompt()
		return m, m.run("rename", renameAction(m.ctrl, title))
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.closePrompt()
		m.gate.Arm()
		return m, m.run("delete", deleteAction(m.ctrl))
	case "n", "N", "esc":
		m.closePrompt()
		m.setNotice("Delete canceled")
	}
	return m, nil
}

func (m Model) enterSearch() (tea.Model, tea.Cmd) {
	m.mode = ModeSearch
	m.prompt.Prompt = "/ "
	m.prompt.Placeholder = "filter sessions"
	m.prompt.SetValue(m.query)
	m.prompt.CursorEnd()
	m.input.Blur()
	return m, m.prompt.Focus()
}

func (m Model) enterRename() (tea.Model, tea.Cmd) {
	s, ok := m.frame.sessions.Active()
	if !ok {
		m.setNotice("No active session")
		return m, nil
	}
	m.mode = ModeRename
	m.prompt.Prompt = "Rename: "
	m.prompt.Placeholder = "session title"
	m.prompt.SetValue(s.Title)
	m.prompt.CursorEnd()
	m.input.Blur()
	return m, m.prompt.Focus()
}

func (m *Model) closePrompt() {
	m.mode = ModeNormal
	m.prompt.Blur()
	m.prompt.Reset()
	if m.focus == FocusInput {
		m.input.Focus()
	}
}

func (m *Model) toggleFocus() {
	if m.focus == FocusInput {
		m.focus = FocusSidebar
		m.input.Blur()
		m.cursor = m.activeIndex()
		return
	}
	m.focus = FocusInput
	m.input.Focus()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.ctrl.CancelStream()
	m.cancelMgr.cancel()
	return m, tea.Quit
}

// =============================================================================
// STATE HELPERS
// =============================================================================

// refreshSessions rebuilds the filtered list and keeps the cursor in range.
func (m *Model) refreshSessions() {
	m.filtered = session.FilterSessions(m.frame.sessions.Sessions, m.query)
	if m.focus != FocusSidebar {
		m.cursor = m.activeIndex()
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) activeIndex() int {
	for i, s := range m.filtered {
		if s.ID == m.frame.sessions.ActiveID {
			return i
		}
	}
	return 0
}

func (m *Model) applyTheme(t *styles.Theme) {
	m.theme = t
	m.input.PromptStyle = t.InputPrompt
	m.prompt.PromptStyle = t.SearchPrompt
	m.spinner.Style = t.Spinner
	m.help.Styles.ShortKey = t.ShortcutKey
	m.help.Styles.ShortDesc = t.ShortcutDesc
	m.help.Styles.FullKey = t.ShortcutKey
	m.help.Styles.FullDesc = t.ShortcutDesc
}

// Focused returns the pane receiving keys.
func (m Model) Focused() Focus {
	return m.focus
}

// CurrentMode returns the open prompt, if any.
func (m Model) CurrentMode() Mode {
	return m.mode
}

// Quitting reports whether the user asked to exit.
func (m Model) Quitting() bool {
	return m.quitting
}
