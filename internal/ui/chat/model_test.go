// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/studychat-tui/internal/backend"
	"github.com/jeranaias/studychat-tui/internal/controller"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/session"
	"github.com/jeranaias/studychat-tui/internal/storage"
	"github.com/jeranaias/studychat-tui/internal/stream"
	"github.com/jeranaias/studychat-tui/internal/transcript"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type fakeBackend struct {
	mu       sync.Mutex
	nextID   int
	sessions []model.Session // newest first
	history  map[model.SessionID][]model.Message
	renamed  string
	deleted  []model.SessionID
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{history: make(map[model.SessionID][]model.Message)}
}

func (f *fakeBackend) seed(title string, msgs ...model.Message) model.SessionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := model.SessionID(fmt.Sprint(f.nextID))
	f.sessions = append([]model.Session{{ID: id, Title: title}}, f.sessions...)
	f.history[id] = msgs
	return id
}

func (f *fakeBackend) ListSessions(context.Context) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Session(nil), f.sessions...), nil
}

func (f *fakeBackend) CreateSession(_ context.Context, title string) (model.SessionID, error) {
	return f.seed(title), nil
}

func (f *fakeBackend) GetMessages(_ context.Context, id model.SessionID) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.history[id]
	if !ok {
		return nil, &backend.TransportError{Type: backend.ErrTypeNotFound, Op: "messages", Status: 404}
	}
	return append([]model.Message(nil), msgs...), nil
}

func (f *fakeBackend) SendChat(_ context.Context, id model.SessionID, text string, _ model.Level) (backend.ChatReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reply := "Answer to " + text
	f.history[id] = append(f.history[id], model.NewUserMessage(text), model.NewAssistantMessage(reply))
	return backend.ChatReply{Reply: reply}, nil
}

func (f *fakeBackend) Regenerate(_ context.Context, id model.SessionID, _ model.Level) (backend.ChatReply, error) {
	return backend.ChatReply{Reply: "Another answer"}, nil
}

func (f *fakeBackend) RenameSession(_ context.Context, id model.SessionID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renamed = title
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			f.sessions[i].Title = title
		}
	}
	return nil
}

func (f *fakeBackend) DeleteSession(_ context.Context, id model.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	kept := f.sessions[:0]
	for _, s := range f.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.sessions = kept
	delete(f.history, id)
	return nil
}

func (f *fakeBackend) ExportPDF(context.Context, model.SessionID) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

func (f *fakeBackend) OpenChatStream(context.Context, model.SessionID, string, model.Level) (stream.Source, error) {
	return nil, errors.New("streaming disabled in tests")
}

func (f *fakeBackend) OpenRegenerateStream(context.Context, model.SessionID, model.Level) (stream.Source, error) {
	return nil, errors.New("streaming disabled in tests")
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, fb *fakeBackend, ptrs *storage.Pointers) (Model, *controller.Controller) {
	t.Helper()
	if ptrs == nil {
		ptrs = storage.NewPointers(nil)
	}
	gate := &ConfirmGate{}
	buf := transcript.New()
	ctrl, err := controller.New(controller.Deps{
		Backend:   fb,
		Directory: session.NewDirectory(fb, ptrs),
		Buffer:    buf,
		Engine:    stream.NewEngine(buf, fb),
		Pointers:  ptrs,
		Confirm:   gate.Confirm,
		Clipboard: func(string) error { return nil },
	}, controller.Config{StreamReplies: false, DefaultTitle: "New Chat", DefaultLevel: model.LevelBeginner, ExportDir: t.TempDir()})
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}

	m := New(ctrl, Options{Gate: gate, ConfirmDelete: true, SidebarWidth: 30})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), ctrl
}

// drive runs cmd and feeds action results back into the model until no
// action remains. Timer-driven messages are dropped.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatal("drive: too many steps")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case actionDoneMsg:
			next, more := m.Update(msg)
			m = next.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, cmd := m.Update(k)
		m = drive(t, next.(Model), cmd)
	}
	return m
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func TestInit_RestoresSession(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("Photosynthesis", model.NewUserMessage("What is chlorophyll?"), model.NewAssistantMessage("A pigment."))
	fb.seed("Algebra")

	ptrs := storage.NewPointers(nil)
	ptrs.SetActiveSessionID("1")

	m, ctrl := newTestModel(t, fb, ptrs)
	m = drive(t, m, m.Init())

	if got := ctrl.Directory().ActiveID(); got != "1" {
		t.Fatalf("active = %q, want 1", got)
	}
	view := m.View()
	for _, want := range []string{"Photosynthesis", "chlorophyll", "A pigment.", "Sessions (2)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if m.pending != 0 {
		t.Errorf("pending = %d after init", m.pending)
	}
}

func TestSend_AppendsReply(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("Biology")

	m, ctrl := newTestModel(t, fb, nil)
	m = drive(t, m, m.Init())
	m = typeText(t, m, "mitosis")
	m = press(t, m, keyMsg("enter"))

	snap := ctrl.Buffer().Snapshot()
	if len(snap.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(snap.Messages))
	}
	if snap.Messages[1].Content != "Answer to mitosis" {
		t.Errorf("reply = %q", snap.Messages[1].Content)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
	if !strings.Contains(m.View(), "Answer to mitosis") {
		t.Error("view missing reply")
	}
}

func TestSend_EmptyIgnored(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("Biology")

	m, ctrl := newTestModel(t, fb, nil)
	m = drive(t, m, m.Init())

	next, cmd := m.Update(keyMsg("enter"))
	if cmd != nil {
		t.Error("empty input should not dispatch")
	}
	_ = next
	if n := len(ctrl.Buffer().Snapshot().Messages); n != 0 {
		t.Errorf("messages = %d", n)
	}
}

func TestSidebar_SwitchSession(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("Chemistry", model.NewUserMessage("acids?"))
	fb.seed("Physics", model.NewUserMessage("gravity?"))

	m, ctrl := newTestModel(t, fb, nil)
	m = drive(t, m, m.Init())
	first := ctrl.Directory().ActiveID()

	m = press(t, m, keyMsg("tab"))
	if m.Focused() != FocusSidebar {
		t.Fatal("tab should focus the sidebar")
	}
	m = press(t, m, keyMsg("down"), keyMsg("enter"))

	if got := ctrl.Directory().ActiveID(); got == first {
		t.Fatalf("active did not change from %q", first)
	}
	if m.Focused() != FocusInput {
		t.Error("opening a session should return focus to input")
	}
	if !strings.Contains(m.View(), "acids?") {
		t.Error("view missing switched history")
	}
}

func TestSearch_FiltersSessions(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("Cell biology")
	fb.seed("World history")

	m, _ := newTestModel(t, fb, nil)
	m = drive(t, m, m.Init())

	m = press(t, m, keyMsg("tab"), keyMsg("/"))
	if m.CurrentMode() != ModeSearch {
		t.Fatal("/ should open search")
	}
	m = typeText(t, m, "bio")
	if len(m.filtered) != 1 || m.filtered[0].Title != "Cell biology" {
		t.Fatalf("filtered = %+v", m.filtered)
	}

	m = press(t, m, keyMsg("esc"))
	if m.CurrentMode() != ModeNormal || len(m.filtered) != 2 {
		t.Errorf("esc should clear the filter, got mode %d with %d sessions", m.CurrentMode(), len(m.filtered))
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("Keep")
	fb.seed("Drop")

	m, ctrl := newTestModel(t, fb, nil)
	m = drive(t, m, m.Init())
	target := ctrl.Directory().ActiveID()

	m = press(t, m, keyMsg("ctrl+d"))
	if m.CurrentMode() != ModeConfirmDelete {
		t.Fatal("ctrl+d should ask for confirmation")
	}
	if !strings.Contains(m.View(), "(y/n)") {
		t.Error("confirmation prompt not shown")
	}
	m = press(t, m, keyMsg("n"))
	if len(fb.deleted) != 0 {
		t.Fatal("declined delete reached the server")
	}

	m = press(t, m, keyMsg("ctrl+d"), keyMsg("y"))
	if len(fb.deleted) != 1 || fb.deleted[0] != target {
		t.Fatalf("deleted = %v, want [%s]", fb.deleted, target)
	}
	if ctrl.Directory().ActiveID() == target {
		t.Error("deleted session still active")
	}
	_ = m
}

func TestRename_UsesPrompt(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("Untitled")

	m, _ := newTestModel(t, fb, nil)
	m = drive(t, m, m.Init())

	m = press(t, m, keyMsg("ctrl+r"))
	if m.CurrentMode() != ModeRename {
		t.Fatal("ctrl+r should open rename")
	}
	if m.prompt.Value() != "Untitled" {
		t.Errorf("prompt = %q, want current title", m.prompt.Value())
	}
	m = press(t, m, keyMsg("ctrl+u"))
	m = typeText(t, m, "Cells")
	m = press(t, m, keyMsg("enter"))

	if fb.renamed != "Cells" {
		t.Errorf("renamed = %q", fb.renamed)
	}
	if !strings.Contains(m.View(), "Cells") {
		t.Error("view missing new title")
	}
}

func TestPreferences_ThemeAndLevel(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("Biology")

	m, ctrl := newTestModel(t, fb, nil)
	m = drive(t, m, m.Init())

	m = press(t, m, keyMsg("ctrl+t"))
	if ctrl.ThemeMode() != storage.ThemeLight || m.theme.Mode != storage.ThemeLight {
		t.Errorf("theme = %q / %q, want light", ctrl.ThemeMode(), m.theme.Mode)
	}

	m = press(t, m, keyMsg("ctrl+l"))
	if ctrl.Level() != model.LevelIntermediate {
		t.Errorf("level = %q", ctrl.Level())
	}
	if !strings.Contains(m.View(), "intermediate") {
		t.Error("header missing level")
	}
}

func TestQuit(t *testing.T) {
	fb := newFakeBackend()
	m, _ := newTestModel(t, fb, nil)

	next, cmd := m.Update(keyMsg("ctrl+c"))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
	if !next.(Model).Quitting() {
		t.Error("model not marked quitting")
	}
	if err := next.(Model).ctx.Err(); err == nil {
		t.Error("action context not canceled on quit")
	}
}

// =============================================================================
// SUPPORT TESTS
// =============================================================================

func TestConfirmGate(t *testing.T) {
	var g ConfirmGate
	ctx := context.Background()
	if g.Confirm(ctx, model.Session{}) {
		t.Error("unarmed gate approved")
	}
	g.Arm()
	if !g.Confirm(ctx, model.Session{}) {
		t.Error("armed gate refused")
	}
	if g.Confirm(ctx, model.Session{}) {
		t.Error("approval should be consumed")
	}
}

func TestRenderCache(t *testing.T) {
	rc := newRenderCache()
	msg := model.NewAssistantMessage("**bold**")

	first := rc.Render(msg, storage.ThemeDark, 60)
	second := rc.Render(msg, storage.ThemeDark, 60)
	if first != second {
		t.Error("cached render differs")
	}
	if hits, misses := rc.Stats(); hits != 1 || misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", hits, misses)
	}

	rc.Render(msg, storage.ThemeLight, 60)
	if _, misses := rc.Stats(); misses != 2 {
		t.Errorf("theme change should miss, misses=%d", misses)
	}

	live := model.Message{Role: model.RoleAssistant, Content: "partial", Streaming: true}
	if got := rc.Render(live, storage.ThemeDark, 60); got != "partial" {
		t.Errorf("streaming render = %q", got)
	}
	if _, misses := rc.Stats(); misses != 2 {
		t.Error("streaming messages should bypass the cache")
	}
}

func TestFrameState_Busy(t *testing.T) {
	var f frameState
	if f.busy() {
		t.Error("zero frame should be idle")
	}
	f.status.Busy = true
	if !f.busy() {
		t.Error("busy status should need frames")
	}
	f.status.Busy = false
	f.transcript.Messages = []model.Message{{Role: model.RoleAssistant, Streaming: true}}
	if !f.busy() {
		t.Error("streaming transcript should need frames")
	}
}

func TestReload_AppliesPreferences(t *testing.T) {
	fb := newFakeBackend()
	fb.seed("Biology")

	m, ctrl := newTestModel(t, fb, nil)
	m = drive(t, m, m.Init())

	on := true
	next, _ := m.Update(ReloadMsg{Level: model.LevelAdvanced, StreamReplies: &on, Theme: "light"})
	m = next.(Model)

	if ctrl.Level() != model.LevelAdvanced {
		t.Errorf("level = %q", ctrl.Level())
	}
	if !ctrl.StreamReplies() {
		t.Error("stream replies not applied")
	}
	if m.theme.Mode != storage.ThemeLight {
		t.Errorf("theme = %q", m.theme.Mode)
	}

	next, _ = m.Update(ReloadMsg{Theme: "auto"})
	if next.(Model).theme.Mode != storage.ThemeLight {
		t.Error("auto should not override the persisted theme")
	}
}

func TestWatch_WakesIdleFrames(t *testing.T) {
	fb := newFakeBackend()
	id := fb.seed("Biology")

	m, ctrl := newTestModel(t, fb, nil)
	m = drive(t, m, m.Init())

	// Let the last frame run out.
	next, cmd := m.Update(frameTickMsg(time.Now()))
	m = next.(Model)
	if cmd != nil || m.ticking {
		t.Fatal("frames should stop once idle")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wakes := make(chan tea.Msg, 4)
	Watch(ctx, ctrl, func(msg tea.Msg) { wakes <- msg })

	ctrl.Buffer().Load(id, []model.Message{model.NewUserMessage("arrived while idle")})

	var msg tea.Msg
	select {
	case msg = <-wakes:
	case <-time.After(2 * time.Second):
		t.Fatal("no wake after transcript change")
	}
	if _, ok := msg.(wakeMsg); !ok {
		t.Fatalf("got %T, want wakeMsg", msg)
	}

	next, cmd = m.Update(msg)
	m = next.(Model)
	if cmd == nil || !m.ticking {
		t.Fatal("wake should restart frames")
	}
	if _, cmd = m.Update(wakeMsg{}); cmd != nil {
		t.Error("wake while ticking should not start a second tick")
	}

	next, _ = m.Update(frameTickMsg(time.Now()))
	if !strings.Contains(next.(Model).View(), "arrived while idle") {
		t.Error("frame after wake should draw the new message")
	}
}
