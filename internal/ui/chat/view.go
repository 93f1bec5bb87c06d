// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/studychat-tui/internal/controller"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/ui/styles"
)

// =============================================================================
// LAYOUT
// =============================================================================

const (
	minSidebarTotal = 60 // narrower terminals hide the session list
	headerHeight    = 2
	inputHeight     = 3
	statusHeight    = 1
)

func (m Model) sidebarVisible() bool {
	return m.width >= minSidebarTotal
}

// sidebarWidth is the full width of the session list including its border.
func (m Model) sidebarWidth() int {
	if !m.sidebarVisible() {
		return 0
	}
	w := m.opts.SidebarWidth
	if limit := m.width / 3; w > limit {
		w = limit
	}
	return w
}

func (m Model) mainWidth() int {
	return m.width - m.sidebarWidth()
}

// contentWidth is the usable width for message text.
func (m Model) contentWidth() int {
	w := m.mainWidth() - 2
	if w < 20 {
		w = 20
	}
	return w
}

// layout resizes widgets after a window or mode change.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	extra := 0
	if m.showHelp {
		extra = lipgloss.Height(m.help.FullHelpView(m.keys.FullHelp()))
	}
	h := m.height - headerHeight - inputHeight - statusHeight - extra
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.mainWidth()
	m.viewport.Height = h
	m.input.Width = m.mainWidth() - 6
	m.prompt.Width = m.mainWidth() - 14
	m.help.Width = m.mainWidth()
}

// refreshViewport redraws the transcript. Content is rebuilt only when
// rebuild is set; the view follows the tail while it was already there.
func (m *Model) refreshViewport(rebuild bool) {
	if !rebuild || !m.ready {
		return
	}
	follow := m.viewport.AtBottom() || m.frame.transcript.Streaming()
	m.viewport.SetContent(m.renderMessages())
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	parts := []string{m.renderHeader(), m.viewport.View(), m.renderInput()}
	if m.showHelp {
		parts = append(parts, m.help.FullHelpView(m.keys.FullHelp()))
	}
	parts = append(parts, m.renderStatusBar())
	main := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if !m.sidebarVisible() {
		return m.theme.App.Render(main)
	}
	return m.theme.App.Render(lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main))
}

func (m Model) renderHeader() string {
	width := m.mainWidth()
	title := "No session"
	meta := ""
	if s, ok := m.frame.sessions.Active(); ok {
		title = s.DisplayTitle()
		meta = s.HeaderLine()
	} else if !m.frame.sessions.ActiveID.IsZero() {
		meta = "Session ID: " + m.frame.sessions.ActiveID.String()
	}

	mode := "stream"
	if !m.ctrl.StreamReplies() {
		mode = "single"
	}
	right := m.theme.LevelBadge.Render(m.ctrl.Level().String()) + " " + m.theme.HeaderMeta.Render(mode)

	titleW := width - lipgloss.Width(right) - 3
	if titleW < 8 {
		titleW = 8
	}
	left := m.theme.HeaderTitle.Render(runewidth.Truncate(title, titleW, "…"))
	gap := width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line1 := left + strings.Repeat(" ", gap) + right
	line2 := m.theme.HeaderMeta.Render(runewidth.Truncate(meta, width-2, "…"))

	return m.theme.Header.Width(width).Render(line1 + "\n" + line2)
}

func (m *Model) renderMessages() string {
	msgs := m.frame.transcript.Messages
	if len(msgs) == 0 {
		if !m.frame.transcript.Loaded && !m.frame.transcript.SessionID.IsZero() {
			return m.theme.EmptyState.Render("Loading history...")
		}
		return m.theme.EmptyState.Render("Ask a question to start studying.")
	}

	width := m.contentWidth()
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, width))
	}
	return b.String()
}

func (m *Model) renderMessage(msg model.Message, width int) string {
	if msg.IsUser() {
		label := m.theme.UserLabel.Render(msg.Role.DisplayName())
		return label + "\n" + m.theme.UserBubble.Width(width-2).Render(msg.Content)
	}

	label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	if msg.Streaming {
		body := m.theme.AssistantBody.Width(width).Render(msg.Content + m.theme.StreamCursor.Render("▍"))
		return label + "\n" + body
	}
	return label + "\n" + m.cache.Render(msg, m.theme.Mode, width)
}

func (m Model) renderInput() string {
	width := m.mainWidth() - 2
	switch m.mode {
	case ModeSearch, ModeRename:
		return m.theme.InputContainer.Width(width).Render(m.prompt.View())
	case ModeConfirmDelete:
		title := "this session"
		if s, ok := m.frame.sessions.Active(); ok {
			title = fmt.Sprintf("%q", s.DisplayTitle())
		}
		return m.theme.Confirm.Width(width).Render("Delete " + title + "? (y/n)")
	}
	return m.theme.InputContainer.Width(width).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	width := m.mainWidth()
	st := m.frame.status

	var left string
	switch {
	case m.notice != "":
		left = m.theme.StatusOK.Render(m.notice)
		if strings.HasPrefix(m.notice, "Error: ") {
			left = m.theme.StatusError.Render(styles.StatusIndicators.Error + " " + m.notice)
		}
	case st.Err != nil:
		left = m.theme.StatusError.Render(styles.StatusIndicators.Error + " " + st.Text)
	case st.Busy || m.pending > 0:
		text := st.Text
		if text == "" {
			text = "Working..."
		}
		left = m.spinner.View() + " " + m.theme.StatusBusy.Render(text)
	default:
		left = m.theme.StatusOK.Render(st.Text)
	}

	right := m.help.ShortHelpView(m.keys.ShortHelp())
	if st.Err != nil && m.notice == "" {
		if hint := controller.Hint(st.Err); hint != "" {
			right = m.theme.ShortcutDesc.Render(hint)
		}
	}
	gap := width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		right = ""
		gap = 1
	}
	return m.theme.StatusBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar() string {
	total := m.sidebarWidth()
	inner := total - 3 // border plus padding
	if inner < 4 {
		inner = 4
	}

	var lines []string
	lines = append(lines, m.theme.HeaderTitle.Render(fmt.Sprintf("Sessions (%d)", len(m.frame.sessions.Sessions))))
	if m.query != "" {
		lines = append(lines, m.theme.SearchPrompt.Render(runewidth.Truncate("/ "+m.query, inner, "…")))
	}
	lines = append(lines, "")

	rows := m.height - len(lines)
	perItem := 2
	visible := rows / perItem
	if visible < 1 {
		visible = 1
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.filtered) {
		end = len(m.filtered)
	}

	if len(m.filtered) == 0 {
		empty := "No sessions"
		if m.query != "" {
			empty = "No matches"
		}
		lines = append(lines, m.theme.EmptyState.Render(empty))
	}
	for i := start; i < end; i++ {
		lines = append(lines, m.renderSessionItem(m.filtered[i], i, inner)...)
	}

	style := m.theme.Sidebar
	if m.focus == FocusSidebar {
		style = m.theme.SidebarFocused
	}
	return style.Width(total - 1).Height(m.height).Render(strings.Join(lines, "\n"))
}

func (m Model) renderSessionItem(s model.Session, idx, width int) []string {
	marker := "  "
	titleStyle := m.theme.SessionItem
	if s.ID == m.frame.sessions.ActiveID {
		marker = "* "
		titleStyle = m.theme.SessionActive
	}
	if m.focus == FocusSidebar && idx == m.cursor {
		titleStyle = m.theme.SessionSelected
	}

	title := marker + runewidth.Truncate(s.DisplayTitle(), width-2, "…")
	preview := strings.Join(strings.Fields(s.LastPreview), " ")
	if preview == "" && !s.LastMessageAt.IsZero() {
		preview = s.LastMessageAt.Local().Format("Jan 2 15:04")
	}
	return []string{
		titleStyle.Render(runewidth.FillRight(title, width)),
		m.theme.SessionMeta.Render("  " + runewidth.Truncate(preview, width-2, "…")),
	}
}
