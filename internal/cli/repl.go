// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Line-oriented chat for pipes and plain terminals.
//
// Interactive Commands:
//   /help, /h             Show available commands
//   /new [title]          Start a new session
//   /list, /ls            List sessions
//   /switch <n|id>        Open a session by list number or id
//   /rename <title>       Rename the active session
//   /delete               Delete the active session
//   /regen, /r            Regenerate the last reply
//   /level [name|next]    Show or set the proficiency level
//   /stream [on|off]      Show or set streaming replies
//   /theme                Toggle dark and light
//   /export [format|pdf]  Export the active session
//   /copy                 Copy the transcript to the clipboard
//   /history              Print the active transcript
//   /quit, /q             Exit
//   Ctrl+C                Stop the reply being written
//   Ctrl+D                Exit

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/studychat-tui/internal/config"
	"github.com/jeranaias/studychat-tui/internal/controller"
	"github.com/jeranaias/studychat-tui/internal/logging"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/render"
	"github.com/jeranaias/studychat-tui/internal/ui/styles"
)

var promptStyle = lipgloss.NewStyle().
	Foreground(styles.Cyan).
	Bold(true)

// slashCommands feeds tab completion.
var slashCommands = []string{
	"/help", "/new", "/list", "/switch", "/rename", "/delete", "/regen",
	"/level", "/stream", "/theme", "/export", "/copy", "/history", "/quit",
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of input after showing a prompt.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// historyInput wraps liner with a history file in the config directory.
type historyInput struct {
	line        *liner.State
	historyFile string
}

func newHistoryInput() *historyInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlash)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	h := &historyInput{line: line, historyFile: filepath.Join(configDir, "chat_history")}
	if f, err := os.Open(h.historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return h
}

func (h *historyInput) Prompt(prompt string) (string, error) {
	input, err := h.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		h.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (h *historyInput) Close() {
	if err := os.MkdirAll(filepath.Dir(h.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(h.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			h.line.WriteHistory(f)
			f.Close()
		}
	}
	h.line.Close()
}

func completeSlash(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return nil
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

// scannerInput reads lines without echo or editing. Used for tests.
type scannerInput struct {
	sc *bufio.Scanner
}

func (s scannerInput) Prompt(string) (string, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

// =============================================================================
// REPL
// =============================================================================

// repl drives the controller from typed lines.
type repl struct {
	app      *App
	in       lineReader
	out      io.Writer
	markdown bool
	width    int

	// streamed is set once the current reply has printed a delta.
	streamed atomic.Bool
}

// runREPL starts the line-oriented chat on a terminal, or reads lines from
// in when stdin is not one.
func runREPL(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	r := &repl{
		out:      out,
		markdown: IsStdoutTTY(),
		width:    GetTerminalWidth(),
	}

	if IsTTY() {
		h := newHistoryInput()
		defer h.Close()
		r.in = h
	} else {
		r.in = scannerInput{sc: bufio.NewScanner(in)}
	}

	confirm := func(_ context.Context, s model.Session) bool {
		if !cfg.Chat.ConfirmDelete {
			return true
		}
		return r.confirm(fmt.Sprintf("Delete %q? [y/N] ", s.DisplayTitle()))
	}
	app, err := newApp(cfg, confirm)
	if err != nil {
		return err
	}
	defer app.Close()
	r.attach(app)

	return r.loop(ctx)
}

// attach connects the repl to app's stream engine.
func (r *repl) attach(app *App) {
	r.app = app
	app.Engine.OnDelta(func(delta string) {
		r.streamed.Store(true)
		fmt.Fprint(r.out, delta)
	})
}

func (r *repl) loop(ctx context.Context) error {
	log := logging.For("repl")
	ctrl := r.app.Controller

	if err := ctrl.Init(ctx); err != nil {
		r.printError(err)
	}
	r.printWelcome()

	for {
		input, err := r.in.Prompt(paint(promptStyle, "study> "))
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Msg("prompt ended")
			}
			fmt.Fprintln(r.out)
			return nil
		}

		quit, err := r.execute(ctx, input)
		if err != nil {
			r.printError(err)
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// execute runs one line of input. It reports whether the user asked to quit.
func (r *repl) execute(ctx context.Context, input string) (quit bool, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, nil
	}
	if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
		return true, nil
	}
	if strings.HasPrefix(input, "/") {
		return r.command(ctx, input)
	}
	return false, r.generate(ctx, func(ctx context.Context) error {
		return r.app.Controller.Send(ctx, input)
	})
}

func (r *repl) command(ctx context.Context, input string) (bool, error) {
	ctrl := r.app.Controller
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/q", "/exit":
		return true, nil

	case "/help", "/h", "/?":
		r.printHelp()

	case "/new", "/n":
		if err := ctrl.CreateSession(ctx); err != nil {
			return false, err
		}
		if arg != "" {
			if err := ctrl.Rename(ctx, arg); err != nil {
				return false, err
			}
		}
		r.printStatus()

	case "/list", "/ls", "/sessions":
		if _, err := ctrl.Directory().Refresh(ctx); err != nil {
			return false, err
		}
		r.printSessions()

	case "/switch", "/open", "/s":
		id, err := r.resolveSession(arg)
		if err != nil {
			return false, err
		}
		if err := ctrl.SwitchSession(ctx, id); err != nil {
			return false, err
		}
		r.printStatus()
		r.printTranscript()

	case "/rename":
		if err := ctrl.Rename(ctx, arg); err != nil {
			return false, err
		}
		r.printStatus()

	case "/delete", "/rm":
		err := ctrl.Delete(ctx)
		if errors.Is(err, controller.ErrNotConfirmed) {
			fmt.Fprintln(r.out, paint(DimStyle, "Delete canceled"))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		r.printStatus()

	case "/regen", "/r", "/regenerate":
		return false, r.generate(ctx, ctrl.Regenerate)

	case "/level":
		if arg != "" {
			level, err := parseLevelArg(arg, ctrl.Level())
			if err != nil {
				return false, err
			}
			ctrl.SetLevel(level)
		}
		fmt.Fprintf(r.out, "Level: %s\n", paint(HighlightStyle, ctrl.Level().String()))

	case "/stream":
		switch strings.ToLower(arg) {
		case "":
		case "on", "true", "1":
			ctrl.SetStreamReplies(true)
		case "off", "false", "0":
			ctrl.SetStreamReplies(false)
		default:
			return false, &UsageError{Field: "stream", Value: arg, Reason: "expected on or off", Example: "/stream off"}
		}
		state := "off"
		if ctrl.StreamReplies() {
			state = "on"
		}
		fmt.Fprintf(r.out, "Streaming: %s\n", paint(HighlightStyle, state))

	case "/theme":
		fmt.Fprintf(r.out, "Theme: %s\n", paint(HighlightStyle, string(ctrl.ToggleTheme())))

	case "/export":
		var (
			path string
			err  error
		)
		if strings.EqualFold(arg, "pdf") {
			path, err = ctrl.ExportPDF(ctx)
		} else {
			if arg == "" {
				arg = "markdown"
			}
			path, err = ctrl.ExportTranscript(arg)
		}
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s %s\n", paint(SuccessStyle, "Saved"), path)

	case "/copy":
		if err := ctrl.CopyTranscript(); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, paint(SuccessStyle, controller.StatusCopied))

	case "/history":
		r.printTranscript()

	default:
		return false, &UsageError{Field: "command", Value: name, Reason: "unknown command", Example: "/help"}
	}
	return false, nil
}

// generate runs a send or regenerate. Ctrl+C stops the reply and keeps the
// part already written.
func (r *repl) generate(ctx context.Context, fn func(context.Context) error) error {
	genCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	r.streamed.Store(false)
	fmt.Fprintln(r.out)
	err := fn(genCtx)

	if r.streamed.Load() {
		fmt.Fprintln(r.out)
	} else if err == nil {
		r.printLastReply()
	}
	if genCtx.Err() != nil && ctx.Err() == nil {
		fmt.Fprintln(r.out, paint(WarningStyle, "["+controller.StatusStopped+"]"))
		return nil
	}
	fmt.Fprintln(r.out)
	return err
}

// resolveSession accepts a 1-based number from /list or a session id.
func (r *repl) resolveSession(arg string) (model.SessionID, error) {
	if arg == "" {
		return "", &UsageError{Field: "session", Reason: "required", Example: "/switch 2"}
	}
	sessions := r.app.Controller.Directory().Sessions()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(sessions) {
			return "", &UsageError{Field: "session", Value: arg, Reason: fmt.Sprintf("expected 1-%d", len(sessions))}
		}
		return sessions[n-1].ID, nil
	}
	return model.SessionID(arg), nil
}

func parseLevelArg(arg string, current model.Level) (model.Level, error) {
	if strings.EqualFold(arg, "next") {
		return current.Next(), nil
	}
	level, err := model.ParseLevel(arg)
	if err != nil {
		return "", &UsageError{Field: "level", Value: arg, Reason: "unknown level", Example: "/level intermediate"}
	}
	return level, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// confirm asks a yes/no question on the prompt line.
func (r *repl) confirm(question string) bool {
	answer, err := r.in.Prompt(question)
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (r *repl) printWelcome() {
	fmt.Fprintln(r.out, paint(SectionStyle, "studychat "+Version))
	r.printStatus()
	fmt.Fprintln(r.out, paint(DimStyle, "Type a question, or /help for commands."))
	fmt.Fprintln(r.out)
}

// printStatus shows the active session and level.
func (r *repl) printStatus() {
	ctrl := r.app.Controller
	title := "No session"
	if s, ok := ctrl.Directory().FindActive(); ok {
		title = s.DisplayTitle()
	}
	fmt.Fprintf(r.out, "%s %s %s\n",
		paint(LabelStyle, "Session:"),
		paint(HighlightStyle, title),
		paint(DimStyle, "("+ctrl.Level().String()+")"))
}

func (r *repl) printSessions() {
	ctrl := r.app.Controller
	snap := ctrl.Directory().Snapshot()
	if len(snap.Sessions) == 0 {
		fmt.Fprintln(r.out, paint(DimStyle, "No sessions yet."))
		return
	}
	for i, s := range snap.Sessions {
		marker := "  "
		if s.ID == snap.ActiveID {
			marker = "* "
		}
		fmt.Fprintf(r.out, "%s%2d. %s %s\n", marker, i+1,
			truncate(s.DisplayTitle(), 40),
			paint(DimStyle, s.HeaderLine()))
	}
}

func (r *repl) printTranscript() {
	msgs := r.app.Controller.Buffer().Snapshot().Messages
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, paint(DimStyle, "No messages yet."))
		return
	}
	fmt.Fprintln(r.out, separator())
	for _, msg := range msgs {
		r.printMessage(msg)
	}
	fmt.Fprintln(r.out, separator())
}

func (r *repl) printLastReply() {
	msgs := r.app.Controller.Buffer().Snapshot().Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsAssistant() {
			r.printBody(msgs[i])
			return
		}
	}
}

func (r *repl) printMessage(msg model.Message) {
	label := paint(AssistantLabelStyle, msg.Role.DisplayName()+":")
	if msg.IsUser() {
		label = paint(UserLabelStyle, msg.Role.DisplayName()+":")
	}
	fmt.Fprintln(r.out, label)
	r.printBody(msg)
	fmt.Fprintln(r.out)
}

// printBody renders finished assistant replies as Markdown on a terminal.
func (r *repl) printBody(msg model.Message) {
	if !r.markdown {
		fmt.Fprintln(r.out, msg.Content)
		return
	}
	body := render.Message(msg, r.app.Controller.ThemeMode(), r.width)
	fmt.Fprintln(r.out, strings.TrimRight(body, "\n"))
}

func (r *repl) printError(err error) {
	fmt.Fprintf(r.out, "%s %s\n", paint(ErrorStyle, "[Error]"), controller.StatusMessage(err))
	if hint := controller.Hint(err); hint != "" {
		fmt.Fprintln(r.out, paint(DimStyle, "  "+hint))
	}
}

func (r *repl) printHelp() {
	rows := [][2]string{
		{"/new [title]", "Start a new session"},
		{"/list", "List sessions"},
		{"/switch <n|id>", "Open a session"},
		{"/rename <title>", "Rename the active session"},
		{"/delete", "Delete the active session"},
		{"/regen", "Regenerate the last reply"},
		{"/level [name|next]", "Show or set the level"},
		{"/stream [on|off]", "Show or set streaming replies"},
		{"/theme", "Toggle dark and light"},
		{"/export [format|pdf]", "Export (markdown, html, json, yaml, text, pdf)"},
		{"/copy", "Copy the transcript"},
		{"/history", "Print the transcript"},
		{"/quit", "Exit"},
	}
	fmt.Fprintln(r.out, paint(SectionStyle, "Commands"))
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %s %s\n", paint(HighlightStyle, pad(row[0], 22)), row[1])
	}
	fmt.Fprintln(r.out, paint(DimStyle, "  Ctrl+C stops a reply, Ctrl+D exits."))
}
