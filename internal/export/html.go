// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/render"
	"github.com/jeranaias/studychat-tui/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a standalone HTML page. Assistant
// replies are rendered from Markdown; user text is escaped verbatim.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

func (e *HTMLExporter) theme() storage.ThemeMode {
	if e.options.Theme == string(storage.ThemeLight) {
		return storage.ThemeLight
	}
	return storage.ThemeDark
}

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	theme := e.theme()
	title := html.EscapeString(t.Title())

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", title))
	sb.WriteString("<style>\n")
	sb.WriteString(pageCSS)
	sb.WriteString(render.Stylesheet(theme))
	sb.WriteString("</style>\n</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n<div class=\"container\">\n", theme))

	sb.WriteString(fmt.Sprintf("<header class=\"header\">\n<h1>%s</h1>\n", title))
	if e.options.IncludeMetadata {
		sb.WriteString("<div class=\"metadata\">")
		sb.WriteString(fmt.Sprintf("<span>Session %s</span>", html.EscapeString(t.Session.ID.String())))
		if t.Level != "" {
			sb.WriteString(fmt.Sprintf("<span>Level: %s</span>", html.EscapeString(t.Level.String())))
		}
		sb.WriteString(fmt.Sprintf("<span>Messages: %d</span>", len(t.Messages)))
		sb.WriteString(fmt.Sprintf("<span>Exported: %s</span>", formatTimestamp(t.exportedAt())))
		sb.WriteString("</div>\n")
	}
	sb.WriteString("</header>\n<main class=\"conversation\">\n")

	for _, msg := range t.Messages {
		body, err := e.renderContent(msg)
		if err != nil {
			return nil, err
		}
		sb.WriteString(fmt.Sprintf("<div class=\"message %s-message\">\n<div class=\"message-header\"><span class=\"role-label\">%s</span>",
			msg.Role, msg.Role.DisplayName()))
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("<span class=\"timestamp\">%s</span>", formatShortTimestamp(msg.CreatedAt.Time)))
		}
		sb.WriteString("</div>\n<div class=\"message-content\">\n")
		sb.WriteString(body)
		sb.WriteString("</div>\n</div>\n")
	}

	sb.WriteString("</main>\n</div>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) renderContent(msg model.Message) (string, error) {
	if msg.IsAssistant() {
		return render.HTML(msg.Content)
	}
	escaped := html.EscapeString(strings.TrimSpace(msg.Content))
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>\n") + "</p>\n", nil
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `* { margin: 0; padding: 0; box-sizing: border-box; }
:root {
  --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
  --font-mono: "SF Mono", Monaco, "Fira Code", monospace;
}
.dark-theme {
  --bg-primary: #1a1b26; --bg-secondary: #24283b; --text-primary: #c0caf5;
  --text-muted: #565f89; --border-color: #414868; --user-bg: #1f2335;
  --accent-user: #7aa2f7; --accent-assistant: #9ece6a;
}
.light-theme {
  --bg-primary: #ffffff; --bg-secondary: #f7f8fa; --text-primary: #24292e;
  --text-muted: #6a737d; --border-color: #e1e4e8; --user-bg: #f6f8fa;
  --accent-user: #0366d6; --accent-assistant: #22863a;
}
body { font-family: var(--font-sans); line-height: 1.6; color: var(--text-primary); background: var(--bg-primary); padding: 20px; }
.container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
.header { padding: 28px 32px; border-bottom: 2px solid var(--border-color); }
.header h1 { font-size: 26px; margin-bottom: 12px; }
.metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-muted); }
.conversation { padding: 24px 32px; }
.message { margin-bottom: 20px; padding: 18px; border-radius: 8px; border-left: 4px solid transparent; }
.user-message { background: var(--user-bg); border-left-color: var(--accent-user); }
.assistant-message { border-left-color: var(--accent-assistant); }
.message-header { display: flex; justify-content: space-between; margin-bottom: 10px; font-size: 14px; font-weight: 600; }
.timestamp { color: var(--text-muted); font-family: var(--font-mono); font-weight: normal; }
.message-content p { margin-bottom: 10px; }
.message-content pre { padding: 14px; border-radius: 6px; overflow-x: auto; font-family: var(--font-mono); font-size: 14px; }
.message-content code { font-family: var(--font-mono); }
.message-content table { border-collapse: collapse; margin: 10px 0; }
.message-content th, .message-content td { border: 1px solid var(--border-color); padding: 4px 10px; }
@media print { .message { page-break-inside: avoid; } }
`
