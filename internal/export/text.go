// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"

	"github.com/atotto/clipboard"

	"github.com/jeranaias/studychat-tui/internal/model"
)

// =============================================================================
// TEXT EXPORTER
// =============================================================================

// TextExporter writes the same plain text that is copied to the clipboard.
type TextExporter struct {
	options *Options
}

// NewTextExporter creates a new plain text exporter.
func NewTextExporter(opts *Options) *TextExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &TextExporter{options: opts}
}

// Export converts a transcript to "User: ..." / "Assistant: ..." text.
func (e *TextExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	return []byte(model.FormatTranscript(t.Messages) + "\n"), nil
}

// FileExtension returns the file extension for plain text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for plain text.
func (e *TextExporter) MimeType() string {
	return "text/plain"
}

// =============================================================================
// CLIPBOARD
// =============================================================================

// ErrClipboardUnavailable is returned when no system clipboard is present.
var ErrClipboardUnavailable = errors.New("clipboard not available")

// CopyToClipboard places text on the system clipboard.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	return clipboard.WriteAll(text)
}
