// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/studychat-tui/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a transcript in one format.
type Exporter interface {
	// Export converts a transcript to the target format.
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type for the format.
	MimeType() string
}

// Formats lists the names accepted by NewExporter.
var Formats = []string{"markdown", "html", "json", "yaml", "text"}

// NewExporter returns the exporter for format. Common aliases (md, htm,
// yml, txt) are accepted.
func NewExporter(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "yaml", "yml":
		return NewYAMLExporter(opts), nil
	case "text", "txt":
		return NewTextExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written.
	// Default: current working directory
	OutputDir string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeMetadata adds a header with session details.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message timestamps where known.
	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark").
	// Default: "dark"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile renders t in format and writes it under opts.OutputDir.
// Returns the written path.
func ExportToFile(t *Transcript, format string, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	exporter, err := NewExporter(format, opts)
	if err != nil {
		return "", err
	}

	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("study-chat_%s_%s%s",
		sanitizeFilename(t.Title()),
		t.exportedAt().Format("20060102_150405"),
		exporter.FileExtension(),
	)
	return writeOutput(opts, filename, content)
}

// SavePDF stores a server-rendered PDF under dir. The file is named
// study-chat.pdf, or study-chat_<title>.pdf when a title is given.
func SavePDF(dir, title string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("pdf is empty")
	}
	filename := "study-chat.pdf"
	if strings.TrimSpace(title) != "" {
		filename = "study-chat_" + sanitizeFilename(title) + ".pdf"
	}
	return writeOutput(&Options{OutputDir: dir}, filename, data)
}

func writeOutput(opts *Options, filename string, content []byte) (string, error) {
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}

	outputPath := filepath.Join(dir, filename)
	if err := util.AtomicWriteFileWithDir(outputPath, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if opts.OpenAfterExport {
		if err := OpenFile(outputPath); err != nil {
			// Non-fatal, the file was written.
			log.Warn().Err(err).Str("path", outputPath).Msg("could not open exported file")
		}
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > 50 {
		runes = runes[:50]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "session"
	}
	return string(result)
}

// OpenFile opens a file in the default application for the OS.
func OpenFile(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Local().Format("15:04:05")
}
