// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is a textual log level as written in config files and flags.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	mu     sync.Mutex
	closer io.Closer
)

func init() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// ParseLevel maps a level string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch Level(strings.ToLower(strings.TrimSpace(level))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Configure sets the global level and output. A pretty writer renders
// human-readable console lines instead of JSON.
func Configure(level string, pretty bool, out io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	if out == nil {
		out = os.Stderr
	}
	writer := out
	if pretty {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    out != os.Stderr,
		}
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}

// ConfigureFile sends logs to path, creating parent directories. The
// previous log file opened by ConfigureFile is closed.
func ConfigureFile(level string, pretty bool, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	prev := closer
	closer = f
	mu.Unlock()

	Configure(level, pretty, f)
	if prev != nil {
		prev.Close()
	}
	return nil
}

// SetLevel changes the global level without touching the output.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// Discard silences all logging. Used by tests and the TUI before a log
// file is available.
func Discard() {
	log.Logger = zerolog.Nop()
}

// Close releases the log file opened by ConfigureFile, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	return err
}

// For returns a child logger tagged with the component name.
func For(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
