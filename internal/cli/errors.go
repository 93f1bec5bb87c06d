// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by all commands.
//
// Commands always return errors and never print-and-return-nil. Execute
// displays the error once and maps it to an exit code.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/studychat-tui/internal/backend"
	"github.com/jeranaias/studychat-tui/internal/config"
	"github.com/jeranaias/studychat-tui/internal/controller"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the server could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a session was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // e.g. "export"
	Action  string // e.g. "write"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports a bad argument or flag value.
type UsageError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// configError marks a failure to load or save configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}
	var validationErr *controller.ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	var cfgInvalid config.ValidateErrors
	if errors.As(err, &cfgInvalid) {
		return ExitConfigError
	}

	var transportErr *backend.TransportError
	if errors.As(err, &transportErr) {
		switch transportErr.Type {
		case backend.ErrTypeNetwork:
			return ExitNetworkError
		case backend.ErrTypeNotFound:
			return ExitNotFoundError
		case backend.ErrTypeTimeout:
			return ExitTimeoutError
		}
	}

	return ExitGeneralError
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w in a consistent format. In JSON mode the
// error is a JSONResponse with error details.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse(command, err)
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.Encode(resp)
		return
	}
	fmt.Fprintf(w, "%s %s\n", paint(ErrorStyle, "[ERROR]"), errorText(err))
}

// errorText prefers the short user message of backend failures.
func errorText(err error) string {
	var te *backend.TransportError
	if errors.As(err, &te) {
		return controller.StatusMessage(err)
	}
	return err.Error()
}
