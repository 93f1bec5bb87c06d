// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"errors"
	"fmt"

	"github.com/jeranaias/studychat-tui/internal/backend"
)

// ValidationError reports input rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MissingResourceError reports a required collaborator that was not
// provided. It is a configuration error, not recoverable at runtime.
type MissingResourceError struct {
	Resource string
}

func (e *MissingResourceError) Error() string {
	return "missing required resource: " + e.Resource
}

var (
	// ErrNoActiveSession is returned when an action needs an active session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrNoAssistantReply is returned by Regenerate when there is nothing
	// to replace.
	ErrNoAssistantReply = errors.New("no assistant reply to regenerate")

	// ErrNotConfirmed is returned by Delete when the user declines.
	ErrNotConfirmed = errors.New("delete not confirmed")

	// ErrEmptyTranscript is returned when copying or exporting nothing.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// StatusMessage returns the short text shown for err.
func StatusMessage(err error) string {
	var te *backend.TransportError
	if errors.As(err, &te) {
		return te.UserMessage()
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}

// Hint returns a one-line suggestion for resolving err, or "" when there
// is nothing more useful to say than the error itself.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	var te *backend.TransportError
	if errors.As(err, &te) {
		switch te.Type {
		case backend.ErrTypeNetwork:
			return "Check that the study server is running and server.url is correct"
		case backend.ErrTypeTimeout:
			return "The server is slow to answer; try again or raise server.timeout_secs"
		case backend.ErrTypeRateLimited:
			return "Too many requests; wait a minute before sending again"
		case backend.ErrTypeNotFound:
			return "The session no longer exists; pick another from the list"
		case backend.ErrTypeServer:
			return "The server failed; see its logs for details"
		case backend.ErrTypeDecode:
			return "Unexpected server response; check the client and server versions"
		}
		return ""
	}
	switch {
	case errors.Is(err, ErrNoActiveSession):
		return "Start a session first"
	case errors.Is(err, ErrNoAssistantReply):
		return "Send a message before regenerating"
	case errors.Is(err, ErrEmptyTranscript):
		return "Nothing to export yet"
	}
	return ""
}
