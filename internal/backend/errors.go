// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes transport errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNetwork
	ErrTypeTimeout
	ErrTypeCanceled
	ErrTypeBadRequest
	ErrTypeNotFound
	ErrTypeRateLimited
	ErrTypeServer
	ErrTypeDecode
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeNetwork:
		return "network"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeCanceled:
		return "canceled"
	case ErrTypeBadRequest:
		return "bad_request"
	case ErrTypeNotFound:
		return "not_found"
	case ErrTypeRateLimited:
		return "rate_limited"
	case ErrTypeServer:
		return "server"
	case ErrTypeDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// TransportError is a network or server failure on a backend call.
type TransportError struct {
	Type    ErrorType
	Op      string // e.g. "list sessions"
	Status  int    // HTTP status, 0 if no response
	Message string // server-provided or descriptive message
	Cause   error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is matches another *TransportError of the same Type, so the sentinels
// below work with errors.Is.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// UserMessage returns the text suitable for a status line.
func (e *TransportError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Type.String() + " error"
}

// Sentinel errors for easy checking.
var (
	ErrNetwork     = &TransportError{Type: ErrTypeNetwork, Message: "server unreachable"}
	ErrTimeout     = &TransportError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrCanceled    = &TransportError{Type: ErrTypeCanceled, Message: "request canceled"}
	ErrNotFound    = &TransportError{Type: ErrTypeNotFound, Message: "not found"}
	ErrRateLimited = &TransportError{Type: ErrTypeRateLimited, Message: "too many requests"}
)

// classify converts a transport-level error into a TransportError.
func classify(op string, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &TransportError{Type: ErrTypeCanceled, Op: op, Message: "request canceled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Type: ErrTypeTimeout, Op: op, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Type: ErrTypeTimeout, Op: op, Message: "request timed out", Cause: err}
	}
	return &TransportError{Type: ErrTypeNetwork, Op: op, Message: "server unreachable", Cause: err}
}

// statusError builds a TransportError for a non-2xx response.
func statusError(op string, status int, serverMsg string) *TransportError {
	typ := ErrTypeServer
	switch {
	case status == http.StatusNotFound:
		typ = ErrTypeNotFound
	case status == http.StatusTooManyRequests:
		typ = ErrTypeRateLimited
	case status >= 400 && status < 500:
		typ = ErrTypeBadRequest
	}
	if serverMsg == "" {
		serverMsg = fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	}
	return &TransportError{Type: typ, Op: op, Status: status, Message: serverMsg}
}
