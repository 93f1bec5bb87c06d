// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "github.com/jeranaias/studychat-tui/internal/model"

// ListSessionsResponse is the body of GET /api/sessions.
type ListSessionsResponse struct {
	Sessions []model.Session `json:"sessions"`
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// CreateSessionResponse is returned by POST /api/sessions.
type CreateSessionResponse struct {
	SessionID model.SessionID `json:"session_id"`
	Title     string          `json:"title"`
}

// RenameRequest is the body of PATCH /api/sessions/{id}.
type RenameRequest struct {
	Title string `json:"title"`
}

// MessagesResponse is the body of GET /api/sessions/{id}/messages.
type MessagesResponse struct {
	SessionID model.SessionID `json:"session_id"`
	Messages  []model.Message `json:"messages"`
}

// ChatRequest is the body of the chat endpoints.
type ChatRequest struct {
	Message string      `json:"message"`
	Level   model.Level `json:"level"`
}

// RegenerateRequest is the body of the regenerate endpoints.
type RegenerateRequest struct {
	Level model.Level `json:"level"`
}

// ChatReply is returned by the non-streaming chat and regenerate endpoints.
type ChatReply struct {
	Reply string `json:"reply"`

	// SessionTitle is set when the server auto-titled the session.
	SessionTitle string `json:"session_title,omitempty"`
}

// errorResponse is the server's failure payload.
type errorResponse struct {
	Error string `json:"error"`
}
