// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in a session transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// CreatedAt is set for messages loaded from history.
	CreatedAt Timestamp `json:"created_at"`

	// Streaming is true while the assistant reply is still receiving chunks.
	// Never persisted.
	Streaming bool `json:"-"`
}

// NewUserMessage creates a finalized user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a finalized assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// IsUser returns true if this is a user message.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant returns true if this is an assistant message.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// IsEmpty returns true if the message has no visible content.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// FormatTranscript renders messages as "User: ..." / "Assistant: ..."
// paragraphs separated by blank lines.
func FormatTranscript(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Role.DisplayName()+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}
