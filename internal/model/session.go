// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SESSION ID
// =============================================================================

// SessionID is the canonical session identifier. The server may encode ids
// as JSON numbers or strings; both decode to the same SessionID.
type SessionID string

// String returns the id as text.
func (id SessionID) String() string {
	return string(id)
}

// IsZero reports whether the id is unset.
func (id SessionID) IsZero() bool {
	return id == ""
}

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *SessionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("session id: %w", err)
		}
		*id = SessionID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	*id = SessionID(n.String())
	return nil
}

// =============================================================================
// TIMESTAMP
// =============================================================================

// timestampLayouts are tried in order; the server emits ISO-8601 with or
// without a zone offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp is a time decoded from the server's ISO-8601 strings. Naive
// timestamps are interpreted as UTC.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses an ISO-8601 timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// UnmarshalJSON accepts an ISO-8601 string or null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON encodes the zero time as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// =============================================================================
// LEVEL
// =============================================================================

// Level is the proficiency level the assistant tailors its replies to.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Levels lists all levels in selector order.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

// ParseLevel converts a string to a Level. Unknown values return an error.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBeginner:
		return LevelBeginner, nil
	case LevelIntermediate:
		return LevelIntermediate, nil
	case LevelAdvanced:
		return LevelAdvanced, nil
	}
	return "", fmt.Errorf("unknown level %q (want beginner, intermediate or advanced)", s)
}

// Next returns the level after l, wrapping around.
func (l Level) Next() Level {
	for i, lv := range Levels {
		if lv == l {
			return Levels[(i+1)%len(Levels)]
		}
	}
	return LevelBeginner
}

// String returns the level as text.
func (l Level) String() string {
	return string(l)
}

// =============================================================================
// SESSION
// =============================================================================

// Session is an immutable snapshot of one server-side conversation thread.
// Snapshots are replaced wholesale on every directory refresh.
type Session struct {
	ID            SessionID  `json:"id"`
	Title         string     `json:"title"`
	LastPreview   string     `json:"last_preview"`
	LastMessageAt Timestamp  `json:"last_at"`
	CreatedAt     Timestamp  `json:"created_at"`
	Level         Level      `json:"level,omitempty"`
}

// DisplayTitle returns the title, or "Session #<id>" when it is blank.
func (s Session) DisplayTitle() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return "Session #" + s.ID.String()
}

// HeaderLine returns the subtitle shown under the session title.
func (s Session) HeaderLine() string {
	if !s.LastMessageAt.IsZero() {
		return "Last message: " + s.LastMessageAt.Local().Format("2006-01-02 15:04")
	}
	return "Session ID: " + s.ID.String()
}

// Matches reports whether the title or preview contains query, ignoring case.
func (s Session) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.DisplayTitle()), q) ||
		strings.Contains(strings.ToLower(s.LastPreview), q)
}
