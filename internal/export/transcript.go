// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"time"

	"github.com/jeranaias/studychat-tui/internal/model"
)

// Transcript is the input to every exporter.
type Transcript struct {
	Session  model.Session
	Messages []model.Message
	Level    model.Level

	// ExportedAt defaults to now.
	ExportedAt time.Time
}

// Title returns the session's display title.
func (t *Transcript) Title() string {
	return t.Session.DisplayTitle()
}

func (t *Transcript) validate() error {
	if t == nil {
		return errors.New("transcript is nil")
	}
	if len(t.Messages) == 0 {
		return errors.New("transcript has no messages")
	}
	return nil
}

func (t *Transcript) exportedAt() time.Time {
	if t.ExportedAt.IsZero() {
		return time.Now()
	}
	return t.ExportedAt
}

// document is the serialized shape shared by the JSON and YAML exporters.
type document struct {
	SessionID  model.SessionID `json:"session_id" yaml:"session_id"`
	Title      string          `json:"title" yaml:"title"`
	Level      model.Level     `json:"level,omitempty" yaml:"level,omitempty"`
	ExportedAt string          `json:"exported_at" yaml:"exported_at"`
	Messages   []documentEntry `json:"messages" yaml:"messages"`
}

type documentEntry struct {
	Role      model.Role `json:"role" yaml:"role"`
	Content   string     `json:"content" yaml:"content"`
	CreatedAt string     `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

func newDocument(t *Transcript) document {
	doc := document{
		SessionID:  t.Session.ID,
		Title:      t.Title(),
		Level:      t.Level,
		ExportedAt: t.exportedAt().Format(time.RFC3339),
		Messages:   make([]documentEntry, 0, len(t.Messages)),
	}
	for _, m := range t.Messages {
		e := documentEntry{Role: m.Role, Content: m.Content}
		if !m.CreatedAt.IsZero() {
			e.CreatedAt = m.CreatedAt.Format(time.RFC3339)
		}
		doc.Messages = append(doc.Messages, e)
	}
	return doc
}
