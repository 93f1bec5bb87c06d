// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions_cmd.go - List study sessions without starting a chat.
//
// Examples:
//   studychat sessions          Table of sessions, newest first
//   studychat sessions --json   Machine-readable list

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/studychat-tui/internal/config"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/storage"
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls", "list"},
	Short:   "List study sessions",
	Long: `List study sessions on the server, newest first.

The session the chat will reopen is marked with *.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return OutputJSON(out, sessionsJSON, "sessions", func() (interface{}, error) {
			rows, err := listSessions(cmd.Context(), loadedConfig)
			if err != nil {
				return nil, err
			}
			if !sessionsJSON {
				printSessionTable(out, rows)
			}
			return rows, nil
		})
	},
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(sessionsCmd)
}

// sessionRow is one listed session.
type sessionRow struct {
	ID            model.SessionID `json:"id"`
	Title         string          `json:"title"`
	Preview       string          `json:"preview,omitempty"`
	LastMessageAt string          `json:"last_message_at,omitempty"`
	Level         model.Level     `json:"level,omitempty"`
	Active        bool            `json:"active"`
}

// listSessions fetches sessions and marks the persisted active one. It
// does not change the persisted pointer.
func listSessions(ctx context.Context, cfg *config.Config) ([]sessionRow, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, &configError{err: err}
	}
	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	active := persistedActive(cfg)

	rows := make([]sessionRow, 0, len(sessions))
	for _, s := range sessions {
		row := sessionRow{
			ID:      s.ID,
			Title:   s.DisplayTitle(),
			Preview: s.LastPreview,
			Level:   s.Level,
			Active:  s.ID == active,
		}
		if !s.LastMessageAt.IsZero() {
			row.LastMessageAt = s.LastMessageAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// persistedActive reads the active session pointer, or "" if the store
// cannot be opened.
func persistedActive(cfg *config.Config) model.SessionID {
	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return ""
	}
	defer closeStore(store)
	return storage.NewPointers(store).ActiveSessionID()
}

func printSessionTable(w io.Writer, rows []sessionRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, paint(DimStyle, "No sessions yet. Run studychat to start one."))
		return
	}
	fmt.Fprintln(w, paint(SectionStyle, fmt.Sprintf("  %s %s %s", pad("ID", 14), pad("TITLE", 36), "LAST MESSAGE")))
	for _, r := range rows {
		marker := "  "
		if r.Active {
			marker = paint(HighlightStyle, "* ")
		}
		when := r.LastMessageAt
		if when == "" {
			when = "-"
		}
		fmt.Fprintf(w, "%s%s %s %s\n", marker,
			pad(truncate(string(r.ID), 14), 14),
			pad(truncate(r.Title, 36), 36),
			paint(DimStyle, when))
	}
}
