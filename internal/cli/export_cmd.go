// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// export_cmd.go - Export a session without opening the chat.
//
// Examples:
//   studychat export                       Active session as Markdown
//   studychat export 42 --format html      Session 42 as HTML
//   studychat export --format pdf --out ~/notes
//
// Formats: markdown (md), html, json, yaml (yml), text (txt), pdf.
// The pdf format is rendered by the server.

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/studychat-tui/internal/backend"
	"github.com/jeranaias/studychat-tui/internal/config"
	"github.com/jeranaias/studychat-tui/internal/export"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/storage"
)

var (
	exportFormat string
	exportOut    string
	exportOpen   bool
)

var exportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a session transcript",
	Long: `Export a session transcript to a file.

Without a session id the active session is exported. Supported formats are
markdown, html, json, yaml, text and pdf.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id model.SessionID
		if len(args) == 1 {
			id = model.SessionID(strings.TrimSpace(args[0]))
		}
		path, err := exportSession(cmd.Context(), loadedConfig, id, exportFormat, exportOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", paint(SuccessStyle, "Saved"), path)
		if exportOpen {
			if err := export.OpenFile(path); err != nil {
				return &CommandError{Command: "export", Action: "open", Reason: "could not open file", Err: err}
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "markdown", "Export format: "+strings.Join(append(export.Formats, "pdf"), ", "))
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output directory (default chat.export_dir)")
	exportCmd.Flags().BoolVar(&exportOpen, "open", false, "Open the file after exporting")
	rootCmd.AddCommand(exportCmd)
}

// exportSession writes session id, or the persisted active session when id
// is empty, and returns the written path. The persisted pointers are read
// but never changed.
func exportSession(ctx context.Context, cfg *config.Config, id model.SessionID, format, dir string) (string, error) {
	if dir == "" {
		dir = cfg.Chat.ExportDir
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "pdf" {
		if _, err := export.NewExporter(format, nil); err != nil {
			return "", &UsageError{Field: "format", Value: format, Reason: "unsupported", Example: "--format md"}
		}
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return "", &configError{err: fmt.Errorf("open pointer store: %w", err)}
	}
	defer closeStore(store)
	ptrs := storage.NewPointers(store)
	if id.IsZero() {
		id = ptrs.ActiveSessionID()
	}
	if id.IsZero() {
		return "", &UsageError{Field: "session", Reason: "no active session; pass a session id", Example: "studychat export 42"}
	}

	client, err := newClient(cfg)
	if err != nil {
		return "", &configError{err: err}
	}
	sess := findSession(ctx, client, id)

	if format == "pdf" {
		data, err := client.ExportPDF(ctx, id)
		if err != nil {
			return "", err
		}
		return export.SavePDF(dir, sess.Title, data)
	}

	msgs, err := client.GetMessages(ctx, id)
	if err != nil {
		return "", err
	}
	opts := export.DefaultOptions()
	opts.OutputDir = dir
	opts.Theme = string(ptrs.ThemeMode())
	level := sess.Level
	if level == "" {
		level, _ = model.ParseLevel(cfg.Chat.DefaultLevel)
	}
	return export.ExportToFile(&export.Transcript{Session: sess, Messages: msgs, Level: level}, format, opts)
}

// findSession returns the listed session for id, or a bare session when the
// list is unavailable.
func findSession(ctx context.Context, client *backend.Client, id model.SessionID) model.Session {
	sessions, err := client.ListSessions(ctx)
	if err == nil {
		for _, s := range sessions {
			if s.ID == id {
				return s
			}
		}
	}
	return model.Session{ID: id}
}
