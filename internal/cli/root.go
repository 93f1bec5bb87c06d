// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/studychat-tui/internal/config"
	"github.com/jeranaias/studychat-tui/internal/logging"
	"github.com/jeranaias/studychat-tui/internal/render"
)

// Version information, set by main from build flags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	serverURL  string
	logLevel   string
	plainMode  bool

	// loadedConfig is set by the persistent pre-run of every command.
	loadedConfig *config.Config
)

// rootCmd starts the interactive client when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "studychat",
	Short: "Terminal client for the study chat assistant",
	Long: `studychat is a terminal client for a study assistant server.

It keeps a list of study sessions, streams replies as they are written
and remembers the session you were working in between runs.

Quick Start:
  studychat                      # Full-screen chat (plain prompt when piped)
  studychat --plain              # Line-oriented chat
  studychat sessions             # List sessions
  studychat export --format md   # Save the active session as Markdown
  studychat config show          # Show the effective configuration`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default ~/.studychat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Study server URL (overrides server.url)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&plainMode, "plain", false, "Use the line-oriented prompt instead of the full-screen UI")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "studychat "+versionString())
		return nil
	},
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return execute(context.Background(), os.Args[1:])
}

func execute(ctx context.Context, args []string) int {
	rootCmd.Version = versionString()
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var reported *reportedError
	if !errors.As(err, &reported) {
		DisplayError(rootCmd.ErrOrStderr(), rootCmd.Name(), err, false)
	}
	return GetExitCode(err)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// loadConfig reads the config file, applies flag overrides and configures
// logging and code highlighting. Logs go to stderr until the TUI moves
// them to a file.
func loadConfig(cmd *cobra.Command, args []string) error {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFromPath(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return &configError{err: err}
	}

	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if plainMode {
		cfg.UI.Mode = ModePlain
	}
	if err := cfg.Validate(); err != nil {
		return &configError{err: err}
	}

	config.SetGlobal(cfg)
	loadedConfig = cfg
	render.SetCodeStyles(cfg.UI.CodeThemeDark, cfg.UI.CodeThemeLight)
	logging.Configure(cfg.Logging.Level, cfg.Logging.Pretty, cmd.ErrOrStderr())
	return nil
}

// configPath returns the file the active configuration came from.
func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return config.ConfigPath()
}

// =============================================================================
// CHAT ENTRY POINT
// =============================================================================

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	mode, err := chooseMode(cfg.UI.Mode, IsTTY() && IsStdoutTTY())
	if err != nil {
		return err
	}
	if mode == ModeTUI {
		return runTUI(cmd.Context(), cfg)
	}
	return runREPL(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
}
