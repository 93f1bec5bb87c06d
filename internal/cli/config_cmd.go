// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Inspect and edit the configuration file.
//
// Examples:
//   studychat config show                      Effective configuration
//   studychat config get server.url
//   studychat config set chat.default_level advanced
//   studychat config keys                      All settable keys
//   studychat config path                      Config file location

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/studychat-tui/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
	Long: `Show or change configuration.

Changes are written to the config file. A running chat picks up the
level, streaming, theme and code style settings without a restart.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), loadedConfig.String())
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := loadedConfig.Get(args[0])
		if err != nil {
			return &UsageError{Field: "key", Value: args[0], Reason: err.Error(), Example: "studychat config keys"}
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return &configError{err: err}
		}
		if err := setConfigValue(path, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", paint(SuccessStyle, "Set"), args[0], args[1])
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, key := range config.GetAllKeys() {
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return &configError{err: err}
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configKeysCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// setConfigValue updates key in the file at path, creating it from
// defaults if missing. The result must validate before it is written.
func setConfigValue(path, key, value string) error {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			return &configError{err: err}
		}
		cfg = loaded
	}

	if err := cfg.Set(strings.TrimSpace(key), value); err != nil {
		return &UsageError{Field: "key", Value: key, Reason: err.Error(), Example: "studychat config set ui.theme light"}
	}
	if err := cfg.Validate(); err != nil {
		return &configError{err: err}
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return &configError{err: err}
	}
	return nil
}
