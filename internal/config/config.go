// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete studychat configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// ServerConfig locates and paces the study server.
type ServerConfig struct {
	// URL is the server base URL
	URL string `toml:"url" json:"url"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// StreamTimeoutSecs bounds the wait for stream response headers
	StreamTimeoutSecs int `toml:"stream_timeout_secs" json:"stream_timeout_secs"`
	// MaxRetries applies to idempotent requests only
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// RateLimit is requests per minute; zero or negative disables the limiter
	RateLimit int `toml:"rate_limit" json:"rate_limit"`
	// Burst is the limiter bucket size
	Burst int `toml:"burst" json:"burst"`
	// UserAgent is sent with every request
	UserAgent string `toml:"user_agent" json:"user_agent"`
}

// ChatConfig contains chat behavior settings.
type ChatConfig struct {
	// DefaultLevel is beginner, intermediate or advanced
	DefaultLevel string `toml:"default_level" json:"default_level"`
	// StreamReplies uses the streaming endpoints
	StreamReplies bool `toml:"stream_replies" json:"stream_replies"`
	// DefaultTitle names new sessions
	DefaultTitle string `toml:"default_title" json:"default_title"`
	// ConfirmDelete asks before deleting a session
	ConfirmDelete bool `toml:"confirm_delete" json:"confirm_delete"`
	// ExportDir receives PDFs and transcript exports
	ExportDir string `toml:"export_dir" json:"export_dir"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light"; the persisted theme pointer wins
	// once the user toggles it
	Theme string `toml:"theme" json:"theme"`
	// Mode is "auto", "tui" or "plain"
	Mode string `toml:"mode" json:"mode"`
	// SidebarWidth is the session list width in columns
	SidebarWidth int `toml:"sidebar_width" json:"sidebar_width"`
	// CodeThemeDark and CodeThemeLight are chroma style names
	CodeThemeDark  string `toml:"code_theme_dark" json:"code_theme_dark"`
	CodeThemeLight string `toml:"code_theme_light" json:"code_theme_light"`
}

// StorageConfig selects the pointer store.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory"
	Backend string `toml:"backend" json:"backend"`
	// Path defaults to prefs.json or prefs.db in the data directory
	Path string `toml:"path" json:"path"`
}

// LoggingConfig contains log settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level"`
	// File receives logs while the TUI owns the terminal
	File string `toml:"file" json:"file"`
	// Pretty selects console output instead of JSON
	Pretty bool `toml:"pretty" json:"pretty"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:               "http://127.0.0.1:8000",
			TimeoutSecs:       60,
			StreamTimeoutSecs: 30,
			MaxRetries:        2,
			Burst:             5,
			UserAgent:         "studychat-tui",
		},
		Chat: ChatConfig{
			DefaultLevel:  string(model.LevelBeginner),
			StreamReplies: true,
			DefaultTitle:  "New Chat",
			ConfirmDelete: true,
			ExportDir:     ".",
		},
		UI: UIConfig{
			Theme:          "auto",
			Mode:           "auto",
			SidebarWidth:   30,
			CodeThemeDark:  "monokai",
			CodeThemeLight: "github",
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the studychat configuration directory path. It also
// holds the pointer store and log file.
func ConfigDir() (string, error) {
	if dir := os.Getenv("STUDYCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".studychat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// dataPath joins name onto the config directory, falling back to the
// working directory when no home is available.
func dataPath(name string) string {
	dir, err := ConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, name)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.studychat/config.toml if present, then applies environment
// overrides, defaults and validation.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		return finish(cfg)
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	// Server
	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.TimeoutSecs == 0 {
		cfg.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if cfg.Server.StreamTimeoutSecs == 0 {
		cfg.Server.StreamTimeoutSecs = defaults.Server.StreamTimeoutSecs
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = defaults.Server.Burst
	}
	if cfg.Server.UserAgent == "" {
		cfg.Server.UserAgent = defaults.Server.UserAgent
	}

	// Chat
	if cfg.Chat.DefaultLevel == "" {
		cfg.Chat.DefaultLevel = defaults.Chat.DefaultLevel
	}
	cfg.Chat.DefaultLevel = strings.ToLower(cfg.Chat.DefaultLevel)
	if cfg.Chat.DefaultTitle == "" {
		cfg.Chat.DefaultTitle = defaults.Chat.DefaultTitle
	}
	if cfg.Chat.ExportDir == "" {
		cfg.Chat.ExportDir = defaults.Chat.ExportDir
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.Mode == "" {
		cfg.UI.Mode = defaults.UI.Mode
	}
	if cfg.UI.SidebarWidth == 0 {
		cfg.UI.SidebarWidth = defaults.UI.SidebarWidth
	}
	if cfg.UI.CodeThemeDark == "" {
		cfg.UI.CodeThemeDark = defaults.UI.CodeThemeDark
	}
	if cfg.UI.CodeThemeLight == "" {
		cfg.UI.CodeThemeLight = defaults.UI.CodeThemeLight
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Backend {
		case "sqlite":
			cfg.Storage.Path = dataPath("prefs.db")
		case "file":
			cfg.Storage.Path = dataPath("prefs.json")
		}
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = dataPath("studychat.log")
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to ~/.studychat/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the configuration to path atomically with 0600
// permissions.
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# studychat configuration file\n")
	buf.WriteString("# Generated by studychat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if u, err := url.Parse(c.Server.URL); err != nil {
		add("server.url", "invalid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.url", "scheme must be http or https, got %q", u.Scheme)
	} else if u.Host == "" {
		add("server.url", "missing host")
	}
	if c.Server.TimeoutSecs < 0 {
		add("server.timeout_secs", "cannot be negative")
	}
	if c.Server.StreamTimeoutSecs < 0 {
		add("server.stream_timeout_secs", "cannot be negative")
	}
	if c.Server.MaxRetries < 0 || c.Server.MaxRetries > 10 {
		add("server.max_retries", "must be between 0 and 10")
	}
	if c.Server.Burst < 0 {
		add("server.burst", "cannot be negative")
	}

	// Chat
	if _, err := model.ParseLevel(c.Chat.DefaultLevel); err != nil {
		add("chat.default_level", "invalid level '%s', must be one of: beginner, intermediate, advanced", c.Chat.DefaultLevel)
	}
	if strings.TrimSpace(c.Chat.DefaultTitle) == "" {
		add("chat.default_title", "cannot be blank")
	}

	// UI
	if !oneOf(c.UI.Theme, "auto", "dark", "light") {
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}
	if !oneOf(c.UI.Mode, "auto", "tui", "plain") {
		add("ui.mode", "invalid mode '%s', must be one of: auto, tui, plain", c.UI.Mode)
	}
	if c.UI.SidebarWidth < 16 || c.UI.SidebarWidth > 80 {
		add("ui.sidebar_width", "must be between 16 and 80")
	}

	// Storage
	if !oneOf(c.Storage.Backend, "file", "sqlite", "memory") {
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}

	// Logging
	if !oneOf(c.Logging.Level, "trace", "debug", "info", "warn", "error", "disabled") {
		add("logging.level", "invalid level '%s'", c.Logging.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - STUDYCHAT_SERVER_URL: overrides server.url
//   - STUDYCHAT_LEVEL: overrides chat.default_level
//   - STUDYCHAT_STREAM: "0" or "false" disables streaming replies
//   - STUDYCHAT_THEME: overrides ui.theme
//   - STUDYCHAT_MODE: overrides ui.mode
//   - STUDYCHAT_STORAGE: overrides storage.backend
//   - STUDYCHAT_STORAGE_PATH: overrides storage.path
//   - STUDYCHAT_LOG_LEVEL: overrides logging.level
//   - STUDYCHAT_LOG_FILE: overrides logging.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("STUDYCHAT_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("STUDYCHAT_LEVEL"); v != "" {
		c.Chat.DefaultLevel = v
	}
	if v := os.Getenv("STUDYCHAT_STREAM"); v != "" {
		c.Chat.StreamReplies = parseBool(v)
	}
	if v := os.Getenv("STUDYCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("STUDYCHAT_MODE"); v != "" {
		c.UI.Mode = v
	}
	if v := os.Getenv("STUDYCHAT_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("STUDYCHAT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("STUDYCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STUDYCHAT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.theme").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(strings.TrimSpace(key), ".")
	if len(parts) == 0 || parts[0] == "" {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"server.url",
		"server.timeout_secs",
		"server.stream_timeout_secs",
		"server.max_retries",
		"server.rate_limit",
		"server.burst",
		"server.user_agent",
		"chat.default_level",
		"chat.stream_replies",
		"chat.default_title",
		"chat.confirm_delete",
		"chat.export_dir",
		"ui.theme",
		"ui.mode",
		"ui.sidebar_width",
		"ui.code_theme_dark",
		"ui.code_theme_light",
		"storage.backend",
		"storage.path",
		"logging.level",
		"logging.file",
		"logging.pretty",
	}
}

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Load errors fall back to defaults.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("using default configuration")
			cfg = Default()
			fillDefaults(cfg)
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
