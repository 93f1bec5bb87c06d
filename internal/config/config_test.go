// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STUDYCHAT_HOME", dir)
	for _, k := range []string{
		"STUDYCHAT_SERVER_URL", "STUDYCHAT_LEVEL", "STUDYCHAT_STREAM", "STUDYCHAT_THEME",
		"STUDYCHAT_MODE", "STUDYCHAT_STORAGE", "STUDYCHAT_STORAGE_PATH", "STUDYCHAT_LOG_LEVEL",
		"STUDYCHAT_LOG_FILE",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.URL)
	assert.Equal(t, 0, cfg.Server.RateLimit, "limiter is opt-in")
	assert.Equal(t, "beginner", cfg.Chat.DefaultLevel)
	assert.True(t, cfg.Chat.StreamReplies)
	assert.True(t, cfg.Chat.ConfirmDelete)
	assert.Equal(t, "New Chat", cfg.Chat.DefaultTitle)
	assert.Equal(t, "auto", cfg.UI.Theme)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Default().Server.URL, cfg.Server.URL)
	assert.Equal(t, filepath.Join(dir, "prefs.json"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join(dir, "studychat.log"), cfg.Logging.File)
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[server]
url = "https://study.example.com"

[chat]
default_level = "Advanced"
stream_replies = false

[storage]
backend = "sqlite"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://study.example.com", cfg.Server.URL)
	assert.Equal(t, 60, cfg.Server.TimeoutSecs)
	assert.Equal(t, "advanced", cfg.Chat.DefaultLevel)
	assert.False(t, cfg.Chat.StreamReplies)
	assert.True(t, cfg.Chat.ConfirmDelete)
	assert.Equal(t, filepath.Join(dir, "prefs.db"), cfg.Storage.Path)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[server]
url = "ftp://nowhere"

[chat]
default_level = "expert"

[ui]
theme = "purple"
`)

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"server.url", "chat.default_level", "ui.theme"}, fields)
}

func TestLoadFromPath_Malformed(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[server\nurl=")

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("STUDYCHAT_SERVER_URL", "http://10.0.0.5:9000")
	t.Setenv("STUDYCHAT_LEVEL", "intermediate")
	t.Setenv("STUDYCHAT_STREAM", "false")
	t.Setenv("STUDYCHAT_THEME", "light")
	t.Setenv("STUDYCHAT_STORAGE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:9000", cfg.Server.URL)
	assert.Equal(t, "intermediate", cfg.Chat.DefaultLevel)
	assert.False(t, cfg.Chat.StreamReplies)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Empty(t, cfg.Storage.Path)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Server.URL = "https://tutor.example.org"
	cfg.Chat.StreamReplies = false
	cfg.UI.SidebarWidth = 40
	require.NoError(t, SaveTo(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://tutor.example.org", loaded.Server.URL)
	assert.False(t, loaded.Chat.StreamReplies)
	assert.Equal(t, 40, loaded.UI.SidebarWidth)
}

// =============================================================================
// GET / SET
// =============================================================================

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("server.url")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", v)

	require.NoError(t, cfg.Set("ui.sidebar_width", "42"))
	assert.Equal(t, 42, cfg.UI.SidebarWidth)

	require.NoError(t, cfg.Set("chat.stream_replies", "no"))
	assert.False(t, cfg.Chat.StreamReplies)

	require.NoError(t, cfg.Set("chat.default-level", "advanced"))
	assert.Equal(t, "advanced", cfg.Chat.DefaultLevel)

	_, err = cfg.Get("server.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("server.url.host", "x"))
	assert.Error(t, cfg.Set("ui.sidebar_width", "wide"))

	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Server.URL = "http://other:1"
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.URL)
}

// =============================================================================
// GLOBAL
// =============================================================================

func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()
	}
	wg.Wait()
}

func TestConfig_ReloadGlobal(t *testing.T) {
	dir := isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	assert.Equal(t, Default().Server.URL, Global().Server.URL)

	writeFile(t, filepath.Join(dir, "config.toml"), "[server]\nurl = \"http://reloaded:8000\"\n")
	require.NoError(t, ReloadGlobal())
	assert.Equal(t, "http://reloaded:8000", Global().Server.URL)
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[ui]\ntheme = \"dark\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got *Config
	require.NoError(t, watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			got = cfg
		}
	}))

	cfg := Default()
	cfg.UI.Theme = "light"
	require.NoError(t, SaveTo(cfg, path))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.UI.Theme == "light"
	}, 3*time.Second, 20*time.Millisecond)
}
