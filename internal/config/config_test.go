// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, "http://localhost:3000/api/v1", cfg.Server.UpstreamURL)
	assert.Equal(t, 30*time.Second, cfg.Server.UpstreamTimeout())
	assert.Equal(t, 1000000, cfg.Server.DefaultBudget)
	assert.Equal(t, 3, cfg.Server.DefaultMaxBadAttempt)
	assert.Equal(t, "0.0.0.0:5001", cfg.Server.Addr())
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Server.Port = 6001
	cfg.UI.Theme = "light"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 6001, loaded.Server.Port)
	assert.Equal(t, "light", loaded.UI.Theme)
	assert.Equal(t, cfg.Server.UpstreamURL, loaded.Server.UpstreamURL)
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 7000\n"), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:5001", cfg.Client.BaseURL)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("NODE_SERVER_URL", "http://research:3000/api/v1")
	t.Setenv("DRCHAT_DEBUG", "true")
	t.Setenv("DRCHAT_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://research:3000/api/v1", cfg.Server.UpstreamURL)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfig_EnvOverrideInvalid(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	assert.Error(t, Default().ApplyEnvOverrides())
}

func TestLoad_UsesConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DRCHAT_HOME", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[client]\nbase_url = \"http://relay:9000\"\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://relay:9000", cfg.Client.BaseURL)

	hist, err := cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "history.db"), hist)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DRCHAT_TEST_DOTENV=from-file\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("DRCHAT_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("DRCHAT_TEST_DOTENV"))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad upstream", func(c *Config) { c.Server.UpstreamURL = "not a url" }, "server.upstream_url"},
		{"missing base url", func(c *Config) { c.Client.BaseURL = "" }, "client.base_url"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"zero budget", func(c *Config) { c.Server.DefaultBudget = 0 }, "server.default_budget"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.field, verrs[0].Field)
		})
	}
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

func TestConfig_ConcurrentAccess(t *testing.T) {
	t.Setenv("DRCHAT_HOME", t.TempDir())
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

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

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { changes <- c }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	cfg := Default()
	cfg.Server.UpstreamURL = "http://elsewhere:3000/api/v1"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-changes:
		assert.Equal(t, "http://elsewhere:3000/api/v1", got.Server.UpstreamURL)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}
