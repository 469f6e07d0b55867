// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and validation

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  origin: "https://example.org"
  token: "abc"

connection:
  reconnect_interval: "2s"
  write_timeout: "3s"

store:
  path: "/tmp/cache.db"
  driver: "sqlite3"

page:
  board: "a"
  thread: 1234

push:
  enabled: true
  dedupe_ttl: "1m"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.org", cfg.Server.Origin)
	assert.Equal(t, "abc", cfg.Server.Token)
	assert.Equal(t, "/api/socket", cfg.Server.SocketPath, "default kept")
	assert.Equal(t, 2*time.Second, cfg.Connection.ReconnectInterval)
	assert.Equal(t, 10*time.Second, cfg.Connection.HandshakeTimeout, "default kept")
	assert.Equal(t, 3*time.Second, cfg.Connection.WriteTimeout)
	assert.Equal(t, int64(1<<20), cfg.Connection.ReadLimit)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, "a", cfg.Page.Board)
	assert.Equal(t, uint64(1234), cfg.Page.Thread)
	assert.True(t, cfg.Push.Enabled)
	assert.Equal(t, time.Minute, cfg.Push.DedupeTTL)
	assert.Equal(t, 1024, cfg.Push.DedupeSize)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
origin = "http://localhost:8000"

[connection]
reconnect_interval = "500ms"

[page]
board = "g"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.Server.Origin)
	assert.Equal(t, 500*time.Millisecond, cfg.Connection.ReconnectInterval)
	assert.Equal(t, "g", cfg.Page.Board)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_THREADSYNC_ORIGIN", "https://board.test")
	t.Setenv("TEST_THREADSYNC_TOKEN", "secret-token")

	path := writeConfig(t, "config.yaml", `
server:
  origin: "${TEST_THREADSYNC_ORIGIN}"
  token: "${TEST_THREADSYNC_TOKEN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://board.test", cfg.Server.Origin)
	assert.Equal(t, "secret-token", cfg.Server.Token)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing origin", `page: {board: a}`, "server.origin is required"},
		{"bad origin scheme", `server: {origin: "ftp://x"}`, "http or https"},
		{"bad duration", "server: {origin: \"https://x\"}\nconnection: {reconnect_interval: soon}", "reconnect_interval"},
		{"zero interval", "server: {origin: \"https://x\"}\nconnection: {reconnect_interval: 0s}", "must be positive"},
		{"bad driver", "server: {origin: \"https://x\"}\nstore: {driver: postgres}", "store.driver"},
		{"bad level", "server: {origin: \"https://x\"}\nlogging: {level: loud}", "logging.level"},
		{"bad format", "server: {origin: \"https://x\"}\nlogging: {format: xml}", "logging.format"},
		{"bad yaml", "server: [", "parsing config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTemplate_Loads(t *testing.T) {
	t.Setenv("THREADSYNC_TOKEN", "")
	cfg, err := Load(writeConfig(t, "config.yaml", Template))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Connection.ReconnectInterval)
	assert.False(t, cfg.Push.Enabled)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("trace")
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("THREADSYNC_CONFIG", "/etc/threadsync.yaml")
	assert.Equal(t, "/etc/threadsync.yaml", DefaultPath())

	t.Setenv("THREADSYNC_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "threadsync", "config.yaml"), DefaultPath())
}

func TestDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "threadsync"), DataDir())
}
