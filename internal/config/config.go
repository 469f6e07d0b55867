// ABOUTME: Configuration loading and parsing for threadsync
// ABOUTME: Reads YAML or TOML, expands ${VAR} references, parses durations and validates

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Connection ConnectionConfig `yaml:"connection" toml:"connection"`
	Store      StoreConfig      `yaml:"store" toml:"store"`
	Page       PageConfig       `yaml:"page" toml:"page"`
	Push       PushConfig       `yaml:"push" toml:"push"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// ServerConfig locates the imageboard server.
type ServerConfig struct {
	Origin            string `yaml:"origin" toml:"origin"` // page origin, e.g. https://example.org
	SocketPath        string `yaml:"socket_path" toml:"socket_path"`
	NotificationsPath string `yaml:"notifications_path" toml:"notifications_path"`
	Token             string `yaml:"token" toml:"token"`
}

// ConnectionConfig tunes the websocket transport.
type ConnectionConfig struct {
	ReconnectInterval time.Duration `yaml:"-" toml:"-"`
	HandshakeTimeout  time.Duration `yaml:"-" toml:"-"`
	WriteTimeout      time.Duration `yaml:"-" toml:"-"`
	ReadLimit         int64         `yaml:"read_limit" toml:"read_limit"`

	// Raw string values for parsing
	ReconnectIntervalRaw string `yaml:"reconnect_interval" toml:"reconnect_interval"`
	HandshakeTimeoutRaw  string `yaml:"handshake_timeout" toml:"handshake_timeout"`
	WriteTimeoutRaw      string `yaml:"write_timeout" toml:"write_timeout"`
}

// StoreConfig locates the local cache database.
type StoreConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
}

// PageConfig selects what the session synchronises.
type PageConfig struct {
	Board  string `yaml:"board" toml:"board"`
	Thread uint64 `yaml:"thread" toml:"thread"` // 0 for the board index
}

// PushConfig controls the notification stream.
type PushConfig struct {
	Enabled    bool          `yaml:"enabled" toml:"enabled"`
	DedupeTTL  time.Duration `yaml:"-" toml:"-"`
	DedupeSize int           `yaml:"dedupe_size" toml:"dedupe_size"`

	DedupeTTLRaw string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "text" or "json"
}

// Defaults returns a configuration with every optional field set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			SocketPath:        "/api/socket",
			NotificationsPath: "/api/notifications",
		},
		Connection: ConnectionConfig{
			ReadLimit:            1 << 20,
			ReconnectIntervalRaw: "5s",
			HandshakeTimeoutRaw:  "10s",
			WriteTimeoutRaw:      "10s",
		},
		Store: StoreConfig{
			Path:   filepath.Join(DataDir(), "threadsync.db"),
			Driver: "sqlite",
		},
		Page: PageConfig{
			Board: "all",
		},
		Push: PushConfig{
			DedupeSize:   1024,
			DedupeTTLRaw: "10m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file over the defaults. Files ending in .toml
// are parsed as TOML, anything else as YAML. Environment variables in the
// format ${VAR_NAME} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Defaults()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(re.FindStringSubmatch(match)[1])
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Origin == "" {
		return fmt.Errorf("server.origin is required")
	}
	u, err := url.Parse(c.Server.Origin)
	if err != nil {
		return fmt.Errorf("server.origin is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.origin must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("server.origin has no host")
	}
	if !strings.HasPrefix(c.Server.SocketPath, "/") {
		return fmt.Errorf("server.socket_path must start with /")
	}
	if c.Push.Enabled && !strings.HasPrefix(c.Server.NotificationsPath, "/") {
		return fmt.Errorf("server.notifications_path must start with / when push is enabled")
	}

	if c.Connection.ReconnectInterval <= 0 {
		return fmt.Errorf("connection.reconnect_interval must be positive")
	}
	if c.Connection.ReadLimit < 0 {
		return fmt.Errorf("connection.read_limit must not be negative")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	switch c.Store.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("store.driver must be sqlite or sqlite3, got %q", c.Store.Driver)
	}

	if c.Page.Board == "" {
		return fmt.Errorf("page.board is required")
	}

	if c.Push.Enabled && c.Push.DedupeSize <= 0 {
		return fmt.Errorf("push.dedupe_size must be positive")
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"reconnect_interval", cfg.Connection.ReconnectIntervalRaw, &cfg.Connection.ReconnectInterval},
		{"handshake_timeout", cfg.Connection.HandshakeTimeoutRaw, &cfg.Connection.HandshakeTimeout},
		{"write_timeout", cfg.Connection.WriteTimeoutRaw, &cfg.Connection.WriteTimeout},
		{"dedupe_ttl", cfg.Push.DedupeTTLRaw, &cfg.Push.DedupeTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", level)
	}
}

// DefaultPath returns the path to the config file.
// Priority: THREADSYNC_CONFIG env var > XDG_CONFIG_HOME/threadsync/config.yaml > ~/.config/threadsync/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("THREADSYNC_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "threadsync", "config.yaml")
}

// DataDir returns the directory for the local cache.
// Priority: XDG_DATA_HOME/threadsync > ~/.local/share/threadsync
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "threadsync")
}

// Template is the starter file written by `threadsync config init`.
const Template = `# threadsync configuration
server:
  origin: "https://example.org"
  socket_path: "/api/socket"
  notifications_path: "/api/notifications"
  token: "${THREADSYNC_TOKEN}"

connection:
  reconnect_interval: "5s"
  handshake_timeout: "10s"
  write_timeout: "10s"
  read_limit: 1048576

store:
  # path: "~/.local/share/threadsync/threadsync.db"
  driver: "sqlite"

page:
  board: "all"
  thread: 0

push:
  enabled: false
  dedupe_ttl: "10m"
  dedupe_size: 1024

logging:
  level: "info"
  format: "text"
`
