// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/jeranaias/drchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete drchat configuration.
type Config struct {
	Version string `toml:"version"`

	Server  ServerConfig  `toml:"server"`
	Client  ClientConfig  `toml:"client"`
	History HistoryConfig `toml:"history"`
	UI      UIConfig      `toml:"ui"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig configures the relay.
type ServerConfig struct {
	Host string `toml:"host" env:"DRCHAT_HOST" validate:"omitempty,hostname|ip"`
	Port int    `toml:"port" env:"PORT" validate:"min=1,max=65535"`

	// UpstreamURL is the research service the relay forwards to.
	UpstreamURL string `toml:"upstream_url" env:"NODE_SERVER_URL" validate:"required,url"`
	// UpstreamTimeoutSecs bounds query submission; streams have no timeout.
	UpstreamTimeoutSecs int `toml:"upstream_timeout_secs" env:"DRCHAT_UPSTREAM_TIMEOUT" validate:"min=1,max=600"`

	// Defaults applied to queries that omit them.
	DefaultBudget        int `toml:"default_budget" validate:"min=1"`
	DefaultMaxBadAttempt int `toml:"default_max_bad_attempt" validate:"min=0"`

	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64 `toml:"rate_limit" env:"DRCHAT_RATE_LIMIT" validate:"min=0"`
	RateBurst int     `toml:"rate_burst" validate:"min=0"`

	// CORSOrigins lists allowed origins; "*" allows all.
	CORSOrigins []string `toml:"cors_origins"`

	Debug bool `toml:"debug" env:"DRCHAT_DEBUG"`
}

// ClientConfig configures the chat client.
type ClientConfig struct {
	// BaseURL is the relay root the client talks to.
	BaseURL     string `toml:"base_url" env:"DRCHAT_BASE_URL" validate:"required,url"`
	TimeoutSecs int    `toml:"timeout_secs" env:"DRCHAT_TIMEOUT" validate:"min=1,max=600"`
}

// HistoryConfig configures conversation history.
type HistoryConfig struct {
	Enabled bool `toml:"enabled" env:"DRCHAT_HISTORY"`
	// Path of the SQLite database; empty means ~/.drchat/history.db.
	Path string `toml:"path" env:"DRCHAT_HISTORY_PATH"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme       string `toml:"theme" env:"DRCHAT_THEME" validate:"oneof=dark light auto"`
	ShowDetails bool   `toml:"show_details"`
	WordWrap    int    `toml:"word_wrap" validate:"min=0,max=400"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `toml:"level" env:"DRCHAT_LOG_LEVEL" validate:"oneof=debug info warn error"`
	// File receives logs; empty means stderr for the relay and
	// ~/.drchat/drchat.log for the TUI.
	File string `toml:"file" env:"DRCHAT_LOG_FILE"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Server: ServerConfig{
			Host:                 "0.0.0.0",
			Port:                 5001,
			UpstreamURL:          "http://localhost:3000/api/v1",
			UpstreamTimeoutSecs:  30,
			DefaultBudget:        1000000,
			DefaultMaxBadAttempt: 3,
			RateLimit:            10,
			RateBurst:            20,
			CORSOrigins:          []string{"*"},
		},
		Client: ClientConfig{
			BaseURL:     "http://localhost:5001",
			TimeoutSecs: 30,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		UI: UIConfig{
			Theme:    "auto",
			WordWrap: 80,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Addr returns the relay listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// UpstreamTimeout returns the submit timeout as a duration.
func (s ServerConfig) UpstreamTimeout() time.Duration {
	return time.Duration(s.UpstreamTimeoutSecs) * time.Second
}

// Timeout returns the client request timeout as a duration.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SlogLevel maps the configured level onto slog.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the drchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("DRCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".drchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// HistoryPath returns the history database path, resolving the default.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// LogPath returns the log file path, resolving the TUI default.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File != "" {
		return c.Logging.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "drchat.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads .env files into the process environment. Variables that
// are already set win. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from the default config file, falling back to
// defaults when it does not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return LoadFromPath(path)
	}

	cfg := Default()
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific TOML file with
// environment overrides and validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unknown config keys ignored", "path", path, "keys", fmt.Sprint(undecoded))
	}
	return nil
}

// ApplyEnvOverrides applies environment variables declared in the env tags
// of the config structures.
func (c *Config) ApplyEnvOverrides() error {
	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# drchat configuration file\n")
	buf.WriteString("# Environment variables (DRCHAT_*, PORT, NODE_SERVER_URL) override these values.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("# encode error: %v\n", err)
	}
	return buf.String()
}

// =============================================================================
// VALIDATION
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report TOML key names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

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

// Validate validates the configuration and returns ValidateErrors.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make(ValidateErrors, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Config.server.port"; drop the root type.
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		errs = append(errs, ValidationError{Field: field, Message: describe(fe)})
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("invalid URL %q", fe.Value())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("invalid value %q, must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
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
// access. Load failures fall back to defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
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

// SetGlobal sets the global configuration instance. Thread-safe.
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
