// Package config provides configuration for the minutes server and CLI.
// It supports loading configuration from YAML files, environment variables,
// and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

// Default configuration values.
const (
	DefaultListenAddr      = ":8080"
	DefaultServerURL       = "http://localhost:8080"
	DefaultRequestTimeout  = 3 * time.Minute
	DefaultOutputFormat    = OutputFormatText
	DefaultConfigDir       = ".minutes"
	DefaultConfigFile      = "config.yaml"
	DefaultDemoLimit       = 5
	DefaultAnthropicModel  = "claude-sonnet-4-20250514"
	DefaultMaxTokens       = 4096
	DefaultTemperature     = 0.3
	DefaultWhisperModel    = "whisper-1"
	DefaultWhisperLanguage = "en"
	DefaultProviderTimeout = 120 * time.Second
	DefaultMaxAudioBytes   = 25 << 20
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
	MaxJSONBytes    int64         `yaml:"max_json_bytes,omitempty"`
	// MaxUploadBytes caps the whole multipart request.
	MaxUploadBytes int64 `yaml:"max_upload_bytes,omitempty"`
	MaxAudioBytes  int64 `yaml:"max_audio_bytes"`
}

// AccessConfig holds the admin secret and demo quotas.
type AccessConfig struct {
	// AdminPassword is the shared secret for unlimited access.
	AdminPassword string `yaml:"admin_password,omitempty"`
	// AdminPasswordHash is a bcrypt hash used instead of AdminPassword.
	AdminPasswordHash string `yaml:"admin_password_hash,omitempty"`
	// AnalyzeLimit is the number of free analyses per session.
	AnalyzeLimit int `yaml:"analyze_limit"`
	// TranscribeLimit is the number of free transcriptions per session.
	TranscribeLimit int `yaml:"transcribe_limit"`
}

// LedgerConfig selects and configures the usage ledger.
type LedgerConfig struct {
	// Backend is "memory" (single process) or "redis" (shared).
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redis_addr,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDB       int           `yaml:"redis_db,omitempty"`
	KeyPrefix     string        `yaml:"key_prefix,omitempty"`
	// TTL expires session records after first use. Zero keeps them.
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// AnthropicConfig configures the analysis model.
type AnthropicConfig struct {
	APIKey      string        `yaml:"api_key,omitempty"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// OpenAIConfig configures the transcription model.
type OpenAIConfig struct {
	APIKey   string        `yaml:"api_key,omitempty"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Model    string        `yaml:"model"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RemoteConfig configures the CLI's client commands.
type RemoteConfig struct {
	// ServerURL is the base URL of a running minutes server.
	ServerURL string        `yaml:"server_url"`
	Timeout   time.Duration `yaml:"timeout"`
	// SessionID is the demo session used when no admin password is stored.
	SessionID string `yaml:"session_id,omitempty"`
}

// Config is the complete configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Access    AccessConfig    `yaml:"access"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Logging   LoggingConfig   `yaml:"logging"`
	Remote    RemoteConfig    `yaml:"remote"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          DefaultListenAddr,
			MaxAudioBytes: DefaultMaxAudioBytes,
		},
		Access: AccessConfig{
			AnalyzeLimit:    DefaultDemoLimit,
			TranscribeLimit: DefaultDemoLimit,
		},
		Ledger: LedgerConfig{
			Backend: LedgerMemory,
		},
		Anthropic: AnthropicConfig{
			Model:       DefaultAnthropicModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			Timeout:     DefaultProviderTimeout,
		},
		OpenAI: OpenAIConfig{
			Model:    DefaultWhisperModel,
			Language: DefaultWhisperLanguage,
			Timeout:  DefaultProviderTimeout,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Remote: RemoteConfig{
			ServerURL: DefaultServerURL,
			Timeout:   DefaultRequestTimeout,
		},
		OutputFormat: DefaultOutputFormat,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $MINUTES_CONFIG_DIR if set, otherwise ~/.minutes
func ConfigDir() (string, error) {
	if dir := os.Getenv("MINUTES_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the default path and environment.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load loads configuration in this order (later sources override earlier):
// 1. Default values
// 2. Config file (path, or ~/.minutes/config.yaml when path is empty)
// 3. Environment variables
//
// A missing file at the default path is not an error; a missing explicit
// path is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("getting config path: %w", err)
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	} else if explicit {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg. Keys absent from the file keep
// their current values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// loadFromEnv overlays environment variables onto the configuration. The
// unprefixed ADMIN_PASSWORD, ANTHROPIC_API_KEY and OPENAI_API_KEY are read
// first so the MINUTES_ forms can override them.
func loadFromEnv(cfg *Config) error {
	setString(&cfg.Access.AdminPassword, "ADMIN_PASSWORD", "MINUTES_ADMIN_PASSWORD")
	setString(&cfg.Access.AdminPasswordHash, "MINUTES_ADMIN_PASSWORD_HASH")
	setString(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY", "MINUTES_ANTHROPIC_API_KEY")
	setString(&cfg.Anthropic.BaseURL, "MINUTES_ANTHROPIC_BASE_URL")
	setString(&cfg.Anthropic.Model, "MINUTES_ANTHROPIC_MODEL")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY", "MINUTES_OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "MINUTES_OPENAI_BASE_URL")
	setString(&cfg.Server.Addr, "MINUTES_ADDR")
	setString(&cfg.Ledger.Backend, "MINUTES_LEDGER_BACKEND")
	setString(&cfg.Ledger.RedisAddr, "MINUTES_REDIS_ADDR")
	setString(&cfg.Ledger.RedisPassword, "MINUTES_REDIS_PASSWORD")
	setString(&cfg.Ledger.KeyPrefix, "MINUTES_LEDGER_KEY_PREFIX")
	setString(&cfg.Logging.Level, "MINUTES_LOG_LEVEL")
	setString(&cfg.Remote.ServerURL, "MINUTES_SERVER_URL")

	if v := os.Getenv("MINUTES_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}
	if v := os.Getenv("MINUTES_LOG_JSON"); v == "true" || v == "1" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MINUTES_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"MINUTES_ANALYZE_LIMIT", &cfg.Access.AnalyzeLimit},
		{"MINUTES_TRANSCRIBE_LIMIT", &cfg.Access.TranscribeLimit},
		{"MINUTES_REDIS_DB", &cfg.Ledger.RedisDB},
	}
	for _, e := range ints {
		if v := os.Getenv(e.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.name, err)
			}
			*e.dst = n
		}
	}

	if v := os.Getenv("MINUTES_LEDGER_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MINUTES_LEDGER_TTL: %w", err)
		}
		cfg.Ledger.TTL = ttl
	}

	return nil
}

// setString assigns the last non-empty variable among names to dst.
func setString(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

// Validate checks that the configuration is valid. Provider keys and the
// admin secret are optional here; their absence is reported per request.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxAudioBytes <= 0 {
		return fmt.Errorf("server.max_audio_bytes must be positive")
	}

	if c.Access.AnalyzeLimit <= 0 || c.Access.TranscribeLimit <= 0 {
		return fmt.Errorf("access limits must be positive")
	}
	if c.Access.AdminPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Access.AdminPasswordHash)); err != nil {
			return fmt.Errorf("access.admin_password_hash is not a bcrypt hash: %w", err)
		}
	}

	switch c.Ledger.Backend {
	case LedgerMemory:
	case LedgerRedis:
		if c.Ledger.RedisAddr == "" {
			return fmt.Errorf("ledger.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid ledger.backend: %q (must be memory or redis)", c.Ledger.Backend)
	}
	if c.Ledger.TTL < 0 {
		return fmt.Errorf("ledger.ttl must not be negative")
	}

	if c.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("anthropic.max_tokens must be positive")
	}
	if c.Anthropic.Temperature < 0 || c.Anthropic.Temperature > 1 {
		return fmt.Errorf("anthropic.temperature must be between 0 and 1")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig writes cfg to the config file. Secrets are never written;
// the admin password belongs in the system keyring.
func SaveConfig(cfg *Config) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	out := *cfg
	out.Access.AdminPassword = ""
	out.Anthropic.APIKey = ""
	out.OpenAI.APIKey = ""
	out.Ledger.RedisPassword = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
