package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// isolate points the config dir at a temp dir and clears every variable
// the loader reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MINUTES_CONFIG_DIR", dir)
	for _, name := range []string{
		"ADMIN_PASSWORD", "MINUTES_ADMIN_PASSWORD", "MINUTES_ADMIN_PASSWORD_HASH",
		"ANTHROPIC_API_KEY", "MINUTES_ANTHROPIC_API_KEY", "MINUTES_ANTHROPIC_BASE_URL", "MINUTES_ANTHROPIC_MODEL",
		"OPENAI_API_KEY", "MINUTES_OPENAI_API_KEY", "MINUTES_OPENAI_BASE_URL",
		"MINUTES_ADDR", "MINUTES_LEDGER_BACKEND", "MINUTES_REDIS_ADDR", "MINUTES_REDIS_PASSWORD",
		"MINUTES_REDIS_DB", "MINUTES_LEDGER_KEY_PREFIX", "MINUTES_LEDGER_TTL",
		"MINUTES_LOG_LEVEL", "MINUTES_LOG_JSON", "MINUTES_DEBUG", "MINUTES_SERVER_URL",
		"MINUTES_OUTPUT_FORMAT", "MINUTES_ANALYZE_LIMIT", "MINUTES_TRANSCRIBE_LIMIT",
	} {
		t.Setenv(name, "")
	}
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultListenAddr, cfg.Server.Addr)
	assert.Equal(t, int64(25<<20), cfg.Server.MaxAudioBytes)
	assert.Equal(t, 5, cfg.Access.AnalyzeLimit)
	assert.Equal(t, 5, cfg.Access.TranscribeLimit)
	assert.Equal(t, LedgerMemory, cfg.Ledger.Backend)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Anthropic.Model)
	assert.Equal(t, 4096, cfg.Anthropic.MaxTokens)
	assert.Equal(t, 0.3, cfg.Anthropic.Temperature)
	assert.Equal(t, "whisper-1", cfg.OpenAI.Model)
	assert.Equal(t, "en", cfg.OpenAI.Language)
	assert.Equal(t, OutputFormatText, cfg.OutputFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_FileOverlay(t *testing.T) {
	dir := isolate(t)

	yamlContent := `
server:
  addr: 127.0.0.1:9000
  write_timeout: 4m
access:
  analyze_limit: 10
ledger:
  backend: redis
  redis_addr: localhost:6379
  ttl: 24h
anthropic:
  temperature: 0.1
output_format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(yamlContent), 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 4*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, int64(DefaultMaxAudioBytes), cfg.Server.MaxAudioBytes)
	assert.Equal(t, 10, cfg.Access.AnalyzeLimit)
	assert.Equal(t, 5, cfg.Access.TranscribeLimit)
	assert.Equal(t, LedgerRedis, cfg.Ledger.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.TTL)
	assert.Equal(t, 0.1, cfg.Anthropic.Temperature)
	assert.Equal(t, DefaultAnthropicModel, cfg.Anthropic.Model)
	assert.Equal(t, OutputFormatJSON, cfg.OutputFormat)
}

func TestLoad_EnvOverlay(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("server:\n  addr: :7000\n"), 0600))

	t.Setenv("ADMIN_PASSWORD", "from-plain")
	t.Setenv("MINUTES_ADMIN_PASSWORD", "from-prefixed")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	t.Setenv("MINUTES_ADDR", ":9999")
	t.Setenv("MINUTES_TRANSCRIBE_LIMIT", "3")
	t.Setenv("MINUTES_LEDGER_TTL", "1h")
	t.Setenv("MINUTES_LOG_JSON", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-prefixed", cfg.Access.AdminPassword)
	assert.Equal(t, "sk-ant", cfg.Anthropic.APIKey)
	assert.Equal(t, "sk-oai", cfg.OpenAI.APIKey)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Access.TranscribeLimit)
	assert.Equal(t, time.Hour, cfg.Ledger.TTL)
	assert.True(t, cfg.Logging.JSON)
}

func TestLoad_BadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("MINUTES_ANALYZE_LIMIT", "five")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, true},
		{"zero limit", func(c *Config) { c.Access.AnalyzeLimit = 0 }, true},
		{"bcrypt hash", func(c *Config) { c.Access.AdminPasswordHash = string(hash) }, false},
		{"bad hash", func(c *Config) { c.Access.AdminPasswordHash = "plaintext" }, true},
		{"redis without addr", func(c *Config) { c.Ledger.Backend = LedgerRedis }, true},
		{"unknown backend", func(c *Config) { c.Ledger.Backend = "etcd" }, true},
		{"temperature", func(c *Config) { c.Anthropic.Temperature = 1.5 }, true},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"output format", func(c *Config) { c.OutputFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{OutputFormatText, true},
		{OutputFormatJSON, true},
		{OutputFormatYAML, true},
		{"", false},
		{"JSON", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.valid, tc.format.IsValid(), "format %q", tc.format)
	}
}

func TestSaveConfig_OmitsSecrets(t *testing.T) {
	dir := isolate(t)

	cfg := DefaultConfig()
	cfg.Remote.ServerURL = "https://minutes.example.com"
	cfg.Access.AdminPassword = "hunter2"
	cfg.Anthropic.APIKey = "sk-ant"
	require.NoError(t, SaveConfig(cfg))

	data, err := os.ReadFile(filepath.Join(dir, DefaultConfigFile))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.NotContains(t, string(data), "sk-ant")

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://minutes.example.com", loaded.Remote.ServerURL)
	assert.Equal(t, cfg.Anthropic.Timeout, loaded.Anthropic.Timeout)
	assert.Equal(t, "hunter2", cfg.Access.AdminPassword)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/notes")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "notes"), got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}
