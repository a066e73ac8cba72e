// Package cmd provides CLI commands for the minutes tool.
package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/minutes/config"
	"github.com/otherjamesbrown/minutes/credentials"
	"github.com/otherjamesbrown/minutes/pkg/logging"
)

// CommandDeps holds the dependencies shared by the minutes commands.
type CommandDeps struct {
	// Config is set by the root command once flags are applied. When nil
	// LoadConfig is used.
	Config     *config.Config
	LoadConfig func() (*config.Config, error)
	SaveConfig func(*config.Config) error

	Credentials credentials.Store
	HTTPClient  *http.Client

	// ReadSecret prompts for a secret without echoing it.
	ReadSecret func(prompt string) (string, error)
}

// DefaultDeps returns default dependencies for production use.
func DefaultDeps() *CommandDeps {
	return &CommandDeps{
		LoadConfig:  config.LoadConfig,
		SaveConfig:  config.SaveConfig,
		Credentials: credentials.NewKeyringStore(),
		HTTPClient:  &http.Client{},
		ReadSecret:  readSecret,
	}
}

// config returns the active configuration, loading it on first use.
func (d *CommandDeps) config() (*config.Config, error) {
	if d.Config != nil {
		return d.Config, nil
	}
	if d.LoadConfig == nil {
		d.LoadConfig = config.LoadConfig
	}
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	d.Config = cfg
	return cfg, nil
}

// newLogger builds the process logger from cfg. Logs go to stderr so they
// never mix with command output.
func newLogger(cfg *config.Config) logging.Logger {
	level := logging.Level(cfg.Logging.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	env := "production"
	if !cfg.Logging.JSON {
		env = "development"
	}
	return logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: "minutes",
		Environment: env,
		JSONFormat:  cfg.Logging.JSON,
		Output:      os.Stderr,
	})
}

// writeOutput renders v in format. Text output is delegated to text.
func writeOutput(w io.Writer, format config.OutputFormat, v interface{}, text func(io.Writer) error) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

// readSecret reads a line from the terminal with echo off, falling back to
// plain stdin when there is no terminal.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	return writeOutput(w, config.OutputFormatJSON, v, nil)
}
