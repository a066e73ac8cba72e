package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/otherjamesbrown/minutes/pkg/buildinfo"
)

// execute runs the root command with args in an isolated config dir.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	keyring.MockInit()
	t.Setenv("MINUTES_CONFIG_DIR", t.TempDir())
	t.Setenv("MINUTES_PASSWORD", "")

	cfgFile, serverURL, timeout, outputFormat, debug, versionOutputJSON = "", "", 0, "", false, false
	deps.Config = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "analyze", "remote", "auth", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "server", "timeout", "output", "debug"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)
	assert.Equal(t, "Print version information", versionCmd.Short)
	assert.NotNil(t, versionCmd.Flags().Lookup("output-json"))

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "minutes "+buildinfo.Version)
	assert.Contains(t, out, "Go version:")
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := execute(t, "version", "--output-json")
	require.NoError(t, err)

	var info buildinfo.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, buildinfo.ServiceName, info.ServiceName)
	assert.Equal(t, buildinfo.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestPersistentPreRun_AppliesFlags(t *testing.T) {
	_, err := execute(t, "auth", "status", "--server", "http://minutes.internal:9000", "-o", "yaml", "--debug")
	require.NoError(t, err)

	require.NotNil(t, deps.Config)
	assert.Equal(t, "http://minutes.internal:9000", deps.Config.Remote.ServerURL)
	assert.Equal(t, "yaml", string(deps.Config.OutputFormat))
	assert.True(t, deps.Config.Debug)
}

func TestPersistentPreRun_RejectsInvalidOutput(t *testing.T) {
	_, err := execute(t, "auth", "status", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestPersistentPreRun_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "auth", "status", "--config", "/nonexistent/minutes.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading configuration")
}
