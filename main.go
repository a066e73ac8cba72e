// Package main provides the minutes CLI entry point.
// minutes analyzes meeting transcripts into decisions, action items, open
// questions, risks and next steps, either locally or as an HTTP service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/minutes/cmd"
	"github.com/otherjamesbrown/minutes/config"
	"github.com/otherjamesbrown/minutes/pkg/buildinfo"
)

// Global flags.
var (
	cfgFile      string
	serverURL    string
	timeout      time.Duration
	outputFormat string
	debug        bool
)

// deps is shared by every subcommand. The root command fills in Config.
var deps = cmd.DefaultDeps()

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "minutes",
	Short: "Meeting transcript analysis",
	Long: `minutes turns a meeting transcript into key decisions, action items, open
questions, risk flags and next steps.

COMMON WORKFLOWS:
  Run the service:     minutes serve
  Analyze locally:     minutes analyze standup.vtt
  Use a server:        minutes auth login  →  minutes remote analyze standup.vtt
  Transcribe audio:    minutes remote transcribe standup.m4a

CONFIGURATION:
  ~/.minutes/config.yaml, overridden by MINUTES_* environment variables and
  then by flags. Provider keys come from ANTHROPIC_API_KEY and OPENAI_API_KEY.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if c.Name() == "version" || c.Name() == "help" || c.Name() == "completion" {
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		// Override with command-line flags.
		if serverURL != "" {
			cfg.Remote.ServerURL = serverURL
		}
		if timeout != 0 {
			cfg.Remote.Timeout = timeout
		}
		if outputFormat != "" {
			cfg.OutputFormat = config.OutputFormat(outputFormat)
		}
		if debug {
			cfg.Debug = true
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		deps.Config = cfg
		return nil
	},
}

// loadConfig reads --config when given, otherwise the default location.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		path, err := config.ExpandPath(cfgFile)
		if err != nil {
			return nil, err
		}
		return config.Load(path)
	}
	return config.LoadConfig()
}

// Version command flags.
var versionOutputJSON bool

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the minutes binary.

Examples:
  minutes version
  minutes version --output-json`,
	RunE: func(c *cobra.Command, args []string) error {
		return printVersion(c.OutOrStdout(), buildinfo.Get(buildinfo.ServiceName), versionOutputJSON || outputFormat == string(config.OutputFormatJSON))
	},
}

func printVersion(w io.Writer, info buildinfo.Info, asJSON bool) error {
	if asJSON {
		return cmd.WriteJSON(w, info)
	}
	fmt.Fprintf(w, "minutes %s\n", info.Version)
	fmt.Fprintf(w, "  Commit:     %s\n", info.Commit)
	fmt.Fprintf(w, "  Built:      %s\n", info.BuildTime)
	fmt.Fprintf(w, "  Go version: %s\n", info.GoVersion)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.minutes/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "minutes server URL for remote commands")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout for remote commands")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output version as JSON")

	rootCmd.AddCommand(cmd.NewServeCommand(deps))
	rootCmd.AddCommand(cmd.NewAnalyzeCommand(deps))
	rootCmd.AddCommand(cmd.NewRemoteCommand(deps))
	rootCmd.AddCommand(cmd.NewAuthCommand(deps))
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
