package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/minutes/config"
	"github.com/otherjamesbrown/minutes/pkg/analysis"
	"github.com/otherjamesbrown/minutes/pkg/intake"
	"github.com/otherjamesbrown/minutes/pkg/transcript"
)

// NewAnalyzeCommand creates the 'analyze' command, which runs the analysis
// pipeline in-process against a local transcript file.
func NewAnalyzeCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	var (
		charset string
		raw     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze a local meeting transcript",
		Long: `Analyze a meeting transcript file without a running server.

The file may be a WebVTT caption file (.vtt), a timestamped text export
(.txt) or plain notes. Speaker turns are extracted and sent to the model as
"Speaker: text" lines. Use - to read from stdin.

Requires ANTHROPIC_API_KEY. No demo quota applies.

Examples:
  # Analyze a Zoom recording transcript
  minutes analyze standup.vtt

  # Analyze notes saved in Windows-1252
  minutes analyze notes.txt --charset windows-1252

  # Send the file exactly as written
  minutes analyze notes.txt --raw

  # Output as JSON
  minutes analyze standup.vtt -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cfg, args[0], charset, raw)
		},
	}

	cmd.Flags().StringVar(&charset, "charset", "", "Transcript character set (default: detect)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Send the file contents without parsing speaker turns")

	return cmd
}

func runAnalyze(ctx context.Context, stdin io.Reader, out io.Writer, cfg *config.Config, path, charset string, raw bool) error {
	text, err := readTranscript(stdin, path, charset, raw)
	if err != nil {
		return err
	}

	valid, err := intake.ValidateTranscript(text)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	analyzer := analysis.NewAnalyzer(analysis.Config{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
	}, newAnthropicClient(cfg, logger), analysis.WithLogger(logger))

	result, err := analyzer.Analyze(ctx, valid)
	if err != nil {
		return err
	}

	return writeOutput(out, cfg.OutputFormat, result, func(w io.Writer) error {
		return printAnalysis(w, result)
	})
}

// readTranscript returns the text to analyze from path, or stdin for "-".
func readTranscript(stdin io.Reader, path, charset string, raw bool) (string, error) {
	if raw {
		var data []byte
		var err error
		if path == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read transcript: %w", err)
		}
		decoded, err := transcript.Decode(data, charset)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}

	var (
		t   *transcript.Transcript
		err error
	)
	if path == "-" {
		t, err = transcript.Read(stdin, "", charset)
	} else {
		t, err = transcript.Load(path, charset)
	}
	if err != nil {
		return "", err
	}
	return t.Text(), nil
}

// printAnalysis writes a human-readable rendering of r.
func printAnalysis(w io.Writer, r analysis.Result) error {
	section := func(title string, items []string) {
		fmt.Fprintf(w, "%s:\n", title)
		if len(items) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, item := range items {
			fmt.Fprintf(w, "  - %s\n", item)
		}
		fmt.Fprintln(w)
	}

	section("Key Decisions", r.KeyDecisions)

	actions := make([]string, 0, len(r.ActionItems))
	for _, a := range r.ActionItems {
		line := a.Task
		if a.Owner != "" {
			line += " (" + a.Owner + ")"
		}
		if a.Deadline != nil && *a.Deadline != "" {
			line += " due " + *a.Deadline
		}
		actions = append(actions, line)
	}
	section("Action Items", actions)

	section("Open Questions", r.OpenQuestions)

	risks := make([]string, 0, len(r.RiskFlags))
	for _, f := range r.RiskFlags {
		risks = append(risks, fmt.Sprintf("[%s] %s: %s", strings.ToUpper(f.Severity), f.Type, f.Description))
	}
	section("Risk Flags", risks)

	section("Next Steps", r.NextSteps)
	return nil
}
