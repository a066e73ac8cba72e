package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/minutes/client"
	"github.com/otherjamesbrown/minutes/config"
	"github.com/otherjamesbrown/minutes/credentials"
	"github.com/otherjamesbrown/minutes/pkg/buildinfo"
)

// audioContentTypes maps upload extensions to the media type sent to the
// server.
var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/m4a",
	".webm": "audio/webm",
	".mp4":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

type remoteOptions struct {
	demo    bool
	charset string
	raw     bool
}

// NewRemoteCommand creates the 'remote' command group, which calls a
// running minutes server.
func NewRemoteCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	opts := &remoteOptions{}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Call a running minutes server",
		Long: `Call a running minutes server.

The server URL comes from --server, MINUTES_SERVER_URL or remote.server_url
in the config file. Requests carry the admin password from 'minutes auth
login' when one is stored. Otherwise a demo session id is generated once and
saved in the config file so the server can count its free uses.`,
	}

	cmd.PersistentFlags().BoolVar(&opts.demo, "demo", false, "Use the demo session even when logged in")

	cmd.AddCommand(newRemoteAnalyzeCommand(deps, opts))
	cmd.AddCommand(newRemoteTranscribeCommand(deps, opts))
	cmd.AddCommand(newRemoteStatusCommand(deps))

	return cmd
}

func newRemoteAnalyzeCommand(deps *CommandDeps, opts *remoteOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze a transcript on the server",
		Long: `Send a transcript file to the server's /api/analyze endpoint.

Examples:
  minutes remote analyze standup.vtt
  minutes remote analyze notes.txt --demo -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemoteAnalyze(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), deps, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.charset, "charset", "", "Transcript character set (default: detect)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Send the file contents without parsing speaker turns")

	return cmd
}

func runRemoteAnalyze(ctx context.Context, stdin io.Reader, out io.Writer, deps *CommandDeps, opts *remoteOptions, path string) error {
	cfg, err := deps.config()
	if err != nil {
		return err
	}

	text, err := readTranscript(stdin, path, opts.charset, opts.raw)
	if err != nil {
		return err
	}

	c, err := newRemoteClient(deps, cfg)
	if err != nil {
		return err
	}
	creds, err := remoteCredentials(deps, cfg, opts.demo)
	if err != nil {
		return err
	}

	resp, err := c.Analyze(ctx, text, creds)
	if err != nil {
		return err
	}

	return writeOutput(out, cfg.OutputFormat, resp, func(w io.Writer) error {
		if err := printAnalysis(w, resp.Result); err != nil {
			return err
		}
		fmt.Fprintf(w, "Remaining uses: %s\n", resp.RemainingUses)
		return nil
	})
}

func newRemoteTranscribeCommand(deps *CommandDeps, opts *remoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe an audio file on the server",
		Long: `Upload an audio file to the server's /api/transcribe endpoint.

Supported formats: mp3, mp4, wav, m4a, webm, ogg, flac (25MB maximum).

Examples:
  minutes remote transcribe standup.m4a
  minutes remote transcribe standup.m4a -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemoteTranscribe(cmd.Context(), cmd.OutOrStdout(), deps, opts, args[0])
		},
	}
}

func runRemoteTranscribe(ctx context.Context, out io.Writer, deps *CommandDeps, opts *remoteOptions, path string) error {
	cfg, err := deps.config()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	c, err := newRemoteClient(deps, cfg)
	if err != nil {
		return err
	}
	creds, err := remoteCredentials(deps, cfg, opts.demo)
	if err != nil {
		return err
	}

	resp, err := c.Transcribe(ctx, client.TranscribeRequest{
		Filename:    filepath.Base(path),
		ContentType: audioContentType(path),
		Body:        f,
	}, creds)
	if err != nil {
		return err
	}

	return writeOutput(out, cfg.OutputFormat, resp, func(w io.Writer) error {
		fmt.Fprintln(w, resp.Text)
		fmt.Fprintf(w, "\nRemaining transcriptions: %s\n", resp.RemainingTranscriptions)
		return nil
	})
}

func newRemoteStatusCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the server's health and version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemoteStatus(cmd.Context(), cmd.OutOrStdout(), deps)
		},
	}
}

// RemoteStatus is the output of 'remote status'.
type RemoteStatus struct {
	Server  string          `json:"server" yaml:"server"`
	Healthy bool            `json:"healthy" yaml:"healthy"`
	Version *buildinfo.Info `json:"version,omitempty" yaml:"version,omitempty"`
}

func runRemoteStatus(ctx context.Context, out io.Writer, deps *CommandDeps) error {
	cfg, err := deps.config()
	if err != nil {
		return err
	}
	c, err := newRemoteClient(deps, cfg)
	if err != nil {
		return err
	}

	status := RemoteStatus{Server: c.BaseURL()}
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("server %s is not healthy: %w", c.BaseURL(), err)
	}
	status.Healthy = true
	if info, err := c.Version(ctx); err == nil {
		status.Version = info
	}

	return writeOutput(out, cfg.OutputFormat, status, func(w io.Writer) error {
		fmt.Fprintf(w, "Server:  %s\n", status.Server)
		fmt.Fprintln(w, "Status:  healthy")
		if status.Version != nil {
			fmt.Fprintf(w, "Version: %s (%s)\n", status.Version.Version, status.Version.Commit)
		}
		return nil
	})
}

func newRemoteClient(deps *CommandDeps, cfg *config.Config) (*client.Client, error) {
	opts := []client.Option{}
	if deps.HTTPClient != nil {
		opts = append(opts, client.WithHTTPClient(deps.HTTPClient))
	}
	opts = append(opts, client.WithTimeout(cfg.Remote.Timeout))
	return client.New(cfg.Remote.ServerURL, opts...)
}

// remoteCredentials returns the stored admin password, or the demo session
// id when there is none or demo is set. A new session id is saved to the
// config file on first use.
func remoteCredentials(deps *CommandDeps, cfg *config.Config, demo bool) (client.Credentials, error) {
	if !demo {
		pw, _, err := deps.Credentials.Password()
		if err == nil {
			return client.Credentials{Password: pw}, nil
		}
		if !errors.Is(err, credentials.ErrNoCredentials) {
			return client.Credentials{}, err
		}
	}

	if cfg.Remote.SessionID == "" {
		cfg.Remote.SessionID = uuid.NewString()
		if err := deps.SaveConfig(cfg); err != nil {
			return client.Credentials{}, fmt.Errorf("saving session id: %w", err)
		}
	}
	return client.Credentials{SessionID: cfg.Remote.SessionID}, nil
}

func audioContentType(path string) string {
	if ct, ok := audioContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}
