package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/minutes/config"
	"github.com/otherjamesbrown/minutes/pkg/access"
	"github.com/otherjamesbrown/minutes/pkg/analysis"
	"github.com/otherjamesbrown/minutes/pkg/ledger"
	"github.com/otherjamesbrown/minutes/pkg/logging"
	"github.com/otherjamesbrown/minutes/pkg/observability"
	"github.com/otherjamesbrown/minutes/pkg/provider/anthropic"
	"github.com/otherjamesbrown/minutes/pkg/provider/openai"
	"github.com/otherjamesbrown/minutes/pkg/server"
	"github.com/otherjamesbrown/minutes/pkg/transcription"
)

// TranscribeLimitMessage is returned when a demo session has used all of
// its free transcriptions.
const TranscribeLimitMessage = "Demo limit reached. You've used all %d free transcriptions. Please use admin password for unlimited access."

// Ledger namespaces. Each endpoint counts usage separately.
const (
	namespaceAnalyze    = "analyze"
	namespaceTranscribe = "transcribe"
)

// NewServeCommand creates the 'serve' command.
func NewServeCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis service",
		Long: `Run the HTTP service that analyzes meeting transcripts and transcribes audio.

Endpoints:
  POST /api/analyze      Analyze a transcript (JSON body)
  POST /api/transcribe   Transcribe an audio file (multipart form)
  GET  /healthz          Liveness
  GET  /version          Build information
  GET  /metrics          Prometheus metrics

Provider keys are read from ANTHROPIC_API_KEY and OPENAI_API_KEY. The admin
password is read from ADMIN_PASSWORD (or MINUTES_ADMIN_PASSWORD_HASH for a
bcrypt hash). Demo sessions are counted in memory unless the redis ledger
backend is configured.

Examples:
  # Serve on the default address
  minutes serve

  # Serve on a specific address
  minutes serve --addr 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, newLogger(cfg))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

// runServe builds the service from cfg and serves until ctx is done.
func runServe(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	srv, closer, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.Access.AdminPassword == "" && cfg.Access.AdminPasswordHash == "" {
		logger.Warn("admin password not configured; only demo sessions are accepted")
	}

	return srv.ListenAndServe(ctx)
}

// buildServer wires every component of the service. The returned closer
// releases the ledger backend.
func buildServer(cfg *config.Config, logger logging.Logger) (*server.Server, io.Closer, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)
	tracer := observability.NewTracer()

	analyzeLedger, transcribeLedger, closer, err := buildLedgers(cfg.Ledger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("usage ledger ready", logging.F("backend", cfg.Ledger.Backend))

	analyzeGate := access.NewGate(access.Config{
		AdminPassword:     cfg.Access.AdminPassword,
		AdminPasswordHash: cfg.Access.AdminPasswordHash,
		DemoLimit:         cfg.Access.AnalyzeLimit,
	}, analyzeLedger, access.WithLogger(logger.With(logging.F("endpoint", namespaceAnalyze))))

	transcribeGate := access.NewGate(access.Config{
		AdminPassword:     cfg.Access.AdminPassword,
		AdminPasswordHash: cfg.Access.AdminPasswordHash,
		DemoLimit:         cfg.Access.TranscribeLimit,
		LimitMessage:      fmt.Sprintf(TranscribeLimitMessage, cfg.Access.TranscribeLimit),
	}, transcribeLedger, access.WithLogger(logger.With(logging.F("endpoint", namespaceTranscribe))))

	logger.Info("access gates ready",
		logging.F("analyze_demo_limit", analyzeGate.DemoLimit()),
		logging.F("transcribe_demo_limit", transcribeGate.DemoLimit()),
	)

	claude := newAnthropicClient(cfg, logger)
	if !claude.Configured() {
		logger.Warn("anthropic API key not configured; analyze requests will fail")
	}
	whisper := newOpenAIClient(cfg, logger)
	if !whisper.Configured() {
		logger.Warn("openai API key not configured; transcribe requests will fail")
	}

	analyzer := analysis.NewAnalyzer(analysis.Config{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
	}, claude,
		analysis.WithLogger(logger),
		analysis.WithMetrics(metrics),
		analysis.WithTracer(tracer),
	)

	transcriber := transcription.NewTranscriber(transcription.Config{
		Model:    cfg.OpenAI.Model,
		Language: cfg.OpenAI.Language,
	}, whisper,
		transcription.WithLogger(logger),
		transcription.WithMetrics(metrics),
		transcription.WithTracer(tracer),
	)

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxJSONBytes:    cfg.Server.MaxJSONBytes,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		MaxAudioBytes:   cfg.Server.MaxAudioBytes,
	}, server.Deps{
		AnalyzeGate:    analyzeGate,
		TranscribeGate: transcribeGate,
		Analyzer:       analyzer,
		Transcriber:    transcriber,
		Logger:         logger,
		Metrics:        metrics,
		Gatherer:       reg,
	})

	return srv, closer, nil
}

func newAnthropicClient(cfg *config.Config, logger logging.Logger) *anthropic.Client {
	return anthropic.NewClient(anthropic.Config{
		APIKey:    cfg.Anthropic.APIKey,
		BaseURL:   cfg.Anthropic.BaseURL,
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Timeout:   cfg.Anthropic.Timeout,
	}, anthropic.WithLogger(logger))
}

func newOpenAIClient(cfg *config.Config, logger logging.Logger) *openai.Client {
	return openai.NewClient(openai.Config{
		APIKey:   cfg.OpenAI.APIKey,
		BaseURL:  cfg.OpenAI.BaseURL,
		Model:    cfg.OpenAI.Model,
		Language: cfg.OpenAI.Language,
		Timeout:  cfg.OpenAI.Timeout,
	}, openai.WithLogger(logger))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildLedgers returns one ledger per endpoint on the configured backend.
func buildLedgers(cfg config.LedgerConfig) (ledger.Ledger, ledger.Ledger, io.Closer, error) {
	switch cfg.Backend {
	case config.LedgerMemory, "":
		return ledger.NewMemoryLedger(), ledger.NewMemoryLedger(), nopCloser{}, nil
	case config.LedgerRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		analyze := ledger.NewRedisLedger(client, ledger.RedisLedgerConfig{
			Namespace: namespaceAnalyze,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		})
		transcribe := ledger.NewRedisLedger(client, ledger.RedisLedgerConfig{
			Namespace: namespaceTranscribe,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		})
		return analyze, transcribe, client, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
