// Package server exposes the analyze and transcribe pipelines over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/minutes/pkg/access"
	"github.com/otherjamesbrown/minutes/pkg/analysis"
	"github.com/otherjamesbrown/minutes/pkg/buildinfo"
	"github.com/otherjamesbrown/minutes/pkg/intake"
	"github.com/otherjamesbrown/minutes/pkg/logging"
	"github.com/otherjamesbrown/minutes/pkg/observability"
	"github.com/otherjamesbrown/minutes/pkg/transcription"
)

// Route patterns.
const (
	RouteAnalyze    = "/api/analyze"
	RouteTranscribe = "/api/transcribe"
	RouteHealth     = "/healthz"
	RouteVersion    = "/version"
	RouteMetrics    = "/metrics"
)

// Config configures the HTTP server.
type Config struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxJSONBytes caps analyze request bodies.
	MaxJSONBytes int64 `yaml:"max_json_bytes"`
	// MaxUploadBytes caps whole transcribe request bodies. It must exceed
	// the audio size limit so oversized files still get a precise error.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// MaxAudioBytes is the largest audio file accepted.
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    180 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxJSONBytes:    2 << 20,
		MaxUploadBytes:  64 << 20,
		MaxAudioBytes:   intake.MaxAudioBytes,
	}
}

// Authorizer decides access for one endpoint.
type Authorizer interface {
	Authorize(ctx context.Context, creds access.Credentials) (access.Grant, error)
}

// TranscriptAnalyzer produces a structured analysis of a transcript.
type TranscriptAnalyzer interface {
	Analyze(ctx context.Context, transcript string) (analysis.Result, error)
}

// AudioTranscriber converts audio to text.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audio transcription.Audio) (transcription.Result, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	AnalyzeGate    Authorizer
	TranscribeGate Authorizer
	Analyzer       TranscriptAnalyzer
	Transcriber    AudioTranscriber
	Logger         logging.Logger
	Metrics        *observability.Metrics
	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front end.
type Server struct {
	config    Config
	deps      Deps
	validator *intake.AudioValidator
	logger    logging.Logger
	handler   http.Handler
}

// New creates a Server. Zero config values take their defaults.
func New(config Config, deps Deps) *Server {
	def := DefaultConfig()
	if config.Addr == "" {
		config.Addr = def.Addr
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if config.MaxJSONBytes <= 0 {
		config.MaxJSONBytes = def.MaxJSONBytes
	}
	if config.MaxAudioBytes <= 0 {
		config.MaxAudioBytes = def.MaxAudioBytes
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = def.MaxUploadBytes
	}
	if config.MaxUploadBytes <= config.MaxAudioBytes {
		config.MaxUploadBytes = config.MaxAudioBytes + 1<<20
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Server{
		config:    config,
		deps:      deps,
		validator: intake.NewAudioValidator(config.MaxAudioBytes),
		logger:    logger,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST "+RouteAnalyze, s.instrument(RouteAnalyze, http.HandlerFunc(s.handleAnalyze)))
	mux.Handle("POST "+RouteTranscribe, s.instrument(RouteTranscribe, http.HandlerFunc(s.handleTranscribe)))
	mux.HandleFunc("GET "+RouteHealth, handleHealth)
	mux.Handle("GET "+RouteVersion, buildinfo.Handler(buildinfo.ServiceName))
	if s.deps.Gatherer != nil {
		mux.Handle("GET "+RouteMetrics, promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return s.withRequestID(s.recoverer(mux))
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("server listening", logging.F("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
