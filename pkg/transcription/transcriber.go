// Package transcription converts uploaded audio to text through a hosted
// speech-to-text model.
package transcription

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"

	mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
	"github.com/otherjamesbrown/minutes/pkg/logging"
	"github.com/otherjamesbrown/minutes/pkg/observability"
	"github.com/otherjamesbrown/minutes/pkg/provider"
)

// Caller-visible messages.
const (
	MsgNotConfigured = "OpenAI API key not configured"
	MsgFailed        = "Failed to transcribe audio file"
	ProviderPrefix   = "OpenAI API Error: "
	MsgConnection    = "Connection error."
	MsgTimeout       = "Request timed out."
)

// SpeechToText is a hosted speech recognition model.
type SpeechToText interface {
	Transcribe(ctx context.Context, req *provider.TranscriptionRequest) (*provider.Transcription, error)
}

// Audio is a validated upload ready to send.
type Audio struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Result is the recognized text.
type Result struct {
	Text string `json:"text"`
}

// Config configures a Transcriber.
type Config struct {
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// DefaultConfig returns the transcription defaults.
func DefaultConfig() Config {
	return Config{Model: "whisper-1", Language: "en"}
}

// Transcriber sends audio to a SpeechToText model.
type Transcriber struct {
	config  Config
	stt     SpeechToText
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithLogger sets the transcriber's logger.
func WithLogger(l logging.Logger) Option {
	return func(t *Transcriber) {
		t.logger = l
	}
}

// WithMetrics records provider calls.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Transcriber) {
		t.metrics = m
	}
}

// WithTracer sets the tracer used for provider spans.
func WithTracer(tr *observability.Tracer) Option {
	return func(t *Transcriber) {
		t.tracer = tr
	}
}

// NewTranscriber creates a Transcriber.
func NewTranscriber(config Config, stt SpeechToText, opts ...Option) *Transcriber {
	t := &Transcriber{
		config: config,
		stt:    stt,
		logger: logging.NewNopLogger(),
		tracer: observability.NewTracer(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe returns the text spoken in audio. Every error returned is an
// *APIError.
func (t *Transcriber) Transcribe(ctx context.Context, audio Audio) (Result, error) {
	log := t.logger.WithContext(ctx).With(
		logging.F("filename", audio.Filename),
		logging.F("size_bytes", audio.Size),
	)

	ctx, span := t.tracer.StartTranscriptionSpan(ctx, t.config.Model, audio.Size)
	defer span.End()
	sh := observability.NewSpanHelper(span)

	start := time.Now()
	out, err := t.stt.Transcribe(ctx, &provider.TranscriptionRequest{
		Model:       t.config.Model,
		Language:    t.config.Language,
		Filename:    audio.Filename,
		ContentType: audio.ContentType,
		Audio:       audio.Body,
	})
	elapsed := time.Since(start)
	if err != nil {
		t.metrics.RecordAIOperation(observability.OperationTranscribe, t.config.Model, observability.StatusError, elapsed.Seconds())
		apiErr := classify(err)
		sh.SetError(err, string(apiErr.Code))
		log.Error("transcription failed", logging.Err(err), logging.F("elapsed_ms", elapsed.Milliseconds()))
		return Result{}, apiErr
	}

	t.metrics.RecordAIOperation(observability.OperationTranscribe, t.config.Model, observability.StatusSuccess, elapsed.Seconds())
	sh.SetDuration(elapsed.Milliseconds())
	sh.SetSuccess()
	log.Info("audio transcribed",
		logging.F("text_chars", len(out.Text)),
		logging.F("elapsed_ms", elapsed.Milliseconds()),
	)
	return Result{Text: out.Text}, nil
}

func classify(err error) *mnerrors.APIError {
	if errors.Is(err, provider.ErrMissingAPIKey) {
		return mnerrors.Configuration(MsgNotConfigured)
	}
	var se *provider.StatusError
	if errors.As(err, &se) {
		return mnerrors.Provider(se.StatusCode, ProviderPrefix+se.Message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return mnerrors.Provider(0, ProviderPrefix+MsgTimeout, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return mnerrors.Provider(0, ProviderPrefix+MsgConnection, err)
	}
	if ae, ok := mnerrors.As(err); ok {
		return ae
	}
	return mnerrors.Internal(MsgFailed, err)
}
