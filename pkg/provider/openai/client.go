// Package openai adapts the OpenAI audio transcription API to
// provider.TranscriptionRequest.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/otherjamesbrown/minutes/pkg/logging"
	"github.com/otherjamesbrown/minutes/pkg/provider"
)

const providerName = "openai"

// Defaults for the transcription endpoint.
const (
	DefaultBaseURL  = "https://api.openai.com"
	DefaultModel    = "whisper-1"
	DefaultLanguage = "en"
	DefaultTimeout  = 120 * time.Second
)

// Config configures the client. BaseURL is the API host; the /v1 prefix is
// added by the client.
type Config struct {
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Client uploads audio to the transcription endpoint.
type Client struct {
	cfg            Config
	httpClient     *http.Client
	logger         logging.Logger
	transcriptions openai.AudioTranscriptionService
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client's logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client with defaults applied.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.transcriptions = openai.NewAudioTranscriptionService(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/v1/"),
		option.WithHTTPClient(c.httpClient),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	)
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Transcribe uploads req.Audio and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, req *provider.TranscriptionRequest) (*provider.Transcription, error) {
	if c.cfg.APIKey == "" {
		return nil, provider.ErrMissingAPIKey
	}
	if req.Audio == nil {
		return nil, fmt.Errorf("transcription request has no audio")
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	language := req.Language
	if language == "" {
		language = c.cfg.Language
	}
	filename := req.Filename
	if filename == "" {
		filename = "audio"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	log := c.logger.WithContext(ctx).With(logging.F("model", model))
	log.Debug("openai transcription request", logging.F("filename", filename))

	var httpResp *http.Response
	start := time.Now()
	out, err := c.transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(req.Audio, filename, contentType),
		Model:    openai.AudioModel(model),
		Language: openai.String(language),
	}, option.WithResponseInto(&httpResp))
	latency := time.Since(start)
	if err != nil {
		log.Error("openai request failed", logging.Err(err), logging.F("elapsed_ms", latency.Milliseconds()))
		return nil, requestError(err, httpResp)
	}

	log.Debug("openai transcription response",
		logging.F("text_chars", len(out.Text)),
		logging.F("elapsed_ms", latency.Milliseconds()),
	)

	return &provider.Transcription{
		Text:      out.Text,
		Model:     model,
		LatencyMs: int(latency.Milliseconds()),
	}, nil
}

// requestError turns an SDK failure into a provider.StatusError when the
// API answered with an error status. Transport errors pass through.
func requestError(err error, resp *http.Response) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &provider.StatusError{Provider: providerName, StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	// No error envelope, or one the SDK could not decode.
	if resp != nil && resp.StatusCode >= http.StatusBadRequest {
		var body []byte
		if resp.Body != nil {
			body, _ = io.ReadAll(resp.Body)
		}
		return provider.NewStatusError(providerName, resp.StatusCode, body)
	}
	return fmt.Errorf("openai http error: %w", err)
}
