// Package anthropic adapts the Anthropic Messages API to provider.CompletionRequest.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/otherjamesbrown/minutes/pkg/logging"
	"github.com/otherjamesbrown/minutes/pkg/provider"
)

const providerName = "anthropic"

// Defaults for the Messages API.
const (
	DefaultBaseURL     = "https://api.anthropic.com"
	DefaultModel       = "claude-sonnet-4-20250514"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.3
	DefaultAPIVersion  = "2023-06-01"
	DefaultTimeout     = 120 * time.Second
)

// Config configures the client.
type Config struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	MaxTokens  int           `yaml:"max_tokens"`
	APIVersion string        `yaml:"api_version"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Client calls the Messages API with a single user message per request.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     logging.Logger
	messages   anthropic.MessageService
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

// NewClient creates a client. A missing API key is not an error here; it is
// reported by Complete so the server can start without provider keys.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
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

	// Settings come from cfg only, not the SDK's environment defaults.
	// One attempt per request.
	c.messages = anthropic.NewMessageService(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHeader("anthropic-version", cfg.APIVersion),
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

// Complete sends req.Prompt as one user message and returns the text of the
// first content block. Zero Model or MaxTokens fall back to the client
// config. A non-text first block is an error.
func (c *Client) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	if c.cfg.APIKey == "" {
		return nil, provider.ErrMissingAPIKey
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	log := c.logger.WithContext(ctx).With(logging.F("model", model))
	log.Debug("anthropic request", logging.F("prompt_chars", len(req.Prompt)), logging.F("max_tokens", maxTokens))

	var httpResp *http.Response
	start := time.Now()
	msg, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}, option.WithResponseInto(&httpResp))
	latency := time.Since(start)
	if err != nil {
		log.Error("anthropic request failed", logging.Err(err), logging.F("elapsed_ms", latency.Milliseconds()))
		return nil, requestError(err, httpResp)
	}

	log.Debug("anthropic response",
		logging.F("stop_reason", string(msg.StopReason)),
		logging.F("blocks", len(msg.Content)),
		logging.F("elapsed_ms", latency.Milliseconds()),
	)

	if len(msg.Content) == 0 || msg.Content[0].Type != "text" {
		return nil, fmt.Errorf("unexpected response type from anthropic")
	}

	return &provider.CompletionResponse{
		Content:      msg.Content[0].Text,
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		StopReason:   string(msg.StopReason),
		LatencyMs:    int(latency.Milliseconds()),
	}, nil
}

// requestError turns an SDK failure into a provider.StatusError when the
// API answered with an error status. Transport errors pass through.
func requestError(err error, resp *http.Response) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return provider.NewStatusError(providerName, apiErr.StatusCode, []byte(apiErr.RawJSON()))
	}
	// An error body the SDK could not decode.
	if resp != nil && resp.StatusCode >= http.StatusBadRequest {
		var body []byte
		if resp.Body != nil {
			body, _ = io.ReadAll(resp.Body)
		}
		return provider.NewStatusError(providerName, resp.StatusCode, body)
	}
	return fmt.Errorf("anthropic http error: %w", err)
}
