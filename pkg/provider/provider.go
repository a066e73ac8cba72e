// Package provider holds the request and response shapes shared by the
// hosted AI provider clients, and the errors they return.
package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrMissingAPIKey is returned when a client is used without an API key.
var ErrMissingAPIKey = errors.New("api key not configured")

// CompletionRequest is a single-prompt text generation request.
type CompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// CompletionResponse is the text produced for a CompletionRequest.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	StopReason   string `json:"stop_reason"`
	LatencyMs    int    `json:"latency_ms"`
}

// TranscriptionRequest is an audio file to convert to text.
type TranscriptionRequest struct {
	Model       string
	Language    string
	Filename    string
	ContentType string
	Audio       io.Reader
}

// Transcription is the text recognized in an audio file.
type Transcription struct {
	Text      string `json:"text"`
	Model     string `json:"model"`
	LatencyMs int    `json:"latency_ms"`
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// NewStatusError builds a StatusError from an error response body. Both
// {"error":{"message":"..."}} and {"error":"..."} envelopes are understood;
// anything else falls back to the trimmed body or the status text.
func NewStatusError(providerName string, status int, body []byte) *StatusError {
	return &StatusError{
		Provider:   providerName,
		StatusCode: status,
		Message:    errorMessage(status, body),
	}
}

func errorMessage(status int, body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Message != "" {
			return detail.Message
		}
		var plain string
		if err := json.Unmarshal(envelope.Error, &plain); err == nil && plain != "" {
			return plain
		}
	}

	if msg := strings.TrimSpace(string(body)); msg != "" && len(msg) <= 512 {
		return msg
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unknown error"
}
