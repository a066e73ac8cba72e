package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/minutes/pkg/provider"
)

func TestClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, DefaultModel, r.FormValue("model"))
		assert.Equal(t, DefaultLanguage, r.FormValue("language"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "standup.mp3", hdr.Filename)
		assert.Equal(t, "audio/mpeg", hdr.Header.Get("Content-Type"))
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "ID3-fake-audio", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"Good morning everyone."}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	out, err := c.Transcribe(context.Background(), &provider.TranscriptionRequest{
		Filename:    "standup.mp3",
		ContentType: "audio/mpeg",
		Audio:       strings.NewReader("ID3-fake-audio"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Good morning everyone.", out.Text)
	assert.Equal(t, DefaultModel, out.Model)
}

func TestClient_MissingKey(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Transcribe(context.Background(), &provider.TranscriptionRequest{Audio: strings.NewReader("x")})
	assert.ErrorIs(t, err, provider.ErrMissingAPIKey)
}

func TestClient_StatusError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantMsg     string
	}{
		{
			name:        "error envelope",
			status:      http.StatusBadRequest,
			contentType: "application/json",
			body:        `{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`,
			wantMsg:     "Invalid file format.",
		},
		{
			name:    "plain text body",
			status:  http.StatusBadGateway,
			body:    "upstream unavailable",
			wantMsg: "upstream unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				io.Copy(io.Discard, r.Body)
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
			_, err := c.Transcribe(context.Background(), &provider.TranscriptionRequest{
				Filename: "a.wav",
				Audio:    strings.NewReader("RIFF"),
			})

			var se *provider.StatusError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.wantMsg, se.Message)
			assert.Equal(t, 1, calls, "no retries")
		})
	}
}

func TestClient_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: url})
	_, err := c.Transcribe(context.Background(), &provider.TranscriptionRequest{Audio: strings.NewReader("x")})

	var ue *neturl.Error
	assert.True(t, errors.As(err, &ue), "got %v", err)
}
