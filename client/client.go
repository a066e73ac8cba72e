// Package client provides the HTTP client for a minutes server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/otherjamesbrown/minutes/pkg/analysis"
	"github.com/otherjamesbrown/minutes/pkg/buildinfo"
)

// DefaultTimeout bounds a whole request, including the provider call the
// server makes on our behalf.
const DefaultTimeout = 3 * time.Minute

// Server paths.
const (
	pathAnalyze    = "/api/analyze"
	pathTranscribe = "/api/transcribe"
	pathHealth     = "/healthz"
	pathVersion    = "/version"
)

// Credentials identify the caller. A password takes precedence over a
// session id on the server.
type Credentials struct {
	Password  string
	SessionID string
}

// Remaining is a quota count that may be unlimited.
type Remaining struct {
	Unlimited bool
	Count     int
}

// UnmarshalJSON accepts an integer or the string "unlimited". Negative
// integers also mean unlimited.
func (r *Remaining) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unlimited" {
			return fmt.Errorf("unexpected remaining value %q", s)
		}
		*r = Remaining{Unlimited: true}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unexpected remaining value %s", data)
	}
	if n < 0 {
		*r = Remaining{Unlimited: true}
		return nil
	}
	*r = Remaining{Count: n}
	return nil
}

// MarshalJSON writes "unlimited" or the count.
func (r Remaining) MarshalJSON() ([]byte, error) {
	if r.Unlimited {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.Itoa(r.Count)), nil
}

// MarshalYAML writes "unlimited" or the count.
func (r Remaining) MarshalYAML() (interface{}, error) {
	if r.Unlimited {
		return "unlimited", nil
	}
	return r.Count, nil
}

func (r Remaining) String() string {
	if r.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(r.Count)
}

// AnalyzeResponse is the server's analysis of a transcript.
type AnalyzeResponse struct {
	analysis.Result `yaml:",inline"`
	RemainingUses   Remaining `json:"remainingUses" yaml:"remainingUses"`
	IsAdmin         bool      `json:"isAdmin" yaml:"isAdmin"`
}

// TranscribeRequest is an audio file to upload.
type TranscribeRequest struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// TranscribeResponse is the server's transcription of an audio file.
type TranscribeResponse struct {
	Text                    string    `json:"text" yaml:"text"`
	RemainingTranscriptions Remaining `json:"remainingTranscriptions" yaml:"remainingTranscriptions"`
	IsAdmin                 bool      `json:"isAdmin" yaml:"isAdmin"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is a 429 from the server.
func IsRateLimited(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusTooManyRequests
}

// Client calls a minutes server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL must be http or https: %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server URL has no host: %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "minutes-cli/" + buildinfo.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Analyze submits a transcript for analysis.
func (c *Client) Analyze(ctx context.Context, transcript string, creds Credentials) (*AnalyzeResponse, error) {
	body := map[string]string{"transcript": transcript}
	if creds.Password != "" {
		body["password"] = creds.Password
	}
	if creds.SessionID != "" {
		body["sessionId"] = creds.SessionID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathAnalyze, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out AnalyzeResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcribe uploads an audio file. The body is streamed.
func (c *Client) Transcribe(ctx context.Context, tr TranscribeRequest, creds Credentials) (*TranscribeResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUpload(mw, tr, creds))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, pathTranscribe, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out TranscribeResponse
	if err := c.do(req, &out); err != nil {
		pr.Close()
		return nil, err
	}
	return &out, nil
}

func writeUpload(mw *multipart.Writer, tr TranscribeRequest, creds Credentials) error {
	if creds.Password != "" {
		if err := mw.WriteField("password", creds.Password); err != nil {
			return err
		}
	}
	if creds.SessionID != "" {
		if err := mw.WriteField("sessionId", creds.SessionID); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(tr.Filename)))
	contentType := tr.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, tr.Body); err != nil {
		return fmt.Errorf("reading audio: %w", err)
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Health checks the server's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, pathHealth, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Version fetches the server's build information.
func (c *Client) Version(ctx context.Context) (*buildinfo.Info, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathVersion, nil)
	if err != nil {
		return nil, err
	}
	var info buildinfo.Info
	if err := c.do(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out, or returns an
// *APIError built from the server's {"error": ...} body.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
