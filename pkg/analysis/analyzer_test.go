package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
	"github.com/otherjamesbrown/minutes/pkg/observability"
	"github.com/otherjamesbrown/minutes/pkg/provider"
)

type fakeCompleter struct {
	reply string
	err   error
	got   *provider.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &provider.CompletionResponse{Content: f.reply, Model: "claude-test", InputTokens: 50, OutputTokens: 20}, nil
}

func TestAnalyzer_Analyze(t *testing.T) {
	fc := &fakeCompleter{reply: "```json\n{\"keyDecisions\":[\"Adopt Go\"],\"riskFlags\":[{\"type\":\"blocker\",\"description\":\"x\",\"severity\":\"severe\"}]}\n```"}
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	a := NewAnalyzer(DefaultConfig(), fc, WithMetrics(m))
	r, err := a.Analyze(context.Background(), "Alice: let's adopt Go for the service.")
	require.NoError(t, err)

	assert.Equal(t, []string{"Adopt Go"}, r.KeyDecisions)
	assert.Len(t, r.RiskFlags, 1)

	require.NotNil(t, fc.got)
	assert.Equal(t, "claude-sonnet-4-20250514", fc.got.Model)
	assert.Equal(t, 4096, fc.got.MaxTokens)
	assert.Equal(t, 0.3, fc.got.Temperature)
	assert.Contains(t, fc.got.Prompt, "Alice: let's adopt Go for the service.")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NormalizeTotal.WithLabelValues("fenced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchemaViolationsTotal))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.AITokensTotal.WithLabelValues("input", "claude-test")))
}

func TestAnalyzer_Errors(t *testing.T) {
	tests := []struct {
		name       string
		completer  *fakeCompleter
		wantCode   mnerrors.ErrorCode
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "missing key",
			completer:  &fakeCompleter{err: provider.ErrMissingAPIKey},
			wantCode:   mnerrors.ErrConfiguration,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "API key not configured",
		},
		{
			name:       "provider status",
			completer:  &fakeCompleter{err: &provider.StatusError{Provider: "anthropic", StatusCode: 429, Message: "rate limited"}},
			wantCode:   mnerrors.ErrProvider,
			wantStatus: 429,
			wantMsg:    "API Error: rate limited",
		},
		{
			name:       "connection",
			completer:  &fakeCompleter{err: &url.Error{Op: "Post", URL: "https://api.anthropic.com", Err: errors.New("dial tcp: refused")}},
			wantCode:   mnerrors.ErrProvider,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "API Error: Connection error.",
		},
		{
			name:       "timeout",
			completer:  &fakeCompleter{err: fmt.Errorf("anthropic http error: %w", context.DeadlineExceeded)},
			wantCode:   mnerrors.ErrProvider,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "API Error: Request timed out.",
		},
		{
			name:       "unexpected",
			completer:  &fakeCompleter{err: errors.New("unexpected response type from anthropic")},
			wantCode:   mnerrors.ErrInternal,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Failed to analyze meeting transcript",
		},
		{
			name:       "unparseable reply",
			completer:  &fakeCompleter{reply: "no json here"},
			wantCode:   mnerrors.ErrUnparseableResponse,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Failed to analyze meeting transcript",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(DefaultConfig(), tt.completer)
			_, err := a.Analyze(context.Background(), "a long enough transcript")

			ae, ok := mnerrors.As(err)
			require.True(t, ok, "want *APIError, got %v", err)
			assert.Equal(t, tt.wantCode, ae.Code)
			assert.Equal(t, tt.wantStatus, ae.HTTPStatus())
			assert.Equal(t, tt.wantMsg, ae.Message)
		})
	}
}

// spanNames records the names of started spans.
type spanNames struct {
	noop.TracerProvider
	names *[]string
}

func (p spanNames) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return namingTracer{names: p.names}
}

type namingTracer struct {
	noop.Tracer
	names *[]string
}

func (t namingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	*t.names = append(*t.names, name)
	return noop.NewTracerProvider().Tracer("").Start(ctx, name)
}

func TestAnalyzer_Spans(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"parsed", `{"keyDecisions":["a"]}`},
		{"unparseable", "no json here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := otel.GetTracerProvider()
			names := &[]string{}
			otel.SetTracerProvider(spanNames{names: names})
			t.Cleanup(func() { otel.SetTracerProvider(prev) })

			a := NewAnalyzer(DefaultConfig(), &fakeCompleter{reply: tt.reply}, WithTracer(observability.NewTracer()))
			_, _ = a.Analyze(context.Background(), "a long enough transcript")

			assert.Equal(t, []string{observability.SpanLLMCall, observability.SpanNormalize}, *names)
		})
	}
}
