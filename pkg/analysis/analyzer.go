package analysis

import (
	"context"
	"errors"
	"net/url"
	"time"

	mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
	"github.com/otherjamesbrown/minutes/pkg/logging"
	"github.com/otherjamesbrown/minutes/pkg/observability"
	"github.com/otherjamesbrown/minutes/pkg/provider"
)

// Caller-visible messages.
const (
	MsgNotConfigured = "API key not configured"
	MsgFailed        = "Failed to analyze meeting transcript"
	ProviderPrefix   = "API Error: "
	MsgConnection    = "Connection error."
	MsgTimeout       = "Request timed out."
)

// Completer is a text model that answers a single prompt.
type Completer interface {
	Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error)
}

// Config configures an Analyzer. Zero values defer to the Completer's own
// defaults.
type Config struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// DefaultTemperature favors deterministic structured output.
const DefaultTemperature = 0.3

// DefaultConfig returns the analysis defaults.
func DefaultConfig() Config {
	return Config{
		Model:       "claude-sonnet-4-20250514",
		MaxTokens:   4096,
		Temperature: DefaultTemperature,
	}
}

// Analyzer prompts a Completer with a transcript and normalizes the reply.
type Analyzer struct {
	config     Config
	completer  Completer
	normalizer *Normalizer
	logger     logging.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the analyzer's logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// WithMetrics records provider calls and normalizer outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// WithTracer sets the tracer used for provider spans.
func WithTracer(t *observability.Tracer) Option {
	return func(a *Analyzer) {
		a.tracer = t
	}
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *Normalizer) Option {
	return func(a *Analyzer) {
		a.normalizer = n
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(config Config, completer Completer, opts ...Option) *Analyzer {
	a := &Analyzer{
		config:     config,
		completer:  completer,
		normalizer: NewNormalizer(),
		logger:     logging.NewNopLogger(),
		tracer:     observability.NewTracer(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze extracts decisions, action items, questions, risks and next steps
// from a validated transcript. Every error returned is an *APIError.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (Result, error) {
	log := a.logger.WithContext(ctx)

	prompt, err := RenderPrompt(PromptData{Transcript: transcript})
	if err != nil {
		return Result{}, mnerrors.Internal(MsgFailed, err)
	}

	ctx, span := a.tracer.StartLLMSpan(ctx, a.config.Model)
	defer span.End()
	sh := observability.NewSpanHelper(span)

	start := time.Now()
	resp, err := a.completer.Complete(ctx, &provider.CompletionRequest{
		Model:       a.config.Model,
		Prompt:      prompt,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	})
	elapsed := time.Since(start)
	if err != nil {
		a.metrics.RecordAIOperation(observability.OperationAnalyze, a.config.Model, observability.StatusError, elapsed.Seconds())
		apiErr := completionError(err)
		sh.SetError(err, string(apiErr.Code))
		log.Error("analysis completion failed", logging.Err(err), logging.F("elapsed_ms", elapsed.Milliseconds()))
		return Result{}, apiErr
	}

	model := resp.Model
	if model == "" {
		model = a.config.Model
	}
	a.metrics.RecordAIOperation(observability.OperationAnalyze, model, observability.StatusSuccess, elapsed.Seconds())
	a.metrics.RecordTokens(model, resp.InputTokens, resp.OutputTokens)
	sh.SetLLMResult(resp.InputTokens, resp.OutputTokens, elapsed.Milliseconds())

	_, nspan := a.tracer.StartNormalizeSpan(ctx)
	nh := observability.NewSpanHelper(nspan)
	result, strategy, err := a.normalizer.Normalize(resp.Content)
	if err != nil {
		a.metrics.RecordNormalize("failed")
		nh.SetError(err, string(mnerrors.ErrUnparseableResponse))
		nspan.End()
		sh.SetError(err, string(mnerrors.ErrUnparseableResponse))
		log.Error("model reply could not be parsed",
			logging.Err(err),
			logging.F("reply_chars", len(resp.Content)),
			logging.F("stop_reason", resp.StopReason),
		)
		return Result{}, mnerrors.Unparseable(MsgFailed, err)
	}
	a.metrics.RecordNormalize(strategy)
	nh.SetStrategy(strategy)
	nh.SetSuccess()
	nspan.End()
	sh.SetStrategy(strategy)

	if err := CheckSchema(result); err != nil {
		a.metrics.RecordSchemaViolation()
		log.Warn("analysis result failed schema check", logging.Err(err))
	}

	sh.SetSuccess()
	log.Info("transcript analyzed",
		logging.F("strategy", strategy),
		logging.F("decisions", len(result.KeyDecisions)),
		logging.F("action_items", len(result.ActionItems)),
		logging.F("risk_flags", len(result.RiskFlags)),
		logging.F("elapsed_ms", elapsed.Milliseconds()),
	)
	return result, nil
}

// completionError classifies a Completer failure.
func completionError(err error) *mnerrors.APIError {
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
