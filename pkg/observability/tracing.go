package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for spans emitted by the service.
const TracerName = "minutes"

// Span attribute keys
const (
	AttrOperation    = "operation"
	AttrModel        = "model"
	AttrDurationMs   = "duration_ms"
	AttrInputTokens  = "input_tokens"
	AttrOutputTokens = "output_tokens"
	AttrStrategy     = "strategy"
	AttrPrivileged   = "privileged"
	AttrErrorType    = "error_type"
	AttrAudioBytes   = "audio_bytes"
)

// Span names
const (
	SpanLLMCall       = "minutes.llm_call"
	SpanTranscription = "minutes.transcription"
	SpanNormalize     = "minutes.normalize"
)

// Tracer wraps the global otel tracer.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

type privilegedKey struct{}

// ContextWithPrivileged records the caller's access level for provider spans.
func ContextWithPrivileged(ctx context.Context, privileged bool) context.Context {
	return context.WithValue(ctx, privilegedKey{}, privileged)
}

// callerAttrs returns the access level recorded in ctx, if any.
func callerAttrs(ctx context.Context, attrs ...attribute.KeyValue) []attribute.KeyValue {
	if p, ok := ctx.Value(privilegedKey{}).(bool); ok {
		attrs = append(attrs, attribute.Bool(AttrPrivileged, p))
	}
	return attrs
}

// StartLLMSpan starts a span for a completion call.
func (t *Tracer) StartLLMSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanLLMCall,
		trace.WithAttributes(callerAttrs(ctx,
			attribute.String(AttrOperation, OperationAnalyze),
			attribute.String(AttrModel, model),
		)...),
	)
}

// StartTranscriptionSpan starts a span for a speech-to-text call.
func (t *Tracer) StartTranscriptionSpan(ctx context.Context, model string, size int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanTranscription,
		trace.WithAttributes(callerAttrs(ctx,
			attribute.String(AttrOperation, OperationTranscribe),
			attribute.String(AttrModel, model),
			attribute.Int64(AttrAudioBytes, size),
		)...),
	)
}

// StartNormalizeSpan starts a span for parsing a model reply.
func (t *Tracer) StartNormalizeSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanNormalize)
}

// SpanHelper provides convenient methods for working with a span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetLLMResult sets completion result attributes.
func (h *SpanHelper) SetLLMResult(inputTokens, outputTokens int, latencyMs int64) {
	h.span.SetAttributes(
		attribute.Int(AttrInputTokens, inputTokens),
		attribute.Int(AttrOutputTokens, outputTokens),
		attribute.Int64(AttrDurationMs, latencyMs),
	)
}

// SetDuration sets the duration attribute.
func (h *SpanHelper) SetDuration(durationMs int64) {
	h.span.SetAttributes(attribute.Int64(AttrDurationMs, durationMs))
}

// SetStrategy records the normalizer strategy that parsed a reply.
func (h *SpanHelper) SetStrategy(name string) {
	h.span.SetAttributes(attribute.String(AttrStrategy, name))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorType string) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(attribute.String(AttrErrorType, errorType))
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
