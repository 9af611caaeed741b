// Package observability provides OpenTelemetry tracing and metrics for DocLens.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name used for the DocLens tracer.
	TracerName = "github.com/doclens/doclens"
)

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "doclens")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "doclens",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	// If no endpoint, return no-op tracer
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	// Create OTLP exporter
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	// Create resource with service info
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	// Create sampler
	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	// Create trace provider
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global provider and propagator
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// SpanKind constants for DocLens operations.
const (
	SpanKindAnalyze   = "analyze"
	SpanKindLLM       = "llm"
	SpanKindEmbedding = "embedding"
	SpanKindRetrieval = "retrieval"
	SpanKindSummarize = "summarize"
)

// StartAnalyzeSpan starts a span for a document analysis operation.
func StartAnalyzeSpan(ctx context.Context, sourceType string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, fmt.Sprintf("analyze.%s", sourceType),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("doclens.span.kind", SpanKindAnalyze),
			attribute.String("analyze.source_type", sourceType),
		),
	)
	return ctx, span
}

// RecordAnalyzeResult records document analysis results on a span.
func RecordAnalyzeResult(span trace.Span, chunkCount, contentLength int) {
	span.SetAttributes(
		attribute.Int("analyze.chunk_count", chunkCount),
		attribute.Int("analyze.content_length", contentLength),
	)
}

// StartLLMSpan starts a span for an LLM call.
func StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("doclens.span.kind", SpanKindLLM),
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		),
	)
	return ctx, span
}

// RecordLLMMetrics records LLM call metrics on a span.
func RecordLLMMetrics(span trace.Span, inputTokens, outputTokens int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
	)
}

// StartEmbeddingSpan starts a span for an embedding request.
func StartEmbeddingSpan(ctx context.Context, textCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "embedding.embed",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("doclens.span.kind", SpanKindEmbedding),
			attribute.Int("embedding.text_count", textCount),
		),
	)
	return ctx, span
}

// RecordEmbeddingResult records embedding results on a span.
func RecordEmbeddingResult(span trace.Span, dimension int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("embedding.dimension", dimension),
		attribute.Int64("embedding.duration_ms", duration.Milliseconds()),
	)
}

// StartRetrievalSpan starts a span for a similarity search.
func StartRetrievalSpan(ctx context.Context, topK int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "retrieval.search",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("doclens.span.kind", SpanKindRetrieval),
			attribute.Int("retrieval.top_k", topK),
		),
	)
	return ctx, span
}

// RecordRetrievalResult records similarity search results on a span.
func RecordRetrievalResult(span trace.Span, resultCount int, topScore float64) {
	span.SetAttributes(
		attribute.Int("retrieval.result_count", resultCount),
		attribute.Float64("retrieval.top_score", topScore),
	)
}

// StartSummarizeSpan starts a span for a summarization run.
func StartSummarizeSpan(ctx context.Context, chunksTotal int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "summarize.document",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("doclens.span.kind", SpanKindSummarize),
			attribute.Int("summarize.chunks_total", chunksTotal),
		),
	)
	return ctx, span
}

// RecordSummarizeResult records summarization results on a span.
func RecordSummarizeResult(span trace.Span, summarized, dropped int, mergeFailed bool) {
	span.SetAttributes(
		attribute.Int("summarize.chunks_summarized", summarized),
		attribute.Int("summarize.chunks_dropped", dropped),
		attribute.Bool("summarize.merge_failed", mergeFailed),
	)
	if mergeFailed {
		span.SetStatus(codes.Error, "merge pass failed, returned concatenated chunk summaries")
	}
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
