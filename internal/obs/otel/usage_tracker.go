package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// UsageOptions contains the options for recording one proxied request.
type UsageOptions struct {
	// Surface is the protocol surface that served the request
	// ("chat", "messages", "responses")
	Surface string

	// Model is the upstream model actually used
	Model string

	// RequestModel is the model name the client asked for
	RequestModel string

	// InputTokens is the number of input/prompt tokens consumed
	InputTokens int

	// OutputTokens is the number of output/completion tokens consumed
	OutputTokens int

	// Streamed indicates whether this was a streaming request
	Streamed bool

	// Status is the request status - "success", "error", or "canceled"
	Status string

	// ErrorCode is the error code if status is not "success"
	ErrorCode string

	// LatencyMs is the request processing time in milliseconds
	LatencyMs int
}

// UsageTracker records per-request token usage and latency using
// OpenTelemetry metrics.
type UsageTracker struct {
	tokenUsage      metric.Int64Counter
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestError    metric.Int64Counter
}

// NewUsageTracker creates a UsageTracker with the provided meter.
func NewUsageTracker(meter metric.Meter) (*UsageTracker, error) {
	ut := &UsageTracker{}

	var err error

	ut.tokenUsage, err = meter.Int64Counter(
		"llm.token.usage",
		metric.WithDescription("LLM token usage by type (input/output)"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	ut.requestCount, err = meter.Int64Counter(
		"proxy.request.count",
		metric.WithDescription("Number of proxied requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	ut.requestDuration, err = meter.Float64Histogram(
		"proxy.request.duration",
		metric.WithDescription("Proxied request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	ut.requestError, err = meter.Int64Counter(
		"proxy.request.errors",
		metric.WithDescription("Number of proxied request errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return ut, nil
}

// RecordUsage records one request outcome. Nil trackers are no-ops so call
// sites never need to guard against disabled metrics.
func (ut *UsageTracker) RecordUsage(ctx context.Context, opts UsageOptions) {
	if ut == nil {
		return
	}

	commonAttrs := []attribute.KeyValue{
		AttrLLMSurface.String(opts.Surface),
		AttrLLMModel.String(opts.Model),
		AttrLLMRequestModel.String(opts.RequestModel),
		AttrLLMStreaming.Bool(opts.Streamed),
		AttrLLMResponseStatus.String(opts.Status),
	}
	if opts.ErrorCode != "" {
		commonAttrs = append(commonAttrs, AttrLLMErrorCode.String(opts.ErrorCode))
	}

	if opts.InputTokens > 0 {
		inputAttrs := append(commonAttrs, AttrLLMTokenType.String("input"))
		ut.tokenUsage.Add(ctx, int64(opts.InputTokens), metric.WithAttributes(inputAttrs...))
	}
	if opts.OutputTokens > 0 {
		outputAttrs := append(commonAttrs, AttrLLMTokenType.String("output"))
		ut.tokenUsage.Add(ctx, int64(opts.OutputTokens), metric.WithAttributes(outputAttrs...))
	}

	ut.requestCount.Add(ctx, 1, metric.WithAttributes(commonAttrs...))

	if opts.LatencyMs > 0 {
		ut.requestDuration.Record(ctx, float64(opts.LatencyMs), metric.WithAttributes(commonAttrs...))
	}

	if opts.Status == "error" {
		ut.requestError.Add(ctx, 1, metric.WithAttributes(commonAttrs...))
	}
}
