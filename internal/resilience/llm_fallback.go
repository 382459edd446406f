package resilience

import (
	"context"
	"time"

	"github.com/MrWong99/echolist/internal/observe"
	"github.com/MrWong99/echolist/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with automatic failover across multiple
// LLM backends. Each backend has its own circuit breaker; when the primary fails
// or its breaker is open, the next healthy fallback is tried.
//
// With a single backend it degrades to a plain circuit breaker, which is still
// useful: a flapping model API stops burning request timeouts on every list
// edit.
type LLMFallback struct {
	group       *FallbackGroup[llm.Provider]
	primaryName string
	metrics     *observe.Metrics
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// LLMOption is a functional option for configuring an [LLMFallback].
type LLMOption func(*LLMFallback)

// WithLLMMetrics records call latency, request counts, and error counts for
// every model call routed through the group.
func WithLLMMetrics(m *observe.Metrics) LLMOption {
	return func(f *LLMFallback) {
		f.metrics = m
	}
}

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig, opts ...LLMOption) *LLMFallback {
	f := &LLMFallback{
		group:       NewFallbackGroup(primary, primaryName, cfg),
		primaryName: primaryName,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy provider and returns its
// response. If the primary fails, subsequent fallbacks are tried.
//
// This is the single funnel every model call passes through, so it is also
// where provider telemetry is recorded: one duration sample and one request
// count per call, plus an error count when all backends fail.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	if f.metrics != nil {
		f.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
			f.metrics.RecordProviderError(ctx, f.primaryName, "llm")
		}
		f.metrics.RecordProviderRequest(ctx, f.primaryName, "llm", status)
	}
	return resp, err
}
