// Package observe provides application-wide observability primitives for
// EchoList: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all EchoList metrics.
const meterName = "github.com/MrWong99/echolist"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// ReconcileDuration tracks end-to-end instruction reconciliation latency,
	// including the LLM round-trip and the store write.
	ReconcileDuration metric.Float64Histogram

	// RecipeFetchDuration tracks recipe URL fetch and extraction latency.
	RecipeFetchDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Reconciliations counts list reconciliations. Use with attributes:
	//   attribute.String("list_type", ...), attribute.String("status", ...)
	Reconciliations metric.Int64Counter

	// ItemsChanged counts items added, removed, or modified per reconciliation.
	// Use with attribute: attribute.String("change", ...)
	ItemsChanged metric.Int64Counter

	// RecipeExtractions counts ingredient extractions. Use with attributes:
	//   attribute.String("source", ...), attribute.String("status", ...)
	RecipeExtractions metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveCaptures tracks the number of live transcript capture sessions.
	ActiveCaptures metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM-backed request latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("echolist.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReconcileDuration, err = m.Float64Histogram("echolist.reconcile.duration",
		metric.WithDescription("End-to-end instruction reconciliation latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecipeFetchDuration, err = m.Float64Histogram("echolist.recipe_fetch.duration",
		metric.WithDescription("Latency of recipe URL fetch and extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("echolist.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Reconciliations, err = m.Int64Counter("echolist.reconciliations",
		metric.WithDescription("Total list reconciliations by list type and status."),
	); err != nil {
		return nil, err
	}
	if met.ItemsChanged, err = m.Int64Counter("echolist.items.changed",
		metric.WithDescription("Total items added, removed, or modified by reconciliations."),
	); err != nil {
		return nil, err
	}
	if met.RecipeExtractions, err = m.Int64Counter("echolist.recipe.extractions",
		metric.WithDescription("Total recipe ingredient extractions by source and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("echolist.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCaptures, err = m.Int64UpDownCounter("echolist.active_captures",
		metric.WithDescription("Number of live transcript capture sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("echolist.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordReconciliation records one reconciliation outcome together with the
// per-change item counts reported by the model.
func (m *Metrics) RecordReconciliation(ctx context.Context, listType, status string, added, removed, modified int) {
	m.Reconciliations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("list_type", listType),
			attribute.String("status", status),
		),
	)
	for change, n := range map[string]int{"added": added, "removed": removed, "modified": modified} {
		if n > 0 {
			m.ItemsChanged.Add(ctx, int64(n),
				metric.WithAttributes(attribute.String("change", change)),
			)
		}
	}
}

// RecordRecipeExtraction records one ingredient extraction outcome. Source is
// "text" or "url".
func (m *Metrics) RecordRecipeExtraction(ctx context.Context, source, status string) {
	m.RecipeExtractions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
