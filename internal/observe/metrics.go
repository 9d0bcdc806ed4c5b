// Package observe provides application-wide observability primitives for
// quizhost: OpenTelemetry metrics, tracing, and trace-aware structured
// logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so the debug HTTP server can
// expose them on /metrics. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all quizhost metrics.
const meterName = "github.com/MrWong99/quizhost"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// FactCheckDuration tracks search-grounded fact-check latency.
	FactCheckDuration metric.Float64Histogram

	// TTSDuration tracks summary speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// ConnectDuration tracks how long the live channel took to acknowledge
	// its setup.
	ConnectDuration metric.Float64Histogram

	// --- Counters ---

	// FramesSent counts microphone frames handed to the live channel. Use
	// with attribute.String("status", "ok"|"error").
	FramesSent metric.Int64Counter

	// PlaybackFragments counts synthesised audio fragments scheduled for
	// playback.
	PlaybackFragments metric.Int64Counter

	// PlaybackInterruptions counts barge-in interruptions.
	PlaybackInterruptions metric.Int64Counter

	// Turns counts completed turns. Use with attributes:
	//   attribute.Bool("scored", ...), attribute.Bool("asked", ...)
	Turns metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live game sessions.
	ActiveSessions metric.Int64UpDownCounter

	// PendingFactChecks tracks fact-check requests in flight.
	PendingFactChecks metric.Int64UpDownCounter

	// --- HTTP ---

	// HTTPRequestDuration tracks debug server request time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// network round trips to hosted models.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.FactCheckDuration, err = m.Float64Histogram("quizhost.factcheck.duration",
		metric.WithDescription("Latency of search-grounded fact checks."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("quizhost.tts.duration",
		metric.WithDescription("Latency of summary speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConnectDuration, err = m.Float64Histogram("quizhost.s2s.connect.duration",
		metric.WithDescription("Time until the live channel acknowledged its setup."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesSent, err = m.Int64Counter("quizhost.audio.frames_sent",
		metric.WithDescription("Microphone frames handed to the live channel by status."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackFragments, err = m.Int64Counter("quizhost.playback.fragments",
		metric.WithDescription("Synthesised audio fragments scheduled for playback."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackInterruptions, err = m.Int64Counter("quizhost.playback.interruptions",
		metric.WithDescription("Playback interruptions caused by user barge-in."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("quizhost.turns",
		metric.WithDescription("Completed conversation turns."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("quizhost.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("quizhost.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("quizhost.active_sessions",
		metric.WithDescription("Number of live game sessions."),
	); err != nil {
		return nil, err
	}
	if met.PendingFactChecks, err = m.Int64UpDownCounter("quizhost.factcheck.pending",
		metric.WithDescription("Fact-check requests currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("quizhost.http.request.duration",
		metric.WithDescription("Debug server request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordFrameSent counts one microphone frame. ok reports whether the live
// channel accepted it.
func (m *Metrics) RecordFrameSent(ctx context.Context, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.FramesSent.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordTurn counts one completed turn.
func (m *Metrics) RecordTurn(ctx context.Context, scored, asked bool) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("scored", scored),
			attribute.Bool("asked", asked),
		),
	)
}
