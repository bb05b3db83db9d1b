// Package observe provides application-wide observability primitives for
// voxfolio: OpenTelemetry metrics, tracing, structured logging, and an HTTP
// transport wrapper that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxfolio metrics.
const meterName = "github.com/KabeerThockchom/voxfolio"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Audio pipeline counters ---

	// FramesSent counts audio frames shipped to the backend.
	FramesSent metric.Int64Counter

	// FramesReceived counts inbound frames. Use with attribute:
	//   attribute.String("kind", "audio"|"control")
	FramesReceived metric.Int64Counter

	// FramesDropped counts frames discarded before playback or send. Use
	// with attribute: attribute.String("reason", ...)
	FramesDropped metric.Int64Counter

	// --- Latency histograms ---

	// PlaybackCatchUp tracks how far the playback cursor snapped forward
	// when a frame arrived after an idle stretch.
	PlaybackCatchUp metric.Float64Histogram

	// APIRequestDuration tracks portfolio REST API latency. Use with
	// attributes: attribute.String("endpoint", ...), attribute.String("status", ...)
	APIRequestDuration metric.Float64Histogram

	// SessionDuration tracks how long voice sessions last.
	SessionDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions (0 or 1 in
	// practice; the state machine forbids more).
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for audio scheduling and local API latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.FramesSent, err = m.Int64Counter("voxfolio.frames.sent",
		metric.WithDescription("Total audio frames sent to the backend."),
	); err != nil {
		return nil, err
	}
	if met.FramesReceived, err = m.Int64Counter("voxfolio.frames.received",
		metric.WithDescription("Total inbound frames by kind."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("voxfolio.frames.dropped",
		metric.WithDescription("Total frames discarded by reason."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.PlaybackCatchUp, err = m.Float64Histogram("voxfolio.playback.catchup",
		metric.WithDescription("Distance the playback cursor snapped forward after idle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.APIRequestDuration, err = m.Float64Histogram("voxfolio.api.request.duration",
		metric.WithDescription("Portfolio REST API latency by endpoint and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("voxfolio.session.duration",
		metric.WithDescription("Voice session lifetime."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxfolio.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
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

// RecordFrameReceived records one inbound frame of the given kind.
func (m *Metrics) RecordFrameReceived(ctx context.Context, kind string) {
	m.FramesReceived.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordFrameDropped records one discarded frame with its reason.
func (m *Metrics) RecordFrameDropped(ctx context.Context, reason string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordCatchUp records how far the playback cursor jumped to catch up with
// the wall clock.
func (m *Metrics) RecordCatchUp(ctx context.Context, d time.Duration) {
	m.PlaybackCatchUp.Record(ctx, d.Seconds())
}

// RecordAPIRequest records one portfolio API call with the standard
// attribute set.
func (m *Metrics) RecordAPIRequest(ctx context.Context, endpoint, status string, elapsed time.Duration) {
	m.APIRequestDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		),
	)
}
