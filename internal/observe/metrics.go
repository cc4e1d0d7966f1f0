// Package observe provides application-wide observability primitives for
// Rehearsal: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Rehearsal metrics.
const meterName = "github.com/MrWong99/rehearsal"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ConnectDuration tracks how long establishing a live session takes.
	ConnectDuration metric.Float64Histogram

	// ReplyDuration tracks text coach reply latency.
	ReplyDuration metric.Float64Histogram

	// EvalDuration tracks session evaluation latency.
	EvalDuration metric.Float64Histogram

	// --- Counters ---

	// PacketsSent counts microphone packets streamed to the provider.
	PacketsSent metric.Int64Counter

	// ChunksScheduled counts model audio chunks handed to playback.
	ChunksScheduled metric.Int64Counter

	// Interruptions counts barge-in events that flushed scheduled audio.
	Interruptions metric.Int64Counter

	// TranscriptCommits counts committed transcript entries. Use with
	// attribute: attribute.String("role", ...)
	TranscriptCommits metric.Int64Counter

	// --- Error counters ---

	// CodecErrors counts malformed audio payloads that were skipped.
	CodecErrors metric.Int64Counter

	// SessionErrors counts fatal session failures. Use with attribute:
	//   attribute.String("kind", ...)
	SessionErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
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
	if met.ConnectDuration, err = m.Float64Histogram("rehearsal.session.connect.duration",
		metric.WithDescription("Latency of live session establishment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReplyDuration, err = m.Float64Histogram("rehearsal.coach.reply.duration",
		metric.WithDescription("Latency of text coach replies."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EvalDuration, err = m.Float64Histogram("rehearsal.coach.eval.duration",
		metric.WithDescription("Latency of session evaluations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.PacketsSent, err = m.Int64Counter("rehearsal.audio.packets_sent",
		metric.WithDescription("Total microphone packets streamed to the provider."),
	); err != nil {
		return nil, err
	}
	if met.ChunksScheduled, err = m.Int64Counter("rehearsal.audio.chunks_scheduled",
		metric.WithDescription("Total model audio chunks handed to playback."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("rehearsal.session.interruptions",
		metric.WithDescription("Total barge-in events that flushed scheduled audio."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptCommits, err = m.Int64Counter("rehearsal.transcript.commits",
		metric.WithDescription("Total committed transcript entries by role."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.CodecErrors, err = m.Int64Counter("rehearsal.audio.codec_errors",
		metric.WithDescription("Total malformed audio payloads skipped."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("rehearsal.session.errors",
		metric.WithDescription("Total fatal session failures by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("rehearsal.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("rehearsal.http.request.duration",
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

// RecordTranscriptCommit records a committed transcript entry for role.
func (m *Metrics) RecordTranscriptCommit(ctx context.Context, role string) {
	m.TranscriptCommits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("role", role)),
	)
}

// RecordSessionError records a fatal session failure of the given kind.
func (m *Metrics) RecordSessionError(ctx context.Context, kind string) {
	m.SessionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
