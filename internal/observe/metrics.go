// Package observe provides application-wide observability primitives for
// voicewire: OpenTelemetry metrics, tracing helpers, and structured-logging
// glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all voicewire metrics.
const meterName = "github.com/MrWong99/voicewire"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// EncodeDuration tracks time spent building one outbound chunk
	// (downmix + resample + quantise + encode).
	EncodeDuration metric.Float64Histogram

	// ScheduleGap tracks, per scheduled inbound chunk, how far ahead of the
	// output clock the chunk's start time was placed. Near-zero values mean
	// the scheduler is running at the edge of underrun.
	ScheduleGap metric.Float64Histogram

	// --- Counters ---

	// ChunksSent counts outbound encoded chunks handed to the transport.
	ChunksSent metric.Int64Counter

	// ChunksReceived counts inbound chunks by decode outcome. Use with
	// attribute: attribute.String("status", "ok"|"malformed"|"bad_format")
	ChunksReceived metric.Int64Counter

	// Interrupts counts barge-in interruptions delivered by the service.
	Interrupts metric.Int64Counter

	// SchedulerErrors counts failures propagated by the output device when
	// scheduling a decoded chunk.
	SchedulerErrors metric.Int64Counter

	// --- Gauges ---

	// LiveUnits tracks the number of playback units currently scheduled or
	// active.
	LiveUnits metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for per-chunk audio path latencies.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// gapBuckets defines histogram bucket boundaries (in seconds) for playback
// scheduling headroom.
var gapBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EncodeDuration, err = m.Float64Histogram("voicewire.capture.encode.duration",
		metric.WithDescription("Time to build one outbound encoded chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ScheduleGap, err = m.Float64Histogram("voicewire.playback.schedule.gap",
		metric.WithDescription("Headroom between a unit's start time and the output clock when scheduled."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(gapBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ChunksSent, err = m.Int64Counter("voicewire.capture.chunks.sent",
		metric.WithDescription("Total outbound encoded chunks handed to the transport."),
	); err != nil {
		return nil, err
	}
	if met.ChunksReceived, err = m.Int64Counter("voicewire.playback.chunks.received",
		metric.WithDescription("Total inbound chunks by decode status."),
	); err != nil {
		return nil, err
	}
	if met.Interrupts, err = m.Int64Counter("voicewire.playback.interrupts",
		metric.WithDescription("Total barge-in interruptions."),
	); err != nil {
		return nil, err
	}
	if met.SchedulerErrors, err = m.Int64Counter("voicewire.playback.scheduler.errors",
		metric.WithDescription("Total output-device failures while scheduling decoded chunks."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.LiveUnits, err = m.Int64UpDownCounter("voicewire.playback.live_units",
		metric.WithDescription("Number of playback units currently scheduled or active."),
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

// RecordChunkReceived records one inbound chunk with its decode status.
func (m *Metrics) RecordChunkReceived(ctx context.Context, status string) {
	m.ChunksReceived.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
