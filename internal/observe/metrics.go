// Package observe provides application-wide observability primitives for
// Minrelay: OpenTelemetry metrics, tracing helpers, and structured-logging
// glue.
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Minrelay metrics.
const meterName = "github.com/minrelay/minrelay"

// Pipeline attribute values used across instruments.
const (
	PipelineKeypoints = "keypoints"
	PipelineSpeakers  = "speakers"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ConsumerDuration tracks the latency of enrichment consumer round trips.
	// Use with attribute.String("pipeline", ...).
	ConsumerDuration metric.Float64Histogram

	// ChunksProcessed counts finalized chunks accepted by the orchestrator.
	ChunksProcessed metric.Int64Counter

	// ChunksSkipped counts chunks rejected by the finality gate.
	ChunksSkipped metric.Int64Counter

	// ParseFailures counts unparseable consumer responses. Use with
	// attribute.String("pipeline", ...).
	ParseFailures metric.Int64Counter

	// PipelineErrors counts transport and persistence faults absorbed at the
	// orchestrator boundary. Use with attribute.String("pipeline", ...).
	PipelineErrors metric.Int64Counter

	// KeypointsPersisted counts key-point items written to the log.
	KeypointsPersisted metric.Int64Counter

	// SpeakerResolutions counts accepted speaker identity upserts. Use with
	// attribute.String("source", "consumer"|"manual").
	SpeakerResolutions metric.Int64Counter

	// ActiveSessions tracks the number of live transcription sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM round-trip latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ConsumerDuration, err = m.Float64Histogram("minrelay.consumer.duration",
		metric.WithDescription("Latency of enrichment consumer round trips by pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ChunksProcessed, err = m.Int64Counter("minrelay.chunks.processed",
		metric.WithDescription("Finalized transcript chunks accepted for enrichment."),
	); err != nil {
		return nil, err
	}
	if met.ChunksSkipped, err = m.Int64Counter("minrelay.chunks.skipped",
		metric.WithDescription("Chunks rejected by the finality gate."),
	); err != nil {
		return nil, err
	}
	if met.ParseFailures, err = m.Int64Counter("minrelay.parse.failures",
		metric.WithDescription("Unparseable consumer responses by pipeline."),
	); err != nil {
		return nil, err
	}
	if met.PipelineErrors, err = m.Int64Counter("minrelay.pipeline.errors",
		metric.WithDescription("Pipeline faults absorbed at the orchestrator boundary."),
	); err != nil {
		return nil, err
	}
	if met.KeypointsPersisted, err = m.Int64Counter("minrelay.keypoints.persisted",
		metric.WithDescription("Key-point items written to the log."),
	); err != nil {
		return nil, err
	}
	if met.SpeakerResolutions, err = m.Int64Counter("minrelay.speaker.resolutions",
		metric.WithDescription("Accepted speaker identity upserts by source."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("minrelay.active_sessions",
		metric.WithDescription("Number of live transcription sessions."),
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

// RecordConsumerDuration records one consumer round trip for pipeline.
func (m *Metrics) RecordConsumerDuration(ctx context.Context, pipeline string, seconds float64) {
	m.ConsumerDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("pipeline", pipeline)),
	)
}

// RecordParseFailure records an unparseable consumer response for pipeline.
func (m *Metrics) RecordParseFailure(ctx context.Context, pipeline string) {
	m.ParseFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("pipeline", pipeline)),
	)
}

// RecordPipelineError records an absorbed fault for pipeline.
func (m *Metrics) RecordPipelineError(ctx context.Context, pipeline string) {
	m.PipelineErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("pipeline", pipeline)),
	)
}

// RecordSpeakerResolution records one accepted identity upsert. source is
// "consumer" for pipeline resolutions and "manual" for operator corrections.
func (m *Metrics) RecordSpeakerResolution(ctx context.Context, source string) {
	m.SpeakerResolutions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}
