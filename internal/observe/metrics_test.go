package observe_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/minrelay/minrelay/internal/observe"
)

// collect gathers everything the meter provider has recorded.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewMetrics_RecordsInstruments(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.ChunksProcessed.Add(ctx, 3)
	m.ChunksSkipped.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.RecordConsumerDuration(ctx, observe.PipelineKeypoints, 0.42)
	m.RecordParseFailure(ctx, observe.PipelineSpeakers)
	m.RecordPipelineError(ctx, observe.PipelineKeypoints)
	m.RecordSpeakerResolution(ctx, "manual")
	m.KeypointsPersisted.Add(ctx, 2)

	got := collect(t, reader)
	for _, name := range []string{
		"minrelay.chunks.processed",
		"minrelay.chunks.skipped",
		"minrelay.consumer.duration",
		"minrelay.parse.failures",
		"minrelay.pipeline.errors",
		"minrelay.keypoints.persisted",
		"minrelay.speaker.resolutions",
		"minrelay.active_sessions",
	} {
		if _, ok := got[name]; !ok {
			t.Errorf("instrument %q was not recorded; got %v", name, keys(got))
		}
	}

	proc, ok := got["minrelay.chunks.processed"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("chunks.processed data type = %T", got["minrelay.chunks.processed"].Data)
	}
	var total int64
	for _, dp := range proc.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("chunks.processed = %d, want 3", total)
	}
}

func TestDefaultMetrics(t *testing.T) {
	t.Parallel()

	m := observe.DefaultMetrics()
	if m == nil {
		t.Fatal("DefaultMetrics() returned nil")
	}
	// Same instance on every call.
	if observe.DefaultMetrics() != m {
		t.Error("DefaultMetrics() is not a singleton")
	}
	// Recording against the default (possibly no-op) provider must not panic.
	m.ChunksProcessed.Add(context.Background(), 1)
}

func keys(m map[string]metricdata.Metrics) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
