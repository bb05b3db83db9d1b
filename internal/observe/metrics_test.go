package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestFrameCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesSent.Add(ctx, 1)
	m.FramesSent.Add(ctx, 1)
	m.RecordFrameReceived(ctx, "audio")
	m.RecordFrameReceived(ctx, "audio")
	m.RecordFrameReceived(ctx, "control")

	rm := collect(t, reader)

	sent := findMetric(rm, "voxfolio.frames.sent")
	if sent == nil {
		t.Fatal("frames.sent not found")
	}
	sum, ok := sent.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("frames.sent has no sum data")
	}
	if sum.DataPoints[0].Value != 2 {
		t.Errorf("frames.sent = %d, want 2", sum.DataPoints[0].Value)
	}

	recv := findMetric(rm, "voxfolio.frames.received")
	if recv == nil {
		t.Fatal("frames.received not found")
	}
	recvSum := recv.Data.(metricdata.Sum[int64])
	for _, dp := range recvSum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "kind" && kv.Value.AsString() == "audio" {
				if dp.Value != 2 {
					t.Errorf("frames.received{kind=audio} = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with kind=audio not found")
}

func TestFramesDroppedByReason(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFrameDropped(ctx, "decode_error")
	m.RecordFrameDropped(ctx, "decode_error")
	m.RecordFrameDropped(ctx, "backpressure")

	rm := collect(t, reader)
	met := findMetric(rm, "voxfolio.frames.dropped")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "reason" && kv.Value.AsString() == "decode_error" {
				if dp.Value != 2 {
					t.Errorf("counter value = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with reason=decode_error not found")
}

func TestPlaybackCatchUpHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCatchUp(ctx, 120*time.Millisecond)
	m.RecordCatchUp(ctx, 480*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "voxfolio.playback.catchup")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
	if got := hist.DataPoints[0].Sum; got < 0.59 || got > 0.61 {
		t.Errorf("sum = %v, want 0.6", got)
	}
}

func TestAPIRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAPIRequest(ctx, "/api/cash_balance", "200", 50*time.Millisecond)
	m.RecordAPIRequest(ctx, "/api/cash_balance", "500", 10*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "voxfolio.api.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}

	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 2 {
		t.Errorf("total samples = %d, want 2", total)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)
	m.ActiveSessions.Add(ctx, 1)

	rm := collect(t, reader)
	met := findMetric(rm, "voxfolio.active_sessions")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("gauge value = %d, want 1", got)
	}
}

func TestSessionDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionDuration.Record(ctx, 42.5,
		metric.WithAttributes(attribute.String("reason", "user_stop")),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "voxfolio.session.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
