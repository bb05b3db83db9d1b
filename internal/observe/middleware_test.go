package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testSetup creates both metrics and tracing infrastructure for transport tests.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	// Metrics.
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	// Tracing.
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

func TestTransport_CreatesClientSpan(t *testing.T) {
	m, _, exp := testSetup(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: Transport(nil, m)}
	resp, err := client.Get(srv.URL + "/span-test")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("transport did not create a span")
	}
	if spans[0].Name != "HTTP GET /span-test" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP GET /span-test")
	}
}

func TestTransport_RecordsDuration(t *testing.T) {
	m, reader, _ := testSetup(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: Transport(nil, m)}
	resp, err := client.Get(srv.URL + "/api/cash_balance")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	met := findMetric(rm, "voxfolio.api.request.duration")
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

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}

	foundEndpoint, foundStatus := false, false
	for _, kv := range dp.Attributes.ToSlice() {
		if string(kv.Key) == "endpoint" && kv.Value.AsString() == "/api/cash_balance" {
			foundEndpoint = true
		}
		if string(kv.Key) == "status" && kv.Value.AsString() == "200" {
			foundStatus = true
		}
	}
	if !foundEndpoint {
		t.Error("missing endpoint attribute")
	}
	if !foundStatus {
		t.Error("missing status attribute")
	}
}

func TestTransport_CapturesStatusCode(t *testing.T) {
	m, _, exp := testSetup(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: Transport(nil, m)}
	resp, err := client.Get(srv.URL + "/not-found")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no spans recorded")
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == 404 {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code attribute")
	}
}

func TestTransport_InjectsW3CTraceContext(t *testing.T) {
	m, _, _ := testSetup(t)

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: Transport(nil, m)}
	resp, err := client.Get(srv.URL + "/propagate")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if traceparent == "" {
		t.Error("outbound request carried no traceparent header")
	}
}

func TestTransport_RecordsErrorStatus(t *testing.T) {
	m, reader, _ := testSetup(t)

	// Unroutable port; the request must fail fast.
	client := &http.Client{Transport: Transport(nil, m)}
	_, err := client.Get("http://127.0.0.1:1/down")
	if err == nil {
		t.Fatal("expected connection error")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "voxfolio.api.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	found := false
	for _, dp := range hist.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "status" && kv.Value.AsString() == "error" {
				found = true
			}
		}
	}
	if !found {
		t.Error("no data point with status=error")
	}
}
