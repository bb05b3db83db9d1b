package observe

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// instrumentedTransport wraps an [http.RoundTripper] to trace and time every
// outbound portfolio API call.
type instrumentedTransport struct {
	base    http.RoundTripper
	metrics *Metrics
}

// Transport returns an [http.RoundTripper] that:
//
//  1. Starts an OTel client span for each outbound request.
//  2. Injects W3C Trace Context into the request headers.
//  3. Records request duration to [Metrics.APIRequestDuration] with the
//     endpoint path and response status.
//  4. Logs request completion with status, duration, and trace info.
//
// base may be nil, in which case [http.DefaultTransport] is used.
func Transport(base http.RoundTripper, m *Metrics) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &instrumentedTransport{base: base, metrics: m}
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, span := StartSpan(req.Context(), "HTTP "+req.Method+" "+req.URL.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.URL.Path),
		),
	)
	defer span.End()

	req = req.Clone(ctx)
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)

	duration := time.Since(start)
	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
		span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	} else {
		span.RecordError(err)
	}
	t.metrics.RecordAPIRequest(ctx, req.URL.Path, status, duration)

	slog.LogAttrs(ctx, slog.LevelDebug, "api request completed",
		slog.String("trace_id", CorrelationID(ctx)),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("status", status),
		slog.Duration("duration", duration),
	)

	return resp, err
}
