package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/requestctx"
)

func TestRequestLoggerMiddlewareLogsCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := InjectLoggerMiddleware(zap.New(core))(RequestLoggerMiddleware()(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req = req.WithContext(requestctx.WithSessionID(req.Context(), "guest-1"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if logs.Len() != 1 {
		t.Fatalf("expected one log line, got %d", logs.Len())
	}
	entry := logs.All()[0]
	fields := entry.ContextMap()
	if entry.Level != zapcore.WarnLevel || fields["status"] != int64(http.StatusConflict) {
		t.Fatalf("unexpected entry %s %v", entry.Level, fields)
	}
	if fields["session_id"] != "guest-1" || fields["path"] != "/api/v1/checkout" {
		t.Fatalf("missing request fields %v", fields)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "internal_error" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCloudTraceHeaderRoundTrip(t *testing.T) {
	sc, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if sc.TraceID().String() != "105445aa7843bc8bf206b12000100000" || !sc.IsSampled() {
		t.Fatalf("unexpected span context %+v", sc)
	}
	if _, ok := parseCloudTraceContext("not-a-trace"); ok {
		t.Fatalf("expected malformed header to be rejected")
	}

	info := requestctx.TraceInfo{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String(), Sampled: true}
	if got := formatCloudTraceHeader(info); got != "105445aa7843bc8bf206b12000100000/1;o=1" {
		t.Fatalf("unexpected header %q", got)
	}
}

func TestTraceMiddlewareStoresTraceInfo(t *testing.T) {
	var got requestctx.TraceInfo
	handler := TraceMiddleware("coffee-prod")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = requestctx.Trace(r.Context())
		if !trace.SpanContextFromContext(r.Context()).HasTraceID() {
			t.Errorf("expected span context on request")
		}
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/7;o=0")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.ProjectID != "coffee-prod" || got.TraceID != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace info %+v", got)
	}
}
