package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/requestctx"
)

var fixedTime = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func newCheckoutRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "uid-1"}))
}

func TestMiddleware_MissingHeader(t *testing.T) {
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked when header is missing")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCheckoutRequest("", `{}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddleware_OptionalPassesThrough(t *testing.T) {
	called := false
	handler := Middleware(NewMemoryStore(), Optional())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), newCheckoutRequest("", `{}`))
	if !called {
		t.Fatalf("expected handler to run without key")
	}
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"order_id":"ord_1"}`))
		}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newCheckoutRequest("abc-123", `{"payment_method":"cod"}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newCheckoutRequest("abc-123", `{"payment_method":"cod"}`))

	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != `{"order_id":"ord_1"}` {
		t.Fatalf("unexpected replay %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get(replayHeaderName) != "true" || second.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected replay headers, got %v", second.Header())
	}
}

func TestMiddleware_RejectsDifferentBody(t *testing.T) {
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), newCheckoutRequest("k1", `{"points_to_use":1}`))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCheckoutRequest("k1", `{"points_to_use":2}`))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddleware_KeysAreScopedPerCaller(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	handler.ServeHTTP(httptest.NewRecorder(), newCheckoutRequest("shared", `{}`))

	other := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(`{}`))
	other.Header.Set("Idempotency-Key", "shared")
	other = other.WithContext(requestctx.WithSessionID(other.Context(), "guest-9"))
	handler.ServeHTTP(httptest.NewRecorder(), other)

	if calls != 2 {
		t.Fatalf("expected independent keys per caller, got %d calls", calls)
	}
}

func TestMiddleware_ServerErrorsAreRetryable(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newCheckoutRequest("retry", `{}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newCheckoutRequest("retry", `{}`))

	if first.Code != http.StatusServiceUnavailable || second.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry after 5xx, got %d/%d calls=%d", first.Code, second.Code, calls)
	}
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Reserve(ctx, "a", "fp", fixedTime, time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := store.Reserve(ctx, "b", "fp", fixedTime, 3*time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	removed, err := store.CleanupExpired(ctx, fixedTime.Add(2*time.Hour), 10)
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 removed, got %d %v", removed, err)
	}

	res, err := store.Reserve(ctx, "a", "other", fixedTime.Add(2*time.Hour), time.Hour)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected expired key to be reusable, got %+v %v", res, err)
	}
}

func assertErrorCode(t *testing.T, body []byte, code string) {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if payload["error"] != code {
		t.Fatalf("expected error code %s, got %v", code, payload["error"])
	}
}
