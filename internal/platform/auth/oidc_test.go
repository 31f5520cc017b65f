package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestJWKSCache_KeyCachesKeys(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "key1", Algorithm: jwt.SigningMethodRS256.Alg(), Use: "sig"}

	var mu sync.Mutex
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(server.Close)

	now := time.Unix(1_000_000, 0)
	cache := NewJWKSCache(server.URL, WithJWKSClock(func() time.Time { return now }))

	ctx := context.Background()
	got, err := cache.Key(ctx, "key1")
	if err != nil {
		t.Fatalf("cache.Key: %v", err)
	}
	if _, ok := got.(*rsa.PublicKey); !ok {
		t.Fatalf("expected *rsa.PublicKey, got %T", got)
	}
	if _, err := cache.Key(ctx, "key1"); err != nil {
		t.Fatalf("cache.Key second call: %v", err)
	}
	if _, err := cache.Key(ctx, "rotated"); !errors.Is(err, ErrJWKSKeyNotFound) {
		t.Fatalf("expected key not found, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := cache.Key(ctx, "key1"); err != nil {
		t.Fatalf("cache.Key after expiry: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// initial fetch, unknown kid refetch, expiry refetch
	if requests != 3 {
		t.Fatalf("expected 3 JWKS fetches, got %d", requests)
	}
}

func TestOIDCRequireOIDC_Success(t *testing.T) {
	validator, token := setupOIDCTest(t, nil)

	handler := validator.RequireOIDC("https://example.com", []string{"https://accounts.google.com"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := ServiceIdentityFromContext(r.Context())
			if !ok || identity.Email != "scheduler@example.com" {
				t.Fatalf("expected service identity in context, got %+v", identity)
			}
			w.WriteHeader(http.StatusNoContent)
		}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
}

func TestOIDCRequireOIDC_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		audience string
		issuers  []string
		mutate   func(jwt.MapClaims)
		want     int
	}{
		{name: "audience mismatch", audience: "https://other.internal", issuers: []string{"https://accounts.google.com"}, want: http.StatusUnauthorized},
		{name: "issuer mismatch", audience: "https://example.com", issuers: []string{"https://cloud.google.com/iap"}, want: http.StatusUnauthorized},
		{name: "expired", audience: "https://example.com", mutate: func(c jwt.MapClaims) {
			c["exp"] = float64(time.Unix(1_700_000_000, 0).Add(-time.Minute).Unix())
		}, want: http.StatusUnauthorized},
		{name: "audience not configured", audience: "", want: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validator, token := setupOIDCTest(t, tc.mutate)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			validator.RequireOIDC(tc.audience, tc.issuers)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler should not be called")
			})).ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestOIDCRequireOIDC_JWKSUnavailable(t *testing.T) {
	validator, token := setupOIDCTest(t, nil)
	validator.cache.url = "http://127.0.0.1:1/invalid"

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	validator.RequireOIDC("https://example.com", nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func setupOIDCTest(t *testing.T, mutateClaims func(jwt.MapClaims)) (*OIDCValidator, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "svc-key", Algorithm: jwt.SigningMethodRS256.Alg(), Use: "sig"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(server.Close)

	now := time.Unix(1_700_000_000, 0)
	originalTimeFunc := jwt.TimeFunc
	jwt.TimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.TimeFunc = originalTimeFunc })

	validator := NewOIDCValidator(
		NewJWKSCache(server.URL, WithJWKSClock(func() time.Time { return now })),
		WithOIDCMeter(noop.NewMeterProvider().Meter("test")),
	)

	claims := jwt.MapClaims{
		"aud":   []string{"https://example.com"},
		"iss":   "https://accounts.google.com",
		"sub":   "1234567890",
		"email": "scheduler@example.com",
		"exp":   float64(now.Add(time.Hour).Unix()),
		"iat":   float64(now.Unix()),
	}
	if mutateClaims != nil {
		mutateClaims(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "svc-key"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return validator, signed
}
