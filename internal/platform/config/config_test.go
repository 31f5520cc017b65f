package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "coffee-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "coffee-dev" || cfg.PubSub.ProjectID != "coffee-dev" {
		t.Errorf("expected projects to default to firebase project, got %s / %s", cfg.Firestore.ProjectID, cfg.PubSub.ProjectID)
	}
	if cfg.Shop.Currency != "VND" || cfg.Shop.ShippingFee != defaultShippingFee || cfg.Shop.PointValue != 1000 {
		t.Errorf("unexpected shop defaults %+v", cfg.Shop)
	}
	if cfg.Shop.SessionHeader != "X-Session-ID" {
		t.Errorf("unexpected session header %s", cfg.Shop.SessionHeader)
	}
	if cfg.Stripe.Enabled() {
		t.Errorf("expected stripe disabled without api key")
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if len(cfg.Security.OIDC.Issuers) != 1 || cfg.Security.OIDC.Issuers[0] != defaultSecurityIssuer {
		t.Errorf("expected default issuer, got %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader || cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected idempotency defaults %+v", cfg.Idempotency)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_FIREBASE_PROJECT_ID":       "coffee-prod",
		"API_FIRESTORE_PROJECT_ID":      "coffee-data",
		"API_PUBSUB_ORDER_EVENTS_TOPIC": "orders",
		"API_STRIPE_API_KEY":            "secret://stripe/api",
		"API_STRIPE_WEBHOOK_SECRET":     "sm://stripe/webhook",
		"API_STRIPE_SUCCESS_URL":        "https://shop.example.com/thanks",
		"API_SHOP_CURRENCY":             "usd",
		"API_SHOP_SHIPPING_FEE":         "499",
		"API_SHOP_FREE_SHIPPING_FROM":   "5000",
		"API_SHOP_POINT_VALUE":          "10",
		"API_SHOP_GUEST_CART_TTL":       "72h",
		"API_SECURITY_ENVIRONMENT":      "PROD",
		"API_SECURITY_OIDC_AUDIENCE":    "https://api.example.com",
		"API_SECURITY_OIDC_ISSUERS":     "https://accounts.google.com, https://cloud.google.com/iap",
		"API_IDEMPOTENCY_TTL":           "48h",
	}
	secrets := map[string]string{
		"secret://stripe/api":     "sk_live",
		"secret://stripe/webhook": "whsec_live",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Firestore.ProjectID != "coffee-data" || cfg.PubSub.ProjectID != "coffee-data" {
		t.Errorf("unexpected overrides %+v %+v", cfg.Server, cfg.Firestore)
	}
	if cfg.PubSub.OrderEventsTopic != "orders" {
		t.Errorf("unexpected topic %s", cfg.PubSub.OrderEventsTopic)
	}
	if cfg.Stripe.APIKey != "sk_live" || cfg.Stripe.WebhookSecret != "whsec_live" || !cfg.Stripe.Enabled() {
		t.Errorf("expected stripe secrets resolved, got %+v", cfg.Stripe)
	}
	if cfg.Shop.Currency != "USD" || cfg.Shop.ShippingFee != 499 || cfg.Shop.PointValue != 10 || cfg.Shop.GuestCartTTL != 72*time.Hour {
		t.Errorf("unexpected shop config %+v", cfg.Shop)
	}
	if cfg.Security.Environment != "prod" || len(cfg.Security.OIDC.Issuers) != 2 {
		t.Errorf("unexpected security config %+v", cfg.Security)
	}
	if cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency ttl %s", cfg.Idempotency.TTL)
	}
}

func TestLoadSecretFailure(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "coffee-dev",
		"API_STRIPE_API_KEY":      "secret://stripe/api",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://stripe/api" || !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("unexpected secret error %v", secretErr)
	}
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"API_SHOP_CURRENCY":    "DONG",
		"API_SHOP_POINT_VALUE": "0",
		"API_STRIPE_API_KEY":   "sk_test",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{
		"Firebase.ProjectID":   true,
		"Firestore.ProjectID":  true,
		"Shop.Currency":        true,
		"Shop.PointValue":      true,
		"Stripe.WebhookSecret": true,
	}
	fields := validationErr.Fields()
	if len(fields) != len(want) {
		t.Fatalf("unexpected fields %v", fields)
	}
	for _, f := range fields {
		if !want[f] {
			t.Fatalf("unexpected field %s in %v", f, fields)
		}
	}
}

func TestLoadReadsDotEnvWithLowestPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local\nexport API_FIREBASE_PROJECT_ID=\"from-file\"\nAPI_SERVER_PORT=7000\nAPI_SHOP_SHIPPING_FEE=15000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "9000"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.ProjectID != "from-file" {
		t.Errorf("expected project from file, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("expected env map to win over file, got %s", cfg.Server.Port)
	}
	if cfg.Shop.ShippingFee != 15000 {
		t.Errorf("expected shipping fee from file, got %d", cfg.Shop.ShippingFee)
	}
}

func TestShippingFor(t *testing.T) {
	shop := ShopConfig{ShippingFee: 30000, FreeShippingFrom: 500000}
	cases := map[int64]int64{0: 0, 100000: 30000, 499999: 30000, 500000: 0}
	for subtotal, want := range cases {
		if got := shop.ShippingFor(subtotal); got != want {
			t.Errorf("ShippingFor(%d) = %d want %d", subtotal, got, want)
		}
	}
	if got := (ShopConfig{ShippingFee: 10}).ShippingFor(1 << 40); got != 10 {
		t.Errorf("expected flat fee without threshold, got %d", got)
	}
}
