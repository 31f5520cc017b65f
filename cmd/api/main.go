package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/di"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/handlers"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/payments"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/config"
	pfirestore "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/idempotency"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/jobs"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/observability"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/requestctx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/secrets"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
	firestoreRepo "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

const meterName = "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/cmd/api"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = requestctx.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(cfg, startedAt)
	meter := otel.Meter(meterName)
	eventLogger := services.Logger(observability.NewEventLogger(logger.Named("services")))

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)

	var (
		publisher services.OrderEventPublisher
		topic     *pubsub.Topic
	)
	if name := strings.TrimSpace(cfg.PubSub.OrderEventsTopic); name != "" && cfg.PubSub.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic = pubsubClient.Topic(name)
		topic.EnableMessageOrdering = true
		defer topic.Stop()

		orderEvents, err := jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		publisher = orderEvents
	} else {
		logger.Warn("order events disabled; pubsub topic not configured")
	}

	healthRepo, err := newHealthRepository(firestoreProvider, topic)
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	idempotencyStore, err := idempotency.NewFirestoreStore(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}

	containerOpts := []di.Option{
		di.WithLogger(eventLogger),
		di.WithMeter(meter),
		di.WithBuildInfo(buildInfo),
		di.WithIdempotencyCleaner(idempotencyStore),
	}
	if publisher != nil {
		containerOpts = append(containerOpts, di.WithOrderEvents(publisher))
	}
	if cfg.Stripe.Enabled() {
		paymentsLogger := logger.Named("payments")
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:        cfg.Stripe.APIKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Logger:        payments.StripeLogger(observability.NewEventLogger(paymentsLogger)),
			Clock:         time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe payment provider", zap.Error(err))
		}
		containerOpts = append(containerOpts, di.WithPayments(stripeProvider))
	} else {
		logger.Warn("card payments disabled; stripe api key not configured")
	}

	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()
	svc := container.Services

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	catalogHandlers := handlers.NewCatalogHandlers(authenticator, svc.Catalog, svc.Reviews)
	cartHandlers := handlers.NewCartHandlers(authenticator, svc.Sessions, svc.Cart, cfg.Shop.SessionHeader)
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, svc.Sessions, svc.Checkout, idempotencyMiddleware)
	meHandlers := handlers.NewMeHandlers(authenticator, svc.Customers, svc.Orders, svc.Loyalty, svc.Wishlist)
	adminCatalogHandlers := handlers.NewAdminCatalogHandlers(svc.Catalog)
	adminOperationsHandlers := handlers.NewAdminOperationsHandlers(svc.Orders, svc.Customers, svc.Loyalty, svc.Reviews)
	metaHandlers := handlers.NewMetaHandlers(cfg.Shop, cfg.Stripe.Enabled())
	webhookHandlers := handlers.NewWebhookHandlers(svc.Checkout)
	internalHandlers := handlers.NewInternalHandlers(svc.System)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(),
		observability.RequestLoggerMiddleware(),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithAdminRoutes(adminCatalogHandlers.Routes, adminOperationsHandlers.Routes),
		handlers.WithAdminMiddlewares(authenticator.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff)),
		handlers.WithMetaRoutes(metaHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	}
	if oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg, meter); oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("coffee shop api listening",
			zap.String("environment", buildInfo.Environment),
			zap.String("version", buildInfo.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		Environment: environment,
		StartedAt:   started,
	}
}

// newHealthRepository probes Firestore (critical) and the order events topic (degrading only).
func newHealthRepository(provider *pfirestore.Provider, topic *pubsub.Topic) (repositories.HealthRepository, error) {
	checks := []repositories.DependencyCheck{{
		Name:     "firestore",
		Critical: true,
		Timeout:  1500 * time.Millisecond,
		Check:    provider.Ping,
	}}
	if topic != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				exists, err := topic.Exists(ctx)
				if err != nil {
					if st, ok := status.FromError(err); ok && st.Code() == codes.PermissionDenied {
						// Publishers commonly lack pubsub.topics.get.
						return nil
					}
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s not found", topic.ID())
				}
				return nil
			},
		})
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config, meter metric.Meter) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL)
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(logger), auth.WithOIDCMeter(meter))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(audience, cfg.Security.OIDC.Issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}

	envLabel := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}
