package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/payments"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/config"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Sessions  services.SessionService
	Catalog   services.CatalogService
	Cart      services.CartService
	Checkout  services.CheckoutService
	Orders    services.OrderService
	Loyalty   services.LoyaltyService
	Customers services.CustomerService
	Reviews   services.ReviewService
	Wishlist  services.WishlistService
	System    services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option supplies collaborators that live outside the repository registry.
type Option func(*containerOptions)

type containerOptions struct {
	payments    payments.Provider
	events      services.OrderEventPublisher
	idempotency services.IdempotencyCleaner
	meter       metric.Meter
	logger      services.Logger
	build       services.BuildInfo
	clock       func() time.Time
}

// WithPayments enables card checkout and refunds.
func WithPayments(provider payments.Provider) Option {
	return func(o *containerOptions) { o.payments = provider }
}

// WithOrderEvents publishes order lifecycle events.
func WithOrderEvents(publisher services.OrderEventPublisher) Option {
	return func(o *containerOptions) { o.events = publisher }
}

// WithIdempotencyCleaner lets maintenance purge expired idempotency keys.
func WithIdempotencyCleaner(cleaner services.IdempotencyCleaner) Option {
	return func(o *containerOptions) { o.idempotency = cleaner }
}

// WithMeter records checkout metrics.
func WithMeter(meter metric.Meter) Option {
	return func(o *containerOptions) { o.meter = meter }
}

// WithLogger routes service events to logger.
func WithLogger(logger services.Logger) Option {
	return func(o *containerOptions) { o.logger = logger }
}

// WithBuildInfo reports the running build on health endpoints.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *containerOptions) { o.build = info }
}

// WithClock overrides time.Now for every service.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides the Firestore
// registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.build.StartedAt.IsZero() {
		options.build.StartedAt = options.clock().UTC()
	}
	if options.build.Environment == "" {
		options.build.Environment = cfg.Security.Environment
	}

	svc, err := buildServices(ctx, reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, opts containerOptions) (Services, error) {
	var svc Services
	shop := cfg.Shop

	sessionSvc, err := services.NewSessionService(services.SessionServiceDeps{})
	if err != nil {
		return Services{}, fmt.Errorf("build session service: %w", err)
	}
	svc.Sessions = sessionSvc

	products := reg.Products()

	if categories := reg.Categories(); products != nil && categories != nil {
		catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
			Products:        products,
			Categories:      categories,
			Tx:              reg,
			Clock:           opts.clock,
			Logger:          opts.logger,
			DefaultCurrency: shop.Currency,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build catalog service: %w", err)
		}
		svc.Catalog = catalogSvc
	}

	carts := reg.Carts()
	if carts != nil && products != nil {
		cartSvc, err := services.NewCartService(services.CartServiceDeps{
			Carts:           carts,
			Products:        products,
			Tx:              reg,
			Shipping:        shop.ShippingFor,
			DefaultCurrency: shop.Currency,
			Clock:           opts.clock,
			Logger:          opts.logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build cart service: %w", err)
		}
		svc.Cart = cartSvc
	}

	customers := reg.Customers()
	if customers != nil {
		customerSvc, err := services.NewCustomerService(services.CustomerServiceDeps{
			Customers: customers,
			Clock:     opts.clock,
			Logger:    opts.logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build customer service: %w", err)
		}
		svc.Customers = customerSvc

		loyaltySvc, err := services.NewLoyaltyService(services.LoyaltyServiceDeps{
			Customers: customers,
			Tx:        reg,
			Clock:     opts.clock,
			Logger:    opts.logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build loyalty service: %w", err)
		}
		svc.Loyalty = loyaltySvc
	}

	orders := reg.Orders()
	if orders != nil && carts != nil && products != nil && customers != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Carts:           carts,
			Products:        products,
			Orders:          orders,
			Customers:       customers,
			Tx:              reg,
			Payments:        opts.payments,
			Events:          opts.events,
			Shipping:        shop.ShippingFor,
			PointValue:      shop.PointValue,
			DefaultCurrency: shop.Currency,
			SuccessURL:      cfg.Stripe.SuccessURL,
			CancelURL:       cfg.Stripe.CancelURL,
			Meter:           opts.meter,
			Clock:           opts.clock,
			Logger:          opts.logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	if orders != nil && products != nil && customers != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:    orders,
			Products:  products,
			Customers: customers,
			Tx:        reg,
			Payments:  opts.payments,
			Events:    opts.events,
			Clock:     opts.clock,
			Logger:    opts.logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if reviews := reg.Reviews(); reviews != nil && products != nil {
		reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
			Reviews:  reviews,
			Products: products,
			Tx:       reg,
			Clock:    opts.clock,
			Logger:   opts.logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build review service: %w", err)
		}
		svc.Reviews = reviewSvc
	}

	if wishlists := reg.Wishlists(); wishlists != nil && products != nil {
		wishlistSvc, err := services.NewWishlistService(services.WishlistServiceDeps{
			Wishlists: wishlists,
			Products:  products,
			Clock:     opts.clock,
			Logger:    opts.logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build wishlist service: %w", err)
		}
		svc.Wishlist = wishlistSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Carts:            carts,
			Idempotency:      opts.idempotency,
			GuestCartTTL:     shop.GuestCartTTL,
			Clock:            opts.clock,
			Build:            opts.build,
			Logger:           opts.logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
