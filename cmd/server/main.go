package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/motorworks/internal"
	"github.com/dukerupert/motorworks/internal/availability"
	"github.com/dukerupert/motorworks/internal/billing"
	"github.com/dukerupert/motorworks/internal/cache"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/handler/api"
	"github.com/dukerupert/motorworks/internal/handler/webhook"
	"github.com/dukerupert/motorworks/internal/jobs"
	"github.com/dukerupert/motorworks/internal/memstore"
	"github.com/dukerupert/motorworks/internal/middleware"
	"github.com/dukerupert/motorworks/internal/notify"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/dukerupert/motorworks/internal/router"
	"github.com/dukerupert/motorworks/internal/routes"
	"github.com/dukerupert/motorworks/internal/service"
	"github.com/dukerupert/motorworks/internal/shipping"
	"github.com/dukerupert/motorworks/internal/tax"
	"github.com/dukerupert/motorworks/internal/telemetry"
	"github.com/dukerupert/motorworks/internal/worker"
)

const metricsNamespace = "motorworks"

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	telemetry.InitWorkflowMetrics(metricsNamespace, registry)
	httpMetrics := middleware.NewMetrics(metricsNamespace, registry)

	// Storage
	store, ready, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Cart cache
	cartCache, closeCache, err := openCache(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	// Domain events
	events := openPublishers(cfg, logger)
	defer func() {
		if err := events.Close(); err != nil {
			logger.Warn("closing event publishers", "error", err)
		}
	}()

	// Payment providers
	providers, err := openProviders(cfg, logger)
	if err != nil {
		return err
	}

	// Calculators
	taxCalc, err := tax.NewStateRateCalculator(cfg.Business.DefaultTaxRate, nil)
	if err != nil {
		return fmt.Errorf("tax calculator: %w", err)
	}
	shipCalc := shipping.NewPolicyCalculator(shipping.DefaultRates, shipping.DefaultFreeShipping)

	// Initialize services
	opts := service.Options{
		Logger:          logger,
		Location:        cfg.Business.Timezone,
		Events:          events,
		Cache:           cartCache,
		Currency:        cfg.Business.Currency,
		ProviderTimeout: cfg.Payments.ProviderTimeout,
	}
	engine := availability.NewEngine(cfg.Business.Timezone)
	cartService := service.NewCartService(store, opts)
	orderService := service.NewOrderService(store, repository.NewAddressBook(store), taxCalc, shipCalc, opts)
	bookingService := service.NewBookingService(store, engine, opts)
	paymentService := service.NewPaymentService(store, providers, opts)

	// Background jobs
	scheduler := worker.NewScheduler(worker.Config{
		WorkerID: "server",
		Interval: cfg.CartSweepInterval,
	}, logger)
	scheduler.Register(jobs.NewCartSweeper(store, jobs.DefaultSweepBatchSize, nil, logger), cfg.CartSweepInterval)
	schedulerDone := make(chan error, 1)
	go func() { schedulerDone <- scheduler.Start(ctx) }()

	// Rate limiting for provider-facing routes
	apiLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer apiLimiter.Stop()
	paymentLimiter := middleware.NewRateLimiter(middleware.StrictRateLimiterConfig())
	defer paymentLimiter.Stop()

	// Router with global middleware. Identity and request ids come first so
	// every later layer can log them.
	r := router.New(
		middleware.RequestID,
		middleware.RealIP,
		middleware.WithActor,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
		router.Recovery(),
		telemetry.SentryMiddleware(func(ctx context.Context) *telemetry.UserInfo {
			actor := domain.ActorFromContext(ctx)
			if actor == nil {
				return nil
			}
			return &telemetry.UserInfo{ID: actor.UserID.String(), Role: actor.Role}
		}),
		httpMetrics.Middleware,
		apiLimiter.Middleware,
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
		middleware.Timeout(),
		middleware.MaxBodySize(),
	)

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		CartHandler:      api.NewCartHandler(cartService),
		OrderHandler:     api.NewOrderHandler(orderService, cartService),
		BookingHandler:   api.NewBookingHandler(bookingService),
		PaymentHandler:   api.NewPaymentHandler(paymentService, orderService, bookingService),
		PaymentRateLimit: paymentLimiter.Middleware,
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		PaymentHandler: webhook.NewPaymentHandler(paymentService),
	})
	routes.RegisterSystemRoutes(r, routes.SystemDeps{
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Ready:   ready,
	})
	logger.Debug("Routes registered", "count", len(r.Routes()), "routes", r.Routes())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.Chain(r, router.CORS(cfg.CORSOrigins)), // preflights match no route
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", srv.Addr, "env", cfg.Env, "providers", providers.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	stop()
	if err := <-schedulerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped with error", "error", err)
	}
	logger.Info("Server stopped")
	return nil
}

// openStore connects to PostgreSQL and migrates it, or falls back to the
// in-memory store when no DATABASE_URL is configured.
func openStore(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (repository.Store, func(*http.Request) error, func(), error) {
	if cfg.DatabaseUrl == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		return memstore.New(), nil, func() {}, nil
	}

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	version, err := internal.RunMigrations(ctx, sqlDB, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database schema ready", "version", version)

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	ready := func(r *http.Request) error {
		return pool.Ping(r.Context())
	}
	return repository.NewPostgresStore(pool), ready, pool.Close, nil
}

func openCache(cfg *internal.Config, logger *slog.Logger) (cache.Cache, func(), error) {
	if cfg.Redis.URL == "" {
		return cache.Noop{}, func() {}, nil
	}
	client, err := cache.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	logger.Info("Cart cache enabled", "backend", "redis", "ttl", cfg.Redis.CacheTTL)
	return cache.NewRedisCache(client, cfg.Redis.CacheTTL, metricsNamespace), func() { _ = client.Close() }, nil
}

func openPublishers(cfg *internal.Config, logger *slog.Logger) notify.Publisher {
	var pubs notify.MultiPublisher
	if len(cfg.Events.KafkaBrokers) > 0 {
		pubs = append(pubs, notify.NewKafkaPublisher(cfg.Events.KafkaTopic, cfg.Events.KafkaBrokers...))
		logger.Info("Kafka event publisher enabled", "topic", cfg.Events.KafkaTopic)
	}
	if cfg.Events.NATSURL != "" {
		p, err := notify.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.NATSPrefix)
		if err != nil {
			// Events are best-effort; a broker outage must not block startup.
			logger.Error("NATS publisher unavailable", "error", err)
		} else {
			pubs = append(pubs, p)
			logger.Info("NATS event publisher enabled", "prefix", cfg.Events.NATSPrefix)
		}
	}
	if len(pubs) == 0 {
		return notify.NewLogPublisher(logger)
	}
	return pubs
}

func openProviders(cfg *internal.Config, logger *slog.Logger) (*billing.Registry, error) {
	registry := billing.NewRegistry()

	if cfg.Payments.Mock {
		logger.Warn("PAYMENT_GATEWAY_MOCK enabled; no real charges will be made")
		registry.Register(billing.NewMockProvider(billing.StripeName, cfg.Stripe.WebhookSecret))
		registry.Register(billing.NewMockProvider(billing.MercadoPagoName, cfg.MP.WebhookSecret))
		return registry, nil
	}

	if cfg.Stripe.SecretKey != "" {
		stripeConfig := billing.StripeConfig{
			APIKey:        cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Timeout:       cfg.Payments.ProviderTimeout,
		}
		p, err := billing.NewStripeProvider(stripeConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
		registry.Register(p)
		logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())
	}

	if cfg.MP.AccessToken != "" {
		p, err := billing.NewMercadoPagoProvider(billing.MercadoPagoConfig{
			AccessToken:   cfg.MP.AccessToken,
			WebhookSecret: cfg.MP.WebhookSecret,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Mercado Pago provider: %w", err)
		}
		registry.Register(p)
		logger.Info("Mercado Pago billing provider initialized")
	}

	return registry, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
