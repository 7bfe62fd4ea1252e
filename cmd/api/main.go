package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/commerce"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/resilience"
	"github.com/noah-isme/toko-storefront/internal/security"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/shipping"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
	resilience.RegisterMetrics(prometheus.DefaultRegisterer)
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.HTTPBucketsMS), prometheus.DefaultRegisterer)

	exporter := cfg.TracingExporter
	if !cfg.EnableTracing {
		exporter = "none"
	}
	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName:   obs.DefaultServiceName,
		Endpoint:      cfg.OTLPEndpoint,
		Exporter:      exporter,
		SamplingRatio: cfg.TracingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		logger.Fatal().Err(err).Msg("ping redis")
	}
	cancelPing()

	commerceClient, err := commerce.New(commerce.Config{
		BaseURL:     cfg.CommerceBaseURL,
		Timeout:     cfg.CommerceTimeout,
		MaxAttempts: cfg.CommerceMaxAttempts,
		Token: auth.ServiceToken{
			Secret:   []byte(cfg.CommerceAPISecret),
			Issuer:   cfg.CommerceTokenIssuer,
			Audience: cfg.CommerceTokenAudience,
			Subject:  obs.DefaultServiceName,
		},
		Breaker: resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
			WithTarget("commerce").
			WithLogger(obs.Component(logger, "breaker")),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise commerce client")
	}

	locker := lock.Locker{R: redisClient}
	sessions := session.NewStore(redisClient, "sess:", cfg.SessionTTL)

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Source: commerceClient,
		Cache:  cache.New(redisClient, "catalog:", cfg.ProductCacheTTL),
		Logger: obs.Component(logger, "catalog"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	cartStore := &cart.Store{
		R:       redisClient,
		Locker:  locker,
		LockTTL: cfg.CartLockTTL,
		TTL:     cfg.SessionTTL,
		Logger:  obs.Component(logger, "cart"),
	}
	cartStore.Subscribe(func(ctx context.Context, _ string, snap cart.Snapshot) {
		zerolog.Ctx(ctx).Debug().
			Int("count", snap.Count).
			Int64("merchandise_total", snap.Totals.MerchandiseTotal).
			Msg("cart changed")
	})
	cartHandler := &cart.Handler{Store: cartStore, Products: catalogService}

	shippingSource := &shipping.Source{
		Fetcher: commerceClient,
		Cache:   cache.New(redisClient, "shipping:", cfg.ShippingConfigCacheTTL),
		Fallback: shipping.Config{
			InsideCharge:          cfg.ShippingInsideCharge,
			OutsideCharge:         cfg.ShippingOutsideCharge,
			FreeShippingMinAmount: cfg.ShippingFreeMinAmount,
			CurrencySymbol:        cfg.CurrencySymbol,
		},
		Logger: obs.Component(logger, "shipping"),
	}

	orders := &order.Store{Sessions: sessions}
	orderHandler := &order.Handler{Store: orders, Tracker: commerceClient}

	checkoutHandler := &checkout.Handler{Svc: &checkout.Service{
		Cart: cartStore,
		Coupons: &voucher.Applier{
			Validator: commerceClient,
			Store:     sessions,
			Logger:    obs.Component(logger, "voucher"),
		},
		Shipping:    shippingSource,
		ZoneKeyword: cfg.MetroZoneKeyword,
		Orders:      orders,
		Submitter:   commerceClient,
		Sessions:    sessions,
		Locker:      locker,
		LockTTL:     cfg.CheckoutLockTTL,
		Logger:      obs.Component(logger, "checkout"),
	}}

	couponLimiter, err := ratelimit.NewRedis(redisClient, "ratelimit:", cfg.CouponRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise coupon rate limiter")
	}
	couponLimit := ratelimit.Handler{
		Limiter: couponLimiter,
		Scope:   "coupon",
		OnError: func(err error) { logger.Warn().Err(err).Msg("coupon rate limiter unavailable") },
	}.Middleware
	idem := common.Idem{
		R:     redisClient,
		TTL:   10 * time.Minute,
		Scope: ratelimit.SessionOrIP,
	}

	healthHandler := health.Handler{Probes: []health.Probe{
		health.RedisProbe(redisClient, 300*time.Millisecond),
		health.PingerProbe("commerce", commerceClient, 300*time.Millisecond),
	}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.HSTSEnabled}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", security.DefaultCSRFName, common.IdempotencyHeader, "traceparent"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(session.Middleware{CookieName: cfg.SessionCookieName, TTL: cfg.SessionTTL, Secure: cfg.CookieSecure}.Handler)
		if cfg.CSRFEnabled {
			v.Use(security.CSRF{Secure: cfg.CookieSecure}.Middleware)
		}
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

		v.Get("/products/{id}", catalogHandler.ProductDetail)

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Post("/items", cartHandler.AddItem)
			c.Post("/items/{slot}/increment", cartHandler.Increment)
			c.Post("/items/{slot}/decrement", cartHandler.Decrement)
			c.Delete("/items/{slot}", cartHandler.RemoveItem)
		})

		v.Route("/checkout", func(c chi.Router) {
			c.With(couponLimit).Post("/coupon", checkoutHandler.ApplyCoupon)
			c.Delete("/coupon", checkoutHandler.ClearCoupon)
			c.Get("/quote", checkoutHandler.Quote)
			c.Get("/status", checkoutHandler.Status)
			c.With(idem.Middleware).Post("/orders", checkoutHandler.Submit)
		})

		v.Get("/orders/summary", orderHandler.Summary)
		v.Get("/orders/track/{code}", orderHandler.Track)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
