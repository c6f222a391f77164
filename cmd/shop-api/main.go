package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zishan044/ecommerce-app/internal/auth"
	cartapp "github.com/zishan044/ecommerce-app/internal/cart/application"
	carthttp "github.com/zishan044/ecommerce-app/internal/cart/infrastructure/http"
	cartpg "github.com/zishan044/ecommerce-app/internal/cart/infrastructure/postgres"
	catalogapp "github.com/zishan044/ecommerce-app/internal/catalog/application"
	cataloghttp "github.com/zishan044/ecommerce-app/internal/catalog/infrastructure/http"
	catalogpg "github.com/zishan044/ecommerce-app/internal/catalog/infrastructure/postgres"
	catalogredis "github.com/zishan044/ecommerce-app/internal/catalog/infrastructure/redis"
	"github.com/zishan044/ecommerce-app/internal/config"
	orderapp "github.com/zishan044/ecommerce-app/internal/order/application"
	orderhttp "github.com/zishan044/ecommerce-app/internal/order/infrastructure/http"
	orderkafka "github.com/zishan044/ecommerce-app/internal/order/infrastructure/kafka"
	orderpg "github.com/zishan044/ecommerce-app/internal/order/infrastructure/postgres"
	paymentapp "github.com/zishan044/ecommerce-app/internal/payment/application"
	"github.com/zishan044/ecommerce-app/internal/payment/infrastructure/stripe"
	"github.com/zishan044/ecommerce-app/internal/platform/postgres"
	userapp "github.com/zishan044/ecommerce-app/internal/user/application"
	userhttp "github.com/zishan044/ecommerce-app/internal/user/infrastructure/http"
	userpg "github.com/zishan044/ecommerce-app/internal/user/infrastructure/postgres"
	"github.com/zishan044/ecommerce-app/pkg/httpx"
	"github.com/zishan044/ecommerce-app/pkg/idempotency"
	"github.com/zishan044/ecommerce-app/pkg/logging"
	"github.com/zishan044/ecommerce-app/pkg/metrics"
	"github.com/zishan044/ecommerce-app/pkg/outbox"
	"github.com/zishan044/ecommerce-app/pkg/shutdown"
	"github.com/zishan044/ecommerce-app/pkg/tracing"
)

const serviceName = "shop-api"

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, serviceName, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(log, cfg.PGURL); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	// Postgres
	pool, err := postgres.NewPool(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Cache and idempotency degrade to Postgres, so keep serving.
		log.Warn("redis unreachable", "addr", cfg.RedisAddr, "err", err)
	}

	m := metrics.New("api")
	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authn := auth.Middleware(log, tokens)

	// Payment gateway
	provider := stripe.NewProvider(log, stripe.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.StripeSuccessURL,
		CancelURL:     cfg.StripeCancelURL,
	})
	gateway := paymentapp.NewGateway(log, provider, cfg.GatewayTimeout,
		paymentapp.WithBreakerStateHook(m.BreakerChanged))

	// Services
	users := userapp.NewService(log, userpg.NewRepository(log, pool), tokens)
	catalog := catalogapp.NewService(log, catalogpg.NewRepository(log, pool), catalogredis.NewCache(rdb, cfg.CacheTTL))
	carts := cartapp.NewService(log, cartpg.NewStore(log, pool))
	orders := orderapp.NewService(log, orderpg.NewRepository(log, pool), gateway,
		idempotency.NewStore(rdb, cfg.IdempotencyTTL), cfg.Currency, orderapp.WithRecorder(m))

	userH := userhttp.NewHandler(log, users, authn)
	orderH := orderhttp.NewHandler(log, orders, authn)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(log))
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		pingCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", m.Handler())

	r.Mount("/auth", userH.AuthRoutes())
	r.Mount("/users", userH.Routes())
	r.Mount("/products", cataloghttp.NewHandler(log, catalog, authn).Routes())
	r.Mount("/cart", carthttp.NewHandler(log, carts, authn).Routes())
	r.Mount("/orders", orderH.Routes())
	r.Mount("/payments", orderH.PaymentRoutes())

	// Outbox relay
	if len(cfg.KafkaBrokers) > 0 {
		writer := orderkafka.NewWriter(cfg.KafkaBrokers)
		defer func() { _ = writer.Close() }()

		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, serviceName+"-relay")
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	} else {
		log.Warn("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, "http.server"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("shop-api shutdown complete")
}
