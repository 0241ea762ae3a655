package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	cartapp "github.com/marketfront/cart-service/internal/cart/application"
	carthttp "github.com/marketfront/cart-service/internal/cart/infrastructure/http"
	cartkafka "github.com/marketfront/cart-service/internal/cart/infrastructure/kafka"
	cartpg "github.com/marketfront/cart-service/internal/cart/infrastructure/postgres"
	catalogapp "github.com/marketfront/cart-service/internal/catalog/application"
	catalogpg "github.com/marketfront/cart-service/internal/catalog/infrastructure/postgres"
	catalogredis "github.com/marketfront/cart-service/internal/catalog/infrastructure/redis"
	"github.com/marketfront/cart-service/internal/config"
	"github.com/marketfront/cart-service/pkg/idempotency"
	"github.com/marketfront/cart-service/pkg/logging"
	"github.com/marketfront/cart-service/pkg/outbox"
	"github.com/marketfront/cart-service/pkg/shutdown"
	"github.com/marketfront/cart-service/pkg/tracing"
)

func main() {
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	tp, err := tracing.Init(ctx, "cart-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	if cfg.MigrateOnStart {
		if err := cartpg.Migrate(cfg.PostgresURL); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()

	writer := cartkafka.NewWriter(cfg.KafkaBrokers)
	defer func() { _ = writer.Close() }()

	repo := cartpg.NewRepository(log, pool)
	store := cartpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, store, dispatch, "cart-service-relay")

	catalog := catalogapp.NewService(log, catalogpg.NewReader(pool), catalogredis.NewCache(rdb))
	svc := cartapp.NewService(repo, catalog)
	handler := carthttp.NewHandler(log, svc)

	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	r := chi.NewRouter()
	r.Use(idempotency.Middleware(idem, log))
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("cart-service shutdown complete")
}
