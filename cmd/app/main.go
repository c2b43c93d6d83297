// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"origami-connector/internal/config"
	"origami-connector/internal/domain/ports/adapter"
	"origami-connector/internal/domain/ports/repository"
	"origami-connector/internal/infra/adapters/callback"
	"origami-connector/internal/infra/adapters/origami"
	pg "origami-connector/internal/infra/db/postgres"
	"origami-connector/internal/infra/events"
	httpapi "origami-connector/internal/infra/http"
	"origami-connector/internal/infra/kvstore"
	"origami-connector/internal/infra/logging"
	"origami-connector/internal/infra/metrics"
	red "origami-connector/internal/infra/redis"
	"origami-connector/internal/infra/sched"
	"origami-connector/internal/infra/security"
	"origami-connector/internal/infra/telemetry"
	"origami-connector/internal/infra/worker"
	"origami-connector/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, memory store allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("connector stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	// ---- Redis (store backend and/or rate limiter) ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
	}

	// ---- KV store ----
	var (
		store  repository.ExpiringKVStore
		purger sched.Purger
	)
	switch cfg.Store.Backend {
	case "redis":
		store = red.NewKVStore(redisClient)
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		pgStore := pg.NewKVStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		store, purger = pgStore, pgStore
	case "memory":
		mem := kvstore.NewMemory()
		store, purger = mem, mem
		logger.Warn().Msg("memory store in use: state is lost on restart")
	}
	logger.Info().Str("backend", cfg.Store.Backend).Msg("kv store ready")

	authRepo := kvstore.NewAuthorizationRepo(store)
	credRepo := kvstore.NewCredentialRepo(store)
	idemRepo := kvstore.NewIdempotencyRepo(store)

	// ---- Outbound adapters ----
	transport := otelhttp.NewTransport(http.DefaultTransport)
	provider := origami.NewClient(cfg.Origami, transport, logger)
	dispatcher := callback.NewHTTPDispatcher(cfg.Connector.CallbackTimeout, transport, logger)

	var publisher adapter.EventPublisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("status events enabled")
	}
	defer publisher.Close()

	// ---- Workers ----
	pool := worker.NewPool(cfg.Connector.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()
	scheduler := sched.NewDelayedScheduler(pool, logger)
	defer scheduler.Stop()

	if purger != nil {
		sweeper := sched.NewIdempotencySweeper(cfg.Idempotency.SweepInterval, repository.BucketIdempotency, purger, logger)
		go func() { _ = sweeper.Run(ctx) }()
	}

	// ---- Use cases ----
	tokenUC := usecase.NewTokenUseCase(credRepo, provider, cfg.Origami.Key, cfg.Origami.Token, logger)
	eligUC := usecase.NewEligibilityUseCase(tokenUC, provider, cfg.Runtime.Dev, logger)
	authUC := usecase.NewAuthorizationUseCase(authRepo, scheduler, dispatcher, publisher, usecase.AuthorizationOptions{
		AppName:         cfg.Connector.AppName(),
		Acquirer:        cfg.Connector.Acquirer,
		TestSuite:       cfg.Connector.TestSuite,
		AsyncDelay:      cfg.Connector.AsyncDelay,
		EligibilityPath: cfg.Connector.EligibilityPath,
		ConfirmPath:     cfg.Connector.ConfirmPath,
	}, cfg.Runtime.Dev, logger)
	confirmUC := usecase.NewConfirmationUseCase(authRepo, publisher, logger)
	idemUC := usecase.NewIdempotencyUseCase(idemRepo, cfg.Idempotency.TTL, logger)

	if cfg.Security.ConfirmSecret != "" {
		tokens, err := security.NewConfirmTokenManager(cfg.Security.ConfirmSecret, cfg.Security.ConfirmTokenTTL)
		if err != nil {
			return err
		}
		authUC.SetConfirmTokens(tokens)
		confirmUC.SetConfirmTokens(tokens)
		logger.Info().Msg("confirm tokens required")
	}

	// ---- HTTP ----
	var limiter httpapi.RateLimiter
	if redisClient != nil && cfg.Eligibility.RateLimit > 0 {
		limiter = red.NewRateLimiter(redisClient)
	}
	srv := httpapi.NewServer(authUC, confirmUC, eligUC, idemUC, limiter, httpapi.Options{
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		EligibilityPath: cfg.Connector.EligibilityPath,
		ConfirmPath:     cfg.Connector.ConfirmPath,
		RateLimit:       cfg.Eligibility.RateLimit,
		RateWindow:      cfg.Eligibility.RateWindow,
		ServiceName:     cfg.Telemetry.ServiceName,
		Dev:             cfg.Runtime.Dev,
	}, logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()
	logger.Info().
		Str("version", version).
		Str("origami_env", cfg.Origami.Environment).
		Bool("test_suite", cfg.Connector.TestSuite).
		Msg("origami connector started")

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
