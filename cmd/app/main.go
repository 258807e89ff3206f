package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/config"
	payAdapters "github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/adapters/payment"
	pg "github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/db/postgres"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/logging"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/metrics"
	red "github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/redis"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/sched"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/infra/web"
	"github.com/Stefan-migo/OpticSystemAI-sub009/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	dedup := red.NewWebhookDedup(redisClient, cfg.Redis.DedupTTL)

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)

	// ---- Gateways + use cases ----
	gateways := payAdapters.NewFactory(cfg.Payment, logger)
	paymentUC := usecase.NewPaymentUseCase(payRepo, gateways, logger)

	// ---- Reconciler ----
	reconciler := sched.NewPaymentReconciler(payRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.HMACSecret, cfg.Auth.TTL)
	server := web.NewServer(paymentUC, gateways, dedup, auth, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Routes(),
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
