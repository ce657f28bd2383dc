package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/david/feedback-triage/internal/ai"
	"github.com/david/feedback-triage/internal/api"
	"github.com/david/feedback-triage/internal/auth"
	"github.com/david/feedback-triage/internal/cache"
	"github.com/david/feedback-triage/internal/config"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/logger"
	"github.com/david/feedback-triage/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogMode, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	var c cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable, using in-process cache", "error", err)
		} else {
			defer rc.Close()
			c = rc
		}
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, log)
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Deps{
		Config: cfg,
		Log:    log,
		Store:  db.NewStore(pool),
		Tokens: tokens,
		AI:     ai.NewOllamaClient(cfg.OllamaHost, cfg.OllamaModel, cfg.AITimeout),
		Cache:  c,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Port)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down")
		return srv.Shutdown(context.Background())
	}
}
