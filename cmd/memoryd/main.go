package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/pairs-go/internal/adapters/catalog"
	"github.com/randomtoy/pairs-go/internal/adapters/clock"
	httpadapter "github.com/randomtoy/pairs-go/internal/adapters/http"
	"github.com/randomtoy/pairs-go/internal/adapters/storage/file"
	"github.com/randomtoy/pairs-go/internal/adapters/storage/memory"
	"github.com/randomtoy/pairs-go/internal/adapters/storage/natskv"
	"github.com/randomtoy/pairs-go/internal/app"
	"github.com/randomtoy/pairs-go/internal/config"
	"github.com/randomtoy/pairs-go/internal/ports"
)

// stdRNG delegates to math/rand/v2 (auto-seeded).
type stdRNG struct{}

func (stdRNG) Intn(n int) int { return rand.IntN(n) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	cat, err := catalog.NewEmbedded()
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	durable, closeDurable, err := openDurable(cfg, logger)
	if err != nil {
		logger.Error("failed to open durable store", "backend", cfg.DurableBackend, "error", err)
		os.Exit(1)
	}
	defer closeDurable()

	sessions := app.NewSessions(app.SessionDeps[*httpadapter.BoardView]{
		Durable:   durable,
		Scheduler: clock.Real{},
		Catalog:   cat,
		RNG:       stdRNG{},
		Logger:    logger,
		NewStore:  func() ports.SessionStore { return memory.NewSessionStore() },
		NewView:   httpadapter.NewBoardView,
	}, app.EngineConfig{
		MatchDelay:    cfg.MatchDelay,
		MismatchDelay: cfg.MismatchDelay,
		TickInterval:  time.Second,
	}, cfg.SessionTTL)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.LoggingMiddleware(logger))

	handler := httpadapter.NewHandler(sessions, logger)
	handler.Register(e)

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweep(ctx, sessions, cfg.SessionTTL)

	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "durable_backend", cfg.DurableBackend)
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	sessions.CloseAll(shutdownCtx)
}

// sweep expires idle sessions until ctx is done.
func sweep(ctx context.Context, sessions *httpadapter.Sessions, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sessions.Sweep(ctx)
		}
	}
}

func openDurable(cfg config.Config, logger *slog.Logger) (ports.DurableStore, func(), error) {
	switch cfg.DurableBackend {
	case config.BackendNATS:
		nc, err := natskv.Connect(cfg.NATSURL, "memoryd")
		if err != nil {
			return nil, nil, fmt.Errorf("connect %s: %w", cfg.NATSURL, err)
		}
		store, err := natskv.New(nc, cfg.NATSBucket, logger)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("stop bucket watch", "error", err)
			}
			if err := nc.Drain(); err != nil {
				logger.Warn("drain nats connection", "error", err)
			}
		}, nil
	default:
		store, err := file.Open(cfg.DurablePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}
