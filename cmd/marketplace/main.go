// Package main starts the HTTP server of the marketplace service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RubenMansilla/Nebripop-sub000/internal/config"
	"github.com/RubenMansilla/Nebripop-sub000/internal/engine"
	"github.com/RubenMansilla/Nebripop-sub000/internal/handler"
	"github.com/RubenMansilla/Nebripop-sub000/internal/middleware"
	"github.com/RubenMansilla/Nebripop-sub000/internal/notify"
	"github.com/RubenMansilla/Nebripop-sub000/internal/repository"
	"github.com/RubenMansilla/Nebripop-sub000/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	notifier := notify.NewClient(cfg.NotifierAddress)

	eng := engine.New(repo, notifier, logger, cfg.SweepInterval)

	svc := service.NewService(repo, eng)

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Background auction lifecycle passes.
	g.Go(func() error {
		eng.Run(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting marketplace server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown on context cancellation (signal or error in another goroutine).
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
