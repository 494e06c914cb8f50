package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/upjv/prospection-ui/config"
	"github.com/upjv/prospection-ui/internal/bootstrap"
	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	logger := bootstrap.InitLogger(os.Stdout, slog.LevelInfo)
	err := run(ctx, logger)
	stop()
	if err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.InitLogger(os.Stdout, cfg.Observability.Logging.SlogLevel())
	logStartupInfo(ctx, logger, &cfg)

	sink, closeMetrics := bootstrap.BuildMetricsSink(cfg.Observability.Metrics, logger)
	defer func() {
		if cerr := closeMetrics(); cerr != nil {
			logger.WarnContext(ctx, "close metrics failed", "error", cerr)
		}
	}()

	storage, err := bootstrap.BuildStorage(bootstrap.StorageOptions{
		Storage: cfg.Storage,
		Redis:   cfg.Redis,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("open session storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.WarnContext(ctx, "close session storage failed", "error", cerr)
		}
	}()

	auth, err := bootstrap.BuildAuth(bootstrap.AuthOptions{
		Auth:    cfg.Auth,
		Storage: storage.Store,
		Metrics: sink,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer auth.Controller.Close()

	unsubscribe := auth.Controller.Subscribe(logTransitions(logger))
	defer unsubscribe()

	server, err := bootstrap.NewHTTPServer(bootstrap.HTTPServerConfig{
		HTTP:   cfg.HTTP,
		Auth:   auth.Controller,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bootstrap.ServeHTTP(gctx, server, logger)
	})
	g.Go(func() error {
		// The gate serves the loading placeholder until this settles.
		if ierr := auth.Controller.Initialize(gctx); ierr != nil && !errors.Is(ierr, context.Canceled) {
			logger.WarnContext(gctx, "session initialization failed", "error", ierr)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return bootstrap.ShutdownHTTPServer(server, cfg.HTTP.ShutdownTimeout, logger)
	})
	return g.Wait()
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting prospection front-end",
		"addr", cfg.HTTP.Addr,
		"auth_mode", cfg.Auth.Mode,
		"api_base_url", cfg.Auth.API.BaseURL,
		"storage", cfg.Storage.Backend,
		"dev", cfg.IsDev,
	)
}

// logTransitions logs authentication changes, not every loading toggle.
func logTransitions(logger *slog.Logger) func(domainauth.SessionState) {
	var (
		mu               sync.Mutex
		wasAuthenticated bool
	)
	return func(s domainauth.SessionState) {
		mu.Lock()
		defer mu.Unlock()
		if s.IsAuthenticated == wasAuthenticated {
			return
		}
		wasAuthenticated = s.IsAuthenticated
		if s.IsAuthenticated {
			logger.Info("session authenticated", "email", s.Identity.Email)
			return
		}
		logger.Info("session ended", "last_error", s.LastError)
	}
}
