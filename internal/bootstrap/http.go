package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/upjv/prospection-ui/config"
	httpx "github.com/upjv/prospection-ui/internal/http"
)

// HTTPServerConfig contains configuration for the front-end HTTP server.
type HTTPServerConfig struct {
	HTTP   config.HTTPConfig
	Auth   httpx.SessionController
	Logger *slog.Logger
}

// NewHTTPServer builds the server without starting it.
func NewHTTPServer(cfg HTTPServerConfig) (*http.Server, error) {
	if cfg.Auth == nil {
		return nil, errors.New("session controller is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler, err := httpx.NewRouter(httpx.RouterServices{
		Auth:           cfg.Auth,
		PendingRefresh: cfg.HTTP.PendingRefresh,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}

// ServeHTTP listens and serves until the server is shut down. A clean
// shutdown returns nil.
func ServeHTTP(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", server.Addr, err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "starting HTTP server", "addr", ln.Addr().String())
	}
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// ShutdownHTTPServer gracefully stops the server within timeout.
func ShutdownHTTPServer(server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
