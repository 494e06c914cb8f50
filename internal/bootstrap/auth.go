package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/upjv/prospection-ui/config"
	"github.com/upjv/prospection-ui/internal/adapters/apiclient"
	"github.com/upjv/prospection-ui/internal/adapters/devauth"
	"github.com/upjv/prospection-ui/internal/observability/statsd"
	"github.com/upjv/prospection-ui/internal/ports"
	"github.com/upjv/prospection-ui/internal/service"
)

// AuthOptions contains what the session core needs.
type AuthOptions struct {
	Auth    config.AuthConfig
	Storage ports.KeyValueStore
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// AuthContainer holds the wired session core.
type AuthContainer struct {
	API        ports.APIClient
	Store      *service.SessionStore
	Controller *service.AuthController
	// BaseURL is the API root, empty in mock mode.
	BaseURL string
}

// BuildAuth wires the session store, the API client selected by Auth.Mode,
// and the controller. The API client reads its bearer token from the store.
func BuildAuth(opts AuthOptions) (*AuthContainer, error) {
	if opts.Storage == nil {
		return nil, errors.New("session storage is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := service.NewSessionStore(service.SessionStoreOptions{
		Storage: opts.Storage,
		Logger:  logger,
	})

	api, baseURL, err := buildAPIClient(opts.Auth, store, logger)
	if err != nil {
		return nil, err
	}

	controller, err := service.NewAuthController(service.AuthControllerOptions{
		API:     api,
		Store:   store,
		Config:  opts.Auth.Session,
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create auth controller: %w", err)
	}

	return &AuthContainer{API: api, Store: store, Controller: controller, BaseURL: baseURL}, nil
}

//nolint:ireturn // the mode decides the concrete client.
func buildAPIClient(cfg config.AuthConfig, tokens ports.TokenSource, logger *slog.Logger) (ports.APIClient, string, error) {
	switch cfg.Mode {
	case config.AuthModeMock:
		logger.Warn("auth mode is mock; any password is accepted", "email", cfg.DevAuth.Email)
		client, err := devauth.New(devauth.Config{
			UserID:        cfg.DevAuth.UserID,
			Email:         cfg.DevAuth.Email,
			GivenName:     cfg.DevAuth.GivenName,
			FamilyName:    cfg.DevAuth.FamilyName,
			Roles:         cfg.DevAuth.Roles,
			InterfaceType: cfg.DevAuth.InterfaceType,
			Tokens:        tokens,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create dev auth client: %w", err)
		}
		return client, "", nil

	default:
		client, err := apiclient.New(apiclient.Config{
			BaseURL:          cfg.API.BaseURL,
			Timeout:          cfg.API.Timeout,
			UserAgent:        cfg.API.UserAgent,
			ErrorMessageExpr: cfg.API.ErrorMessageExpr,
			Tokens:           tokens,
			Logger:           logger,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create api client: %w", err)
		}
		return client, client.BaseURL(), nil
	}
}

// BuildMetricsSink returns a StatsD sink, or nil when metrics are disabled or
// the sink cannot be created.
//
//nolint:ireturn // nil interface means "no metrics" to every consumer.
func BuildMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (statsd.Sink, func() error) {
	noop := func() error { return nil }
	if !cfg.IsEnabled() {
		return nil, noop
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil, noop
	}
	return client, client.Close
}
