package config

import (
	"path/filepath"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, AuthModeAPI, cfg.Auth.Mode)
	assert.Equal(t, "http://localhost:8000/api", cfg.Auth.API.BaseURL)
	assert.Equal(t, DefaultErrorMessageExpr, cfg.Auth.API.ErrorMessageExpr)
	assert.Equal(t, DefaultSessionConfig(), cfg.Auth.Session)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, "session.json", filepath.Base(cfg.Storage.FilePath))
	assert.Equal(t, "127.0.0.1:3000", cfg.HTTP.Addr)
	assert.False(t, cfg.Observability.Metrics.IsEnabled())
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "MOCK")
	t.Setenv("API_BASE_URL", "https://crm.example.org/api/")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("SESSION_REVALIDATE_INTERVAL", "10m")
	t.Setenv("SESSION_FAILURE_TOLERANCE", "10")
	t.Setenv("SESSION_RETRY_ATTEMPTS", "0")
	t.Setenv("DEV_AUTH_EMAIL", "secretariat@example.org")
	t.Setenv("DEV_AUTH_ROLES", "ROLE_SECRETARIAT;ROLE_USER")
	t.Setenv("DEV_AUTH_INTERFACE_TYPE", "standard-user")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, AuthModeMock, cfg.Auth.Mode)
	assert.Equal(t, "https://crm.example.org/api", cfg.Auth.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Auth.API.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Auth.Session.RevalidateInterval)
	assert.Equal(t, 10, cfg.Auth.Session.FailureTolerance)
	assert.Equal(t, uint64(0), cfg.Auth.Session.RetryAttempts)
	assert.Equal(t, DevAuthConfig{
		UserID:        "dev-user",
		Email:         "secretariat@example.org",
		GivenName:     "Dev",
		FamilyName:    "User",
		Roles:         []string{"ROLE_SECRETARIAT", "ROLE_USER"},
		InterfaceType: "standard-user",
	}, cfg.Auth.DevAuth)
}

func TestAppConfig_InvalidEnums(t *testing.T) {
	t.Run("auth mode", func(t *testing.T) {
		t.Setenv("AUTH_MODE", "oauth")
		var cfg AppConfig
		assert.Error(t, env.Parse(&cfg))
	})
	t.Run("storage backend", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "sqlite")
		var cfg AppConfig
		assert.Error(t, env.Parse(&cfg))
	})
}

func TestSessionConfig_Sanitize(t *testing.T) {
	t.Parallel()

	cfg := SessionConfig{FailureTolerance: -2, RefreshLeeway: -time.Second}
	cfg.Sanitize()

	assert.Equal(t, 5*time.Minute, cfg.RevalidateInterval)
	assert.Equal(t, 1, cfg.FailureTolerance)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryBaseDelay)
	assert.Zero(t, cfg.RefreshLeeway)
}

func TestAPIConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:8000/api", false},
		{"https://crm.example.org", false},
		{"localhost:8000", true},
		{"ftp://example.org", true},
		{"", true},
	}
	for _, tt := range tests {
		c := APIConfig{BaseURL: tt.url}
		err := c.Validate()
		if tt.wantErr {
			assert.Error(t, err, tt.url)
		} else {
			assert.NoError(t, err, tt.url)
		}
	}
}

func TestStorageConfig_Sanitize(t *testing.T) {
	t.Parallel()

	c := StorageConfig{Backend: StorageRedis}
	c.Sanitize()
	assert.Empty(t, c.FilePath)

	c = StorageConfig{Backend: StorageFile, FilePath: "  /tmp/s.json "}
	c.Sanitize()
	assert.Equal(t, "/tmp/s.json", c.FilePath)
}

func TestObservabilityConfig_Sanitize(t *testing.T) {
	t.Parallel()

	cfg := ObservabilityConfig{
		Metrics: ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "},
		Logging: ObservabilityLoggingConfig{Level: " DEBUG "},
	}
	cfg.Sanitize()

	assert.False(t, cfg.Metrics.IsEnabled())
	assert.Equal(t, "prospection", cfg.Metrics.Prefix)
	assert.Equal(t, "debug", cfg.Logging.Level)

	cfg.Logging.Level = "verbose"
	cfg.Logging.Sanitize()
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	t.Parallel()

	h := HTTPConfig{PendingRefresh: -1}
	h.Sanitize()
	assert.Equal(t, "127.0.0.1:3000", h.Addr)
	assert.Equal(t, 1, h.PendingRefresh)
	assert.Equal(t, 10*time.Second, h.ShutdownTimeout)
}
