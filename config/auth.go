package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuthMode selects which API client backs the session controller.
type AuthMode string

const (
	// AuthModeAPI talks to the prospection REST API.
	AuthModeAPI AuthMode = "api"
	// AuthModeMock uses an in-process API that accepts any password (development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "api", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: api, mock)", v)
	}
}

// DefaultErrorMessageExpr extracts a user-facing message from API error payloads.
const DefaultErrorMessageExpr = "message || error.message || detail || error"

// APIConfig describes how to reach the prospection REST API.
type APIConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:8000/api".
	BaseURL string        `env:"BASE_URL"   envDefault:"http://localhost:8000/api"`
	Timeout time.Duration `env:"TIMEOUT"    envDefault:"10s"`
	// ErrorMessageExpr is a JMESPath expression evaluated against JSON error bodies.
	ErrorMessageExpr string `env:"ERROR_MESSAGE_EXPR" envDefault:"message || error.message || detail || error"`
	UserAgent        string `env:"USER_AGENT"         envDefault:"prospection-ui"`
}

// Sanitize applies guardrails to API client configuration.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(c.ErrorMessageExpr) == "" {
		c.ErrorMessageExpr = DefaultErrorMessageExpr
	}
	if c.UserAgent == "" {
		c.UserAgent = "prospection-ui"
	}
}

// Validate reports whether BaseURL is an absolute http(s) URL.
func (c *APIConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("parse API base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API base URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	return nil
}

// SessionConfig tunes the session controller's revalidation and failure policy.
type SessionConfig struct {
	// RevalidateInterval is the period of the background check while authenticated.
	RevalidateInterval time.Duration `env:"REVALIDATE_INTERVAL" envDefault:"5m"`
	// FailureTolerance is the number of consecutive failures that forces a logout.
	FailureTolerance int `env:"FAILURE_TOLERANCE" envDefault:"3"`
	// RetryAttempts is how many times a transient failure is retried within one call.
	RetryAttempts  uint64        `env:"RETRY_ATTEMPTS"   envDefault:"2"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"200ms"`
	// RefreshLeeway triggers a token refresh when the access token expires within it.
	RefreshLeeway time.Duration `env:"REFRESH_LEEWAY" envDefault:"1m"`
}

// DefaultSessionConfig returns the defaults applied by Sanitize.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		RevalidateInterval: 5 * time.Minute,
		FailureTolerance:   3,
		RetryAttempts:      2,
		RetryBaseDelay:     200 * time.Millisecond,
		RefreshLeeway:      time.Minute,
	}
}

// Sanitize replaces out-of-range values with defaults.
func (c *SessionConfig) Sanitize() {
	def := DefaultSessionConfig()
	if c.RevalidateInterval <= 0 {
		c.RevalidateInterval = def.RevalidateInterval
	}
	if c.FailureTolerance < 1 {
		c.FailureTolerance = 1
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = def.RetryBaseDelay
	}
	if c.RefreshLeeway < 0 {
		c.RefreshLeeway = 0
	}
}

// DevAuthConfig controls the identity served in mock mode.
type DevAuthConfig struct {
	UserID        string   `env:"USER_ID"        envDefault:"dev-user"`
	Email         string   `env:"EMAIL"          envDefault:"dev@example.com"`
	GivenName     string   `env:"GIVEN_NAME"     envDefault:"Dev"`
	FamilyName    string   `env:"FAMILY_NAME"    envDefault:"User"`
	Roles         []string `env:"ROLES"          envDefault:"ROLE_ADMIN"      envSeparator:";"`
	InterfaceType string   `env:"INTERFACE_TYPE" envDefault:"administrator"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which API client to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"api"`

	API     APIConfig     `envPrefix:"API_"`
	Session SessionConfig `envPrefix:"SESSION_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize applies guardrails to auth sub-configs.
func (c *AuthConfig) Sanitize() {
	c.API.Sanitize()
	c.Session.Sanitize()
}
