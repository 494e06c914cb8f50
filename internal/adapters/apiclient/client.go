// Package apiclient implements ports.APIClient against the prospection REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
	"github.com/upjv/prospection-ui/internal/ports"
)

// API paths, relative to the base URL.
const (
	PathLogin      = "/login_check"
	PathLogout     = "/logout"
	PathAuthStatus = "/auth-status"
	PathRefresh    = "/token/refresh"
	PathAuthTest   = "/auth-test"
)

// maxBodyBytes caps how much of any response is read.
const maxBodyBytes = 1 << 20

// Config configures the REST client.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	UserAgent        string
	ErrorMessageExpr string
	// Tokens supplies the bearer token; nil sends no Authorization header.
	Tokens ports.TokenSource
	// Transport overrides the base round tripper (tests).
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client talks to the prospection API. Credentials travel both as a bearer
// token, when one is held, and as cookies kept in a public-suffix aware jar.
type Client struct {
	baseURL  string
	http     *http.Client
	messages *MessageExtractor
	jar      *sessionJar
	logger   *slog.Logger
}

var _ ports.APIClient = (*Client)(nil)

// New builds a Client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api base URL is required")
	}

	messages, err := NewMessageExtractor(cfg.ErrorMessageExpr)
	if err != nil {
		return nil, err
	}

	jar, err := newSessionJar()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rt := &bearerTransport{
		source: cfg.Tokens,
		base:   &requestIDTransport{base: cfg.Transport, userAgent: cfg.UserAgent},
	}

	return &Client{
		baseURL:  base,
		http:     &http.Client{Timeout: timeout, Jar: jar, Transport: rt},
		messages: messages,
		jar:      jar,
		logger:   logger.With("component", "api_client"),
	}, nil
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token        string               `json:"token"`
	RefreshToken string               `json:"refresh_token"`
	User         *domainauth.Identity `json:"user"`
}

type authStatusResponse struct {
	Authenticated bool                 `json:"authenticated"`
	User          *domainauth.Identity `json:"user"`
}

// Login posts the credentials to the JSON login endpoint. A 401 or 403
// becomes AuthenticationFailed carrying the server's message.
func (c *Client) Login(ctx context.Context, creds domainauth.Credentials) (ports.LoginResult, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, PathLogin, loginRequest{
		Username: strings.TrimSpace(creds.Email),
		Password: creds.Password,
	}, &out, domainauth.KindAuthenticationFailed)
	if err != nil {
		return ports.LoginResult{}, err
	}

	if out.Token == "" && out.User == nil {
		return ports.LoginResult{}, &domainauth.Error{
			Kind:    domainauth.KindServerError,
			Message: "Token non trouvé dans la réponse",
		}
	}

	tokens := domainauth.Tokens{
		Access:    out.Token,
		Refresh:   out.RefreshToken,
		ExpiresAt: tokenExpiry(out.Token),
	}
	if out.User != nil {
		return ports.LoginResult{Identity: *out.User, Tokens: tokens}, nil
	}

	// Token without profile: ask for it with the new token.
	status, err := c.whoAmIWith(ctx, out.Token)
	if err != nil {
		return ports.LoginResult{}, err
	}
	if !status.Authenticated || status.Identity == nil {
		return ports.LoginResult{}, &domainauth.Error{
			Kind:    domainauth.KindAuthenticationFailed,
			Message: "Profil utilisateur indisponible",
		}
	}
	return ports.LoginResult{Identity: *status.Identity, Tokens: tokens}, nil
}

// Logout asks the server to revoke the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, PathLogout, struct{}{}, nil, domainauth.KindUnauthorized)
}

// ClearSession empties the cookie jar, so a session cookie the server failed
// to revoke is never replayed.
func (c *Client) ClearSession() {
	if err := c.jar.reset(); err != nil {
		c.logger.Warn("reset cookie jar failed", "error", err)
	}
}

// WhoAmI reports the server's view of the current session.
func (c *Client) WhoAmI(ctx context.Context) (ports.WhoAmIResult, error) {
	return c.whoAmIWith(ctx, "")
}

func (c *Client) whoAmIWith(ctx context.Context, token string) (ports.WhoAmIResult, error) {
	if token != "" {
		ctx = withBearer(ctx, token)
	}
	var out authStatusResponse
	if err := c.do(ctx, http.MethodGet, PathAuthStatus, nil, &out, domainauth.KindUnauthorized); err != nil {
		return ports.WhoAmIResult{}, err
	}
	return ports.WhoAmIResult{Authenticated: out.Authenticated, Identity: out.User}, nil
}

// Refresh exchanges refreshToken for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (ports.RefreshResult, error) {
	if refreshToken == "" {
		return ports.RefreshResult{}, &domainauth.Error{
			Kind:    domainauth.KindUnauthorized,
			Message: "Aucun token de rafraîchissement disponible",
		}
	}

	var out tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, PathRefresh, body, &out, domainauth.KindUnauthorized); err != nil {
		return ports.RefreshResult{}, err
	}
	if out.Token == "" {
		return ports.RefreshResult{}, &domainauth.Error{
			Kind:    domainauth.KindUnauthorized,
			Message: "Token non trouvé dans la réponse",
		}
	}
	return ports.RefreshResult{
		Tokens: domainauth.Tokens{
			Access:    out.Token,
			Refresh:   out.RefreshToken,
			ExpiresAt: tokenExpiry(out.Token),
		},
		Identity: out.User,
	}, nil
}

// Ping calls the diagnostics endpoint. Any HTTP answer is a result, only
// transport failures are errors.
func (c *Client) Ping(ctx context.Context) (ports.PingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathAuthTest, nil)
	if err != nil {
		return ports.PingResult{}, fmt.Errorf("create ping request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.PingResult{}, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ports.PingResult{}, transportError(err)
	}
	return ports.PingResult{Status: resp.StatusCode, Body: string(body)}, nil
}

// do sends a JSON request and decodes a 2xx JSON response into out.
// rejectKind classifies 401/403 answers.
func (c *Client) do(ctx context.Context, method, path string, in, out any, rejectKind domainauth.ErrorKind) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "api request failed", "method", method, "path", path, "error", err)
		return transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(err)
	}
	c.logger.DebugContext(ctx, "api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp.StatusCode, raw, rejectKind)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domainauth.Error{
			Kind:    domainauth.KindServerError,
			Message: "Réponse du serveur illisible",
			Status:  resp.StatusCode,
			Cause:   err,
		}
	}
	return nil
}
