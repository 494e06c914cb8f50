// Package devauth provides a config-driven ports.APIClient for local
// development without a running prospection API.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
	"github.com/upjv/prospection-ui/internal/ports"
)

const (
	accessPrefix  = "dev-access-"
	refreshPrefix = "dev-refresh-"
)

// Config controls the identity the mock client hands out.
// UserID and Email are required.
type Config struct {
	UserID        string
	Email         string
	GivenName     string
	FamilyName    string
	Roles         []string
	InterfaceType string
	// TokenTTL is the lifetime of issued access tokens; default 8h when zero.
	TokenTTL time.Duration
	// Tokens lets WhoAmI recognize tokens issued by a previous process.
	Tokens ports.TokenSource
	Now    func() time.Time
}

// Client accepts any well-formed credentials and answers as a live API would.
// The logged-in email replaces the configured one so several dev users can
// be simulated with one config.
type Client struct {
	identity domainauth.Identity
	ttl      time.Duration
	tokens   ports.TokenSource
	now      func() time.Time

	mu      sync.Mutex
	current *domainauth.Identity
}

var _ ports.APIClient = (*Client)(nil)

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}

	roles := make([]domainauth.Role, 0, len(cfg.Roles))
	for _, s := range cfg.Roles {
		r, err := domainauth.ParseRole(s)
		if err != nil {
			return nil, fmt.Errorf("dev auth: %w", err)
		}
		roles = append(roles, r)
	}

	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		identity: domainauth.Identity{
			ID:            cfg.UserID,
			Email:         cfg.Email,
			GivenName:     cfg.GivenName,
			FamilyName:    cfg.FamilyName,
			Roles:         roles,
			InterfaceType: domainauth.ParseInterfaceType(cfg.InterfaceType),
		},
		ttl:    ttl,
		tokens: cfg.Tokens,
		now:    now,
	}, nil
}

func (c *Client) Login(ctx context.Context, creds domainauth.Credentials) (ports.LoginResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.LoginResult{}, err
	}
	if err := creds.Validate(); err != nil {
		return ports.LoginResult{}, &domainauth.Error{
			Kind:    domainauth.KindAuthenticationFailed,
			Message: domainauth.UserMessage(err),
			Status:  401,
		}
	}

	id := c.identity.Clone()
	id.Email = strings.TrimSpace(creds.Email)

	tokens, err := c.issue()
	if err != nil {
		return ports.LoginResult{}, err
	}

	c.mu.Lock()
	c.current = &id
	c.mu.Unlock()

	return ports.LoginResult{Identity: id.Clone(), Tokens: tokens}, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.ClearSession()
	return nil
}

// ClearSession forgets the in-process login.
func (c *Client) ClearSession() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// WhoAmI reports the logged-in identity. After a restart, a dev token held by
// the token source still counts as authenticated with the configured identity.
func (c *Client) WhoAmI(ctx context.Context) (ports.WhoAmIResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.WhoAmIResult{}, err
	}

	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur != nil {
		id := cur.Clone()
		return ports.WhoAmIResult{Authenticated: true, Identity: &id}, nil
	}

	if c.tokens != nil {
		t, err := c.tokens.Tokens(ctx)
		if err == nil && c.valid(t) {
			id := c.identity.Clone()
			return ports.WhoAmIResult{Authenticated: true, Identity: &id}, nil
		}
	}
	return ports.WhoAmIResult{Authenticated: false}, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (ports.RefreshResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.RefreshResult{}, err
	}
	if !strings.HasPrefix(refreshToken, refreshPrefix) {
		return ports.RefreshResult{}, &domainauth.Error{
			Kind:    domainauth.KindUnauthorized,
			Message: "Token de rafraîchissement invalide",
			Status:  401,
		}
	}
	tokens, err := c.issue()
	if err != nil {
		return ports.RefreshResult{}, err
	}
	return ports.RefreshResult{Tokens: tokens}, nil
}

func (c *Client) Ping(ctx context.Context) (ports.PingResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.PingResult{}, err
	}
	return ports.PingResult{Status: 200, Body: `{"mode":"mock"}`}, nil
}

func (c *Client) valid(t domainauth.Tokens) bool {
	if !strings.HasPrefix(t.Access, accessPrefix) {
		return false
	}
	return t.ExpiresAt.IsZero() || c.now().Before(t.ExpiresAt)
}

func (c *Client) issue() (domainauth.Tokens, error) {
	access, err := randomString(32)
	if err != nil {
		return domainauth.Tokens{}, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := randomString(32)
	if err != nil {
		return domainauth.Tokens{}, fmt.Errorf("generate refresh token: %w", err)
	}
	return domainauth.Tokens{
		Access:    accessPrefix + access,
		Refresh:   refreshPrefix + refresh,
		ExpiresAt: c.now().Add(c.ttl).Truncate(time.Second),
	}, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
