package devauth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

type staticTokens struct{ t domainauth.Tokens }

func (s staticTokens) Tokens(context.Context) (domainauth.Tokens, error) { return s.t, nil }

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newClient(t *testing.T, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		UserID:        "dev-user",
		Email:         "dev@example.com",
		GivenName:     "Dev",
		FamilyName:    "User",
		Roles:         []string{"ROLE_ADMIN"},
		InterfaceType: "administrator",
		Now:           func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Email: "a@b.fr"})
	require.Error(t, err)
	_, err = New(Config{UserID: "u"})
	require.Error(t, err)
	_, err = New(Config{UserID: "u", Email: "a@b.fr", Roles: []string{"not a role"}})
	require.Error(t, err)
}

func TestClient_LoginWhoAmILogout(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, nil)

	res, err := c.WhoAmI(ctx)
	require.NoError(t, err)
	assert.False(t, res.Authenticated)

	login, err := c.Login(ctx, domainauth.Credentials{Email: "marie@upjv.fr", Password: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "marie@upjv.fr", login.Identity.Email)
	assert.Equal(t, []domainauth.Role{domainauth.RoleAdmin}, login.Identity.Roles)
	assert.Equal(t, domainauth.InterfaceAdministrator, login.Identity.InterfaceType)
	assert.True(t, strings.HasPrefix(login.Tokens.Access, accessPrefix))
	assert.True(t, strings.HasPrefix(login.Tokens.Refresh, refreshPrefix))
	assert.Equal(t, fixedNow.Add(8*time.Hour), login.Tokens.ExpiresAt)

	res, err = c.WhoAmI(ctx)
	require.NoError(t, err)
	require.True(t, res.Authenticated)
	assert.Equal(t, "marie@upjv.fr", res.Identity.Email)

	require.NoError(t, c.Logout(ctx))
	res, err = c.WhoAmI(ctx)
	require.NoError(t, err)
	assert.False(t, res.Authenticated)
}

func TestClient_ClearSession(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, nil)
	_, err := c.Login(ctx, domainauth.Credentials{Email: "marie@upjv.fr", Password: "pw"})
	require.NoError(t, err)

	c.ClearSession()

	res, err := c.WhoAmI(ctx)
	require.NoError(t, err)
	assert.False(t, res.Authenticated)
}

func TestClient_LoginRejectsMalformedCredentials(t *testing.T) {
	c := newClient(t, nil)
	_, err := c.Login(context.Background(), domainauth.Credentials{Email: "nope", Password: "x"})
	require.ErrorIs(t, err, domainauth.ErrAuthenticationFailed)
}

func TestClient_WhoAmIFromStoredToken(t *testing.T) {
	ctx := context.Background()

	live := newClient(t, func(c *Config) {
		c.Tokens = staticTokens{domainauth.Tokens{Access: accessPrefix + "x", ExpiresAt: fixedNow.Add(time.Hour)}}
	})
	res, err := live.WhoAmI(ctx)
	require.NoError(t, err)
	require.True(t, res.Authenticated)
	assert.Equal(t, "dev@example.com", res.Identity.Email)

	expired := newClient(t, func(c *Config) {
		c.Tokens = staticTokens{domainauth.Tokens{Access: accessPrefix + "x", ExpiresAt: fixedNow.Add(-time.Minute)}}
	})
	res, err = expired.WhoAmI(ctx)
	require.NoError(t, err)
	assert.False(t, res.Authenticated)

	foreign := newClient(t, func(c *Config) {
		c.Tokens = staticTokens{domainauth.Tokens{Access: "real-jwt"}}
	})
	res, err = foreign.WhoAmI(ctx)
	require.NoError(t, err)
	assert.False(t, res.Authenticated)
}

func TestClient_Refresh(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, nil)

	_, err := c.Refresh(ctx, "bogus")
	require.ErrorIs(t, err, domainauth.ErrUnauthorized)

	res, err := c.Refresh(ctx, refreshPrefix+"abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Tokens.Access, accessPrefix))
	assert.Nil(t, res.Identity)
}

func TestClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newClient(t, nil)

	_, err := c.Login(ctx, domainauth.Credentials{Email: "a@b.fr", Password: "x"})
	require.ErrorIs(t, err, context.Canceled)
	_, err = c.Ping(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_Ping(t *testing.T) {
	res, err := newClient(t, nil).Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
}
