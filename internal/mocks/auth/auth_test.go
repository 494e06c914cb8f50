package auth

import (
	"context"
	"errors"
	"testing"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
	"github.com/upjv/prospection-ui/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedAPIClient_Defaults(t *testing.T) {
	api := NewScriptedAPIClient()
	ctx := context.Background()

	res, err := api.Login(ctx, domainauth.Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", res.Identity.ID)
	assert.Equal(t, "access-1", res.Tokens.Access)

	who, err := api.WhoAmI(ctx)
	require.NoError(t, err)
	assert.True(t, who.Authenticated)
	require.NotNil(t, who.Identity)
	assert.Equal(t, "mock.user@example.com", who.Identity.Email)

	ref, err := api.Refresh(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", ref.Tokens.Refresh)

	assert.Equal(t, 1, api.Calls("Login"))
	assert.Equal(t, 1, api.Calls("WhoAmI"))
	assert.Equal(t, 0, api.Calls("Logout"))
}

func TestScriptedAPIClient_Overrides(t *testing.T) {
	api := &ScriptedAPIClient{
		WhoAmIFunc: func(context.Context) (ports.WhoAmIResult, error) {
			return ports.WhoAmIResult{}, domainauth.ErrNetworkUnavailable
		},
	}
	_, err := api.WhoAmI(context.Background())
	assert.ErrorIs(t, err, domainauth.ErrNetworkUnavailable)
	assert.Equal(t, 1, api.Calls("WhoAmI"))
}

func TestMemoryKeyValueStore(t *testing.T) {
	store := NewMemoryKeyValueStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))
	v, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, store.Delete(ctx, "a", "b", "c"))
	assert.Equal(t, 0, store.Len())

	store.SetErr = errors.New("disk full")
	assert.Error(t, store.Set(ctx, "a", "1"))
}
