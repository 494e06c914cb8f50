// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"
	"errors"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

// LoginResult is what the API returns for accepted credentials.
type LoginResult struct {
	Identity domainauth.Identity
	Tokens   domainauth.Tokens
}

// WhoAmIResult reports whether the API still considers the caller authenticated.
// Identity is nil when the server confirmed the session without returning a profile.
type WhoAmIResult struct {
	Authenticated bool
	Identity      *domainauth.Identity
}

// RefreshResult carries fresh token material, and a fresher identity when the API sends one.
type RefreshResult struct {
	Tokens   domainauth.Tokens
	Identity *domainauth.Identity
}

// PingResult describes API reachability for diagnostics.
type PingResult struct {
	Status int
	Body   string
}

// APIClient is the prospection REST API as seen by the auth core.
// Implementations attach credentials themselves and classify failures as *domainauth.Error.
type APIClient interface {
	// Login exchanges credentials for an identity and token material.
	Login(ctx context.Context, creds domainauth.Credentials) (LoginResult, error)

	// Logout revokes the current session server side.
	Logout(ctx context.Context) error

	// WhoAmI asks the server whether the current credentials are still valid.
	WhoAmI(ctx context.Context) (WhoAmIResult, error)

	// Refresh exchanges a refresh token for new token material.
	Refresh(ctx context.Context, refreshToken string) (RefreshResult, error)

	// Ping checks that the API answers at all.
	Ping(ctx context.Context) (PingResult, error)

	// ClearSession forgets credentials the client holds on its own, such as
	// session cookies. Called whenever the local session ends, whether or not
	// the server acknowledged a logout.
	ClearSession()
}

// ErrKeyNotFound is returned by KeyValueStore.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is durable client-side storage for the session's string entries.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// TokenSource exposes the current token material to the API client transport.
type TokenSource interface {
	Tokens(ctx context.Context) (domainauth.Tokens, error)
}
