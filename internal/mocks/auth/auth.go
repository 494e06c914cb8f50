// Package auth contains hand-written test doubles for the auth ports, for
// tests that script whole sequences without gomock expectations.
package auth

import (
	"context"
	"sync"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
	"github.com/upjv/prospection-ui/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.APIClient     = (*ScriptedAPIClient)(nil)
	_ ports.KeyValueStore = (*MemoryKeyValueStore)(nil)
)

// DefaultIdentity is the identity returned by a ScriptedAPIClient with no overrides.
func DefaultIdentity() domainauth.Identity {
	return domainauth.Identity{
		ID:            "mock-user-1",
		Email:         "mock.user@example.com",
		GivenName:     "Mock",
		FamilyName:    "User",
		Roles:         []domainauth.Role{domainauth.RoleUser},
		InterfaceType: domainauth.InterfaceStandardUser,
	}
}

// ScriptedAPIClient simulates the prospection API. Each Func field overrides
// the default behavior; call counts are tracked per method.
// It is safe for concurrent use.
type ScriptedAPIClient struct {
	LoginFunc   func(ctx context.Context, creds domainauth.Credentials) (ports.LoginResult, error)
	LogoutFunc  func(ctx context.Context) error
	WhoAmIFunc  func(ctx context.Context) (ports.WhoAmIResult, error)
	RefreshFunc func(ctx context.Context, refreshToken string) (ports.RefreshResult, error)
	PingFunc    func(ctx context.Context) (ports.PingResult, error)

	// User is returned by default Login and WhoAmI; DefaultIdentity when empty.
	User domainauth.Identity

	mu    sync.Mutex
	calls map[string]int
}

// NewScriptedAPIClient creates a client that accepts everything.
func NewScriptedAPIClient() *ScriptedAPIClient {
	return &ScriptedAPIClient{User: DefaultIdentity()}
}

func (m *ScriptedAPIClient) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how many times method name was invoked.
func (m *ScriptedAPIClient) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *ScriptedAPIClient) user() domainauth.Identity {
	if m.User.ID == "" && m.User.Email == "" {
		return DefaultIdentity()
	}
	return m.User.Clone()
}

func (m *ScriptedAPIClient) Login(ctx context.Context, creds domainauth.Credentials) (ports.LoginResult, error) {
	m.record("Login")
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, creds)
	}
	return ports.LoginResult{
		Identity: m.user(),
		Tokens:   domainauth.Tokens{Access: "access-1", Refresh: "refresh-1"},
	}, nil
}

func (m *ScriptedAPIClient) Logout(ctx context.Context) error {
	m.record("Logout")
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	return nil
}

func (m *ScriptedAPIClient) WhoAmI(ctx context.Context) (ports.WhoAmIResult, error) {
	m.record("WhoAmI")
	if m.WhoAmIFunc != nil {
		return m.WhoAmIFunc(ctx)
	}
	u := m.user()
	return ports.WhoAmIResult{Authenticated: true, Identity: &u}, nil
}

func (m *ScriptedAPIClient) Refresh(ctx context.Context, refreshToken string) (ports.RefreshResult, error) {
	m.record("Refresh")
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return ports.RefreshResult{
		Tokens: domainauth.Tokens{Access: "access-refreshed", Refresh: refreshToken},
	}, nil
}

func (m *ScriptedAPIClient) Ping(ctx context.Context) (ports.PingResult, error) {
	m.record("Ping")
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return ports.PingResult{Status: 200, Body: `{"status":"ok"}`}, nil
}

func (m *ScriptedAPIClient) ClearSession() {
	m.record("ClearSession")
}

// MemoryKeyValueStore is an in-memory KeyValueStore for unit tests.
// SetErr, when non-nil, is returned by every Set.
type MemoryKeyValueStore struct {
	SetErr error

	mu     sync.Mutex
	values map[string]string
}

// NewMemoryKeyValueStore creates an empty store.
func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{values: make(map[string]string)}
}

func (m *MemoryKeyValueStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ports.ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryKeyValueStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *MemoryKeyValueStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKeyValueStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
