package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upjv/prospection-ui/config"
	"github.com/upjv/prospection-ui/internal/bootstrap"
	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		Storage: config.StorageConfig{Backend: config.StorageMemory},
		Auth: config.AuthConfig{
			Mode:    config.AuthModeMock,
			Session: config.DefaultSessionConfig(),
			DevAuth: config.DevAuthConfig{
				UserID:        "dev-user",
				Email:         "dev@example.com",
				GivenName:     "Dev",
				FamilyName:    "User",
				Roles:         []string{"ROLE_SECRETARIAT"},
				InterfaceType: "standard-user",
			},
		},
	}
}

func sharedStorage(t *testing.T) *bootstrap.Storage {
	t.Helper()
	storage, err := bootstrap.BuildStorage(bootstrap.StorageOptions{
		Storage: config.StorageConfig{Backend: config.StorageMemory},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return storage
}

func newTestContext(t *testing.T, storage *bootstrap.Storage, stdin string) (*commandContext, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	c := &commandContext{
		Ctx:     context.Background(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  testConfig(),
		Out:     &out,
		In:      strings.NewReader(stdin),
		storage: storage,
	}
	t.Cleanup(func() { _ = c.close() })
	return c, &out
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))

	out := buf.String()
	for name := range commands() {
		assert.Contains(t, out, name)
	}
	assert.Less(t, strings.Index(out, "check"), strings.Index(out, "status"))
}

func TestLogin_PasswordFromStdin(t *testing.T) {
	storage := sharedStorage(t)
	c, out := newTestContext(t, storage, "s3cret\n")

	require.NoError(t, runLogin(c, []string{"--email", "claire@upjv.fr", "--password-stdin"}))
	assert.Contains(t, out.String(), "claire@upjv.fr")
	assert.Contains(t, out.String(), "Secretariat")

	out.Reset()
	require.NoError(t, runCheck(c, nil))
	assert.Contains(t, out.String(), "Session valide pour claire@upjv.fr")
}

func TestLogin_Validation(t *testing.T) {
	c, _ := newTestContext(t, sharedStorage(t), "")

	err := runLogin(c, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--email")

	err = runLogin(c, []string{"--email", "a@b.fr", "--password", "x", "--password-stdin"})
	require.Error(t, err)

	// Empty password from stdin is rejected by credential validation.
	err = runLogin(c, []string{"--email", "a@b.fr"})
	require.Error(t, err)
	assert.False(t, c.auth.Controller.State().IsAuthenticated)
}

func TestStatus_OfflineAfterLogin(t *testing.T) {
	storage := sharedStorage(t)
	login, _ := newTestContext(t, storage, "")
	require.NoError(t, runLogin(login, []string{"--email", "claire@upjv.fr", "--password", "pw"}))

	c, out := newTestContext(t, storage, "")
	require.NoError(t, runStatus(c, []string{"--json"}))

	var got statusOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.Authenticated)
	require.NotNil(t, got.Identity)
	assert.Equal(t, "claire@upjv.fr", got.Identity.Email)
	assert.True(t, got.HasToken)
	assert.True(t, got.HasRefresh)
	assert.NotNil(t, got.ExpiresAt)
	assert.ElementsMatch(t, []string{"PERMISSION_LECTURE", "PERMISSION_ECRITURE"}, got.Permissions)

	out.Reset()
	require.NoError(t, runStatus(c, nil))
	assert.Contains(t, out.String(), "authentifiée")
	assert.Contains(t, out.String(), "PERMISSION_LECTURE, PERMISSION_ECRITURE")
}

func TestStatus_Anonymous(t *testing.T) {
	c, out := newTestContext(t, sharedStorage(t), "")
	require.NoError(t, runStatus(c, nil))
	assert.Contains(t, out.String(), "anonyme")
	assert.Contains(t, out.String(), "Token:")
}

func TestCheck_NotAuthenticated(t *testing.T) {
	c, _ := newTestContext(t, sharedStorage(t), "")
	err := runCheck(c, nil)
	require.ErrorIs(t, err, errNotAuthenticated)
}

func TestLogout_ClearsStorage(t *testing.T) {
	storage := sharedStorage(t)
	c, out := newTestContext(t, storage, "")
	require.NoError(t, runLogin(c, []string{"--email", "claire@upjv.fr", "--password", "pw"}))

	out.Reset()
	require.NoError(t, runLogout(c, nil))
	assert.Contains(t, out.String(), "Déconnecté")

	other, _ := newTestContext(t, storage, "")
	auth, err := other.session()
	require.NoError(t, err)
	assert.Nil(t, auth.Store.ReadCachedSnapshot(context.Background()))
	tokens, err := auth.Store.Tokens(context.Background())
	require.NoError(t, err)
	assert.True(t, tokens.IsZero())
}

func TestDiagnose_Mock(t *testing.T) {
	c, out := newTestContext(t, sharedStorage(t), "")
	require.NoError(t, runDiagnose(c, nil))

	s := out.String()
	assert.Contains(t, s, "mock")
	assert.Contains(t, s, "HTTP 200")
	assert.Contains(t, s, "Email en cache:")
}

func TestPermissions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{name: "direction", args: []string{"--roles", "ROLE_DIRECTION"}, want: []string{"Direction", "PERMISSION_LECTURE, PERMISSION_RAPPORTS"}},
		{name: "bypass", args: []string{"--roles", "ROLE_ADMIN"}, want: []string{"PERMISSION_LECTURE, PERMISSION_ECRITURE, PERMISSION_RAPPORTS, PERMISSION_ADMIN"}},
		{name: "several", args: []string{"--roles", "ROLE_USER, ROLE_SECRETARIAT"}, want: []string{"User, Secretariat", "PERMISSION_LECTURE, PERMISSION_ECRITURE"}},
		{name: "matrix", args: []string{"--matrix"}, want: []string{"ROLE", "Service_prospection", "PERMISSION_RAPPORTS", "oui", "non"}},
		{name: "malformed role", args: []string{"--roles", "not a role"}, wantErr: true},
		{name: "no roles and no session", args: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newTestContext(t, sharedStorage(t), "")
			err := runPermissions(c, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out.String(), w)
			}
		})
	}
}

func TestTokenPrefix(t *testing.T) {
	assert.Equal(t, "-", tokenPrefix(""))
	assert.Equal(t, "*****", tokenPrefix("short"))
	assert.Equal(t, "dev-access...", tokenPrefix("dev-access-0123456789"))
}

func TestParseRoles(t *testing.T) {
	roles, err := parseRoles(" ROLE_ADMIN ,,ROLE_USER")
	require.NoError(t, err)
	assert.Equal(t, []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleUser}, roles)
}
