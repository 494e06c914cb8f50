package auth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" role_secretariat ")
	require.NoError(t, err)
	assert.Equal(t, RoleSecretariat, r)

	for _, bad := range []string{"", "ADMIN", "ROLE_", "ROLE-ADMIN", "ROLE_admin space"} {
		_, err := ParseRole(bad)
		assert.Error(t, err, bad)
	}
}

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "Secretariat", RoleSecretariat.DisplayName())
	assert.Equal(t, "Service_prospection", RoleServiceProspection.DisplayName())
	assert.Equal(t, "custom", Role("custom").DisplayName())
}

func TestParseInterfaceType(t *testing.T) {
	assert.Equal(t, InterfaceAdministrator, ParseInterfaceType("administrateur"))
	assert.Equal(t, InterfaceAdministrator, ParseInterfaceType("Administrator"))
	assert.Equal(t, InterfaceStandardUser, ParseInterfaceType("utilisateur"))
	assert.Equal(t, InterfaceStandardUser, ParseInterfaceType(""))
}

func TestIdentity_UnmarshalServerShape(t *testing.T) {
	payload := `{"id":42,"email":"a@b.com","prenom":"Anne","nom":"Martin",
		"roles":["ROLE_USER","ROLE_SECRETARIAT","ROLE_USER","not a role"],"typeInterface":"administrateur"}`

	var id Identity
	require.NoError(t, json.Unmarshal([]byte(payload), &id))

	assert.Equal(t, "42", id.ID)
	assert.Equal(t, "Anne", id.GivenName)
	assert.Equal(t, "Martin", id.FamilyName)
	assert.Equal(t, []Role{RoleUser, RoleSecretariat}, id.Roles)
	assert.Equal(t, InterfaceAdministrator, id.InterfaceType)
	assert.Equal(t, "Anne Martin", id.DisplayName())
}

func TestIdentity_SnapshotRoundTrip(t *testing.T) {
	in := Identity{
		ID:            "u-1",
		Email:         "a@b.com",
		GivenName:     "Anne",
		Roles:         []Role{RoleDirection},
		InterfaceType: InterfaceStandardUser,
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Identity
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, in.Equal(out), "got %+v", out)
}

func TestIdentity_CloneDoesNotAlias(t *testing.T) {
	in := Identity{Roles: []Role{RoleUser}}
	c := in.Clone()
	c.Roles[0] = RoleAdmin
	assert.Equal(t, RoleUser, in.Roles[0])
}

func TestIdentity_DisplayNameFallsBackToEmail(t *testing.T) {
	assert.Equal(t, "x@y.fr", Identity{Email: "x@y.fr"}.DisplayName())
}

func TestCredentials_Validate(t *testing.T) {
	assert.NoError(t, Credentials{Email: "a@b.com", Password: "x"}.Validate())

	tests := []struct {
		name  string
		creds Credentials
	}{
		{"empty email", Credentials{Password: "x"}},
		{"bad email", Credentials{Email: "email-invalide", Password: "x"}},
		{"empty password", Credentials{Email: "a@b.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.NotEmpty(t, UserMessage(err))
		})
	}
}

func TestTokens_ExpiresWithin(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, Tokens{Access: "opaque"}.ExpiresWithin(now, time.Hour))
	assert.True(t, Tokens{ExpiresAt: now.Add(30 * time.Second)}.ExpiresWithin(now, time.Minute))
	assert.False(t, Tokens{ExpiresAt: now.Add(10 * time.Minute)}.ExpiresWithin(now, time.Minute))
	assert.True(t, Tokens{}.IsZero())
}
