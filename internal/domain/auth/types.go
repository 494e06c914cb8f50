// Package auth contains domain-level types for authentication, sessions and access decisions.
// It is pure and free of framework/adapter concerns.
package auth

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Role represents an authorization role issued by the prospection API.
// Keep string form for easy persistence; values are validated by ParseRole.
type Role string

const (
	RoleAdmin              Role = "ROLE_ADMIN"
	RoleInformatique       Role = "ROLE_INFORMATIQUE"
	RoleServiceProspection Role = "ROLE_SERVICE_PROSPECTION"
	RoleSecretariat        Role = "ROLE_SECRETARIAT"
	RoleDirection          Role = "ROLE_DIRECTION"
	RoleUser               Role = "ROLE_USER"
)

var roleFormat = regexp.MustCompile(`^ROLE_[A-Z][A-Z0-9_]*$`)

// ParseRole validates a role name. Names are upper-cased before validation.
func ParseRole(s string) (Role, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if !roleFormat.MatchString(v) {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return Role(v), nil
}

// DisplayName formats a role for humans: ROLE_SECRETARIAT -> Secretariat.
func (r Role) DisplayName() string {
	s := string(r)
	if !strings.HasPrefix(s, "ROLE_") {
		return s
	}
	name := strings.ToLower(strings.TrimPrefix(s, "ROLE_"))
	if name == "" {
		return s
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// InterfaceType selects the landing page after login.
type InterfaceType string

const (
	InterfaceAdministrator InterfaceType = "administrator"
	InterfaceStandardUser  InterfaceType = "standard-user"
)

// ParseInterfaceType maps server values leniently; unknown values are standard users.
func ParseInterfaceType(s string) InterfaceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "administrator", "administrateur", "admin":
		return InterfaceAdministrator
	default:
		return InterfaceStandardUser
	}
}

// Identity represents the authenticated principal returned by the API.
// Treat it as an immutable value: replace it, never mutate a shared copy.
type Identity struct {
	ID            string
	Email         string
	GivenName     string
	FamilyName    string
	Roles         []Role
	InterfaceType InterfaceType
}

// identityJSON is the persisted and wire shape. Decoding also accepts the
// French field names the API emits.
type identityJSON struct {
	ID            json.RawMessage `json:"id,omitempty"`
	Email         string          `json:"email"`
	GivenName     string          `json:"givenName,omitempty"`
	FamilyName    string          `json:"familyName,omitempty"`
	Prenom        string          `json:"prenom,omitempty"`
	Nom           string          `json:"nom,omitempty"`
	Roles         []string        `json:"roles"`
	InterfaceType string          `json:"interfaceType,omitempty"`
	TypeInterface string          `json:"typeInterface,omitempty"`
}

// MarshalJSON writes the canonical snapshot shape.
func (i Identity) MarshalJSON() ([]byte, error) {
	roles := make([]string, len(i.Roles))
	for n, r := range i.Roles {
		roles[n] = string(r)
	}
	var id json.RawMessage
	if i.ID != "" {
		b, err := json.Marshal(i.ID)
		if err != nil {
			return nil, err
		}
		id = b
	}
	return json.Marshal(identityJSON{
		ID:            id,
		Email:         i.Email,
		GivenName:     i.GivenName,
		FamilyName:    i.FamilyName,
		Roles:         roles,
		InterfaceType: string(i.InterfaceType),
	})
}

// UnmarshalJSON accepts numeric or string ids and both naming schemes.
// Invalid role names are dropped rather than failing the whole identity.
func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw identityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}

	roles := make([]Role, 0, len(raw.Roles))
	for _, s := range raw.Roles {
		if r, perr := ParseRole(s); perr == nil && !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}

	iface := raw.InterfaceType
	if iface == "" {
		iface = raw.TypeInterface
	}

	*i = Identity{
		ID:            id,
		Email:         raw.Email,
		GivenName:     firstNonEmpty(raw.GivenName, raw.Prenom),
		FamilyName:    firstNonEmpty(raw.FamilyName, raw.Nom),
		Roles:         roles,
		InterfaceType: ParseInterfaceType(iface),
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode identity id: %w", err)
	}
	return n.String(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a deep copy so callers can never alias the store's roles slice.
func (i Identity) Clone() Identity {
	out := i
	out.Roles = slices.Clone(i.Roles)
	return out
}

// HasRole reports whether the identity carries r.
func (i Identity) HasRole(r Role) bool { return slices.Contains(i.Roles, r) }

// IsBypass reports whether the identity holds a role granted every permission.
func (i Identity) IsBypass() bool {
	return slices.ContainsFunc(i.Roles, IsBypassRole)
}

// DisplayName returns "Given Family", falling back to the email.
func (i Identity) DisplayName() string {
	name := strings.TrimSpace(i.GivenName + " " + i.FamilyName)
	if name == "" {
		return i.Email
	}
	return name
}

// Equal compares identities field by field, roles in order.
func (i Identity) Equal(o Identity) bool {
	return i.ID == o.ID &&
		i.Email == o.Email &&
		i.GivenName == o.GivenName &&
		i.FamilyName == o.FamilyName &&
		i.InterfaceType == o.InterfaceType &&
		slices.Equal(i.Roles, o.Roles)
}

// Credentials is what the login form submits.
type Credentials struct {
	Email    string
	Password string
}

var emailFormat = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validate checks the credential shape before any network call.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return &Error{Kind: KindInvalidCredentials, Message: "L'email est requis"}
	}
	if !emailFormat.MatchString(strings.TrimSpace(c.Email)) {
		return &Error{Kind: KindInvalidCredentials, Message: "Format d'email invalide"}
	}
	if c.Password == "" {
		return &Error{Kind: KindInvalidCredentials, Message: "Le mot de passe est requis"}
	}
	return nil
}

// Tokens is the credential material the API client attaches to requests.
// ExpiresAt is zero when the access token is opaque.
type Tokens struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

// IsZero reports whether no token material is held.
func (t Tokens) IsZero() bool { return t.Access == "" && t.Refresh == "" }

// ExpiresWithin reports whether the access token expires within d of now.
// Unknown expiry reports false.
func (t Tokens) ExpiresWithin(now time.Time, d time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(t.ExpiresAt)
}

// SessionState is the single source of truth exposed to the application.
// IsAuthenticated always equals Identity != nil.
type SessionState struct {
	Identity        *Identity `json:"identity"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	IsLoading       bool      `json:"isLoading"`
	LastError       string    `json:"lastError,omitempty"`
}
