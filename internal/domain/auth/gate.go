package auth

// Requirement is the access requirement a route declares.
// At most one of Role and Permission is set; both empty means no requirement.
type Requirement struct {
	Role       Role
	Permission Permission
}

// None is the requirement of routes open to any authenticated user.
func None() Requirement { return Requirement{} }

// RequireRole builds a role requirement.
func RequireRole(r Role) Requirement { return Requirement{Role: r} }

// RequirePermission builds a permission requirement.
func RequirePermission(p Permission) Requirement { return Requirement{Permission: p} }

// IsNone reports whether the requirement is empty.
func (r Requirement) IsNone() bool { return r.Role == "" && r.Permission == "" }

// String renders the requirement for logs.
func (r Requirement) String() string {
	switch {
	case r.Role != "":
		return "role:" + string(r.Role)
	case r.Permission != "":
		return "permission:" + string(r.Permission)
	default:
		return "none"
	}
}

// Verdict is the outcome of an access decision.
type Verdict int

const (
	// Allow renders the requested view.
	Allow Verdict = iota
	// Pending renders a loading placeholder while the session is being established.
	Pending
	// DenyRedirectLogin redirects to the login view, remembering the requested path.
	DenyRedirectLogin
	// DenyForbidden renders an in-place access denied panel.
	DenyForbidden
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Pending:
		return "pending"
	case DenyRedirectLogin:
		return "redirect_login"
	case DenyForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision carries the verdict and, for DenyRedirectLogin, the path to return to.
type Decision struct {
	Verdict      Verdict
	RedirectFrom string
}

// Decide is DecideFor without a requested path.
func Decide(s SessionState, req Requirement) Decision {
	return DecideFor(s, req, "")
}

// DecideFor decides whether the session may view a route declaring req.
// It reads nothing but its arguments.
func DecideFor(s SessionState, req Requirement, path string) Decision {
	if s.IsLoading {
		return Decision{Verdict: Pending}
	}
	if !s.IsAuthenticated || s.Identity == nil {
		return Decision{Verdict: DenyRedirectLogin, RedirectFrom: path}
	}
	if req.IsNone() {
		return Decision{Verdict: Allow}
	}

	id := *s.Identity
	if id.IsBypass() {
		return Decision{Verdict: Allow}
	}
	if req.Role != "" && id.HasRole(req.Role) {
		return Decision{Verdict: Allow}
	}
	if req.Permission != "" && Can(id, req.Permission) {
		return Decision{Verdict: Allow}
	}
	return Decision{Verdict: DenyForbidden}
}
