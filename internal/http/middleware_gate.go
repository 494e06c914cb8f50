package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

type sessionKey struct{}

// withSession stores the state the gate decided on, so the page renders
// exactly what was authorized.
func withSession(ctx context.Context, s domainauth.SessionState) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the state stored by Gate.
func SessionFromContext(ctx context.Context) (domainauth.SessionState, bool) {
	s, ok := ctx.Value(sessionKey{}).(domainauth.SessionState)
	return s, ok
}

// Gate enforces req on every request:
//   - Pending renders the loading placeholder with 202 and a Refresh header
//   - DenyRedirectLogin answers 303 to /login?from=<requested path>
//   - DenyForbidden renders the access denied panel in place with 403
func (h *Handlers) Gate(req domainauth.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := h.Auth.State()
			decision := domainauth.DecideFor(state, req, r.URL.RequestURI())

			switch decision.Verdict {
			case domainauth.Allow:
				next.ServeHTTP(w, r.WithContext(withSession(r.Context(), state)))
			case domainauth.Pending:
				h.pending(w, state)
			case domainauth.DenyRedirectLogin:
				http.Redirect(w, r, loginURL(decision.RedirectFrom), http.StatusSeeOther)
			default:
				h.Logger.InfoContext(r.Context(), "access denied",
					"path", r.URL.Path,
					"requirement", req.String(),
				)
				h.Renderer.Render(w, http.StatusForbidden, viewForbidden, newViewData("Accès refusé", state))
			}
		})
	}
}

func (h *Handlers) pending(w http.ResponseWriter, state domainauth.SessionState) {
	refresh := h.Refresh
	if refresh < 1 {
		refresh = 1
	}
	w.Header().Set("Refresh", strconv.Itoa(refresh))
	h.Renderer.Render(w, http.StatusAccepted, viewPending, newViewData("Chargement", state))
}

// loginURL builds /login, carrying from when it is a safe local path.
func loginURL(from string) string {
	from = safeRedirectPath(from)
	if from == "" {
		return "/login"
	}
	return "/login?from=" + url.QueryEscape(from)
}
