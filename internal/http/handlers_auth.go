package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

// Handlers serves the login flow, the session API and the protected pages.
type Handlers struct {
	Auth     SessionController
	Renderer *Renderer
	Logger   *slog.Logger
	Refresh  int
}

// landingPath is where an authenticated identity lands by default.
func landingPath(id *domainauth.Identity) string {
	if id != nil && id.InterfaceType == domainauth.InterfaceAdministrator {
		return "/admin"
	}
	return "/dashboard"
}

// Landing dispatches "/" on the session: loading shows the placeholder,
// anonymous goes to /login, administrators to /admin, others to /dashboard.
func (h *Handlers) Landing(w http.ResponseWriter, r *http.Request) {
	state := h.Auth.State()
	switch {
	case state.IsLoading:
		h.pending(w, state)
	case !state.IsAuthenticated:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	default:
		http.Redirect(w, r, landingPath(state.Identity), http.StatusSeeOther)
	}
}

// LoginPage renders the login form. An authenticated session skips it.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	from := safeRedirectPath(r.URL.Query().Get("from"))
	state := h.Auth.State()
	if state.IsAuthenticated {
		http.Redirect(w, r, postLoginPath(from, state.Identity), http.StatusSeeOther)
		return
	}

	data := newViewData("Connexion", state)
	data.From = from
	h.Renderer.Render(w, http.StatusOK, viewLogin, data)
}

// LoginSubmit runs the login. Failures re-render the form with 401 and the
// user-facing message; they never redirect.
func (h *Handlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.loginFailed(w, r, "", "", "Formulaire invalide")
		return
	}
	creds := domainauth.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	from := safeRedirectPath(r.PostFormValue("from"))

	id, err := h.Auth.Login(r.Context(), creds)
	if err != nil {
		h.Logger.InfoContext(r.Context(), "login failed",
			"kind", string(domainauth.KindOf(err)),
			"error", err,
		)
		h.loginFailed(w, r, creds.Email, from, domainauth.UserMessage(err))
		return
	}

	http.Redirect(w, r, postLoginPath(from, &id), http.StatusSeeOther)
}

func (h *Handlers) loginFailed(w http.ResponseWriter, _ *http.Request, email, from, msg string) {
	data := newViewData("Connexion", h.Auth.State())
	data.Email = email
	data.From = from
	data.Error = msg
	h.Renderer.Render(w, http.StatusUnauthorized, viewLogin, data)
}

// Logout ends the session and always lands on /login.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context()); err != nil {
		h.Logger.WarnContext(r.Context(), "logout failed", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type sessionResponse struct {
	domainauth.SessionState
	DisplayName string   `json:"displayName,omitempty"`
	Permissions []string `json:"permissions"`
}

func newSessionResponse(s domainauth.SessionState) sessionResponse {
	out := sessionResponse{SessionState: s, Permissions: []string{}}
	if s.Identity != nil {
		out.DisplayName = s.Identity.DisplayName()
		for _, p := range domainauth.Permissions(s.Identity.Roles) {
			out.Permissions = append(out.Permissions, string(p))
		}
	}
	return out
}

// SessionStatus returns the current session state as JSON.
func (h *Handlers) SessionStatus(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, newSessionResponse(h.Auth.State()))
}

// SessionCheck revalidates the session with the API and returns the result.
// A transient failure answers 503 while the state keeps the cached identity.
func (h *Handlers) SessionCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.CheckAuthStatus(r.Context()); err != nil {
		code := http.StatusServiceUnavailable
		if errors.Is(err, domainauth.ErrSessionExpired) {
			code = http.StatusUnauthorized
		}
		WriteError(w, ErrorParams{
			Code:    code,
			ErrCode: string(domainauth.KindOf(err)),
			Message: domainauth.UserMessage(err),
		})
		return
	}
	WriteJSON(w, http.StatusOK, newSessionResponse(h.Auth.State()))
}

// Page renders a protected view with the state the gate authorized.
func (h *Handlers) Page(rt Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := SessionFromContext(r.Context())
		if !ok {
			state = h.Auth.State()
		}
		data := newViewData(rt.Title, state)
		if state.Identity != nil {
			for _, p := range domainauth.Permissions(state.Identity.Roles) {
				data.Permissions = append(data.Permissions, string(p))
			}
		}
		h.Renderer.Render(w, http.StatusOK, viewPage, data)
	}
}

// postLoginPath prefers the remembered path over the identity's landing page.
func postLoginPath(from string, id *domainauth.Identity) string {
	if from != "" && from != "/" {
		return from
	}
	return landingPath(id)
}

// safeRedirectPath keeps only local absolute paths; anything else is "".
// /login itself is dropped so a login never loops back to the form.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return ""
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return ""
	}
	if strings.HasPrefix(candidate, "//") || strings.Contains(candidate, `\`) {
		return ""
	}
	if u.Path == "/login" {
		return ""
	}
	return candidate
}
