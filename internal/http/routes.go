// Package httpx serves the prospection front-end: the login flow, session
// endpoints and the protected views, each gated on the session state.
package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

// SessionController is the part of the auth controller the handlers drive.
type SessionController interface {
	State() domainauth.SessionState
	Login(ctx context.Context, creds domainauth.Credentials) (domainauth.Identity, error)
	Logout(ctx context.Context) error
	CheckAuthStatus(ctx context.Context) error
}

// Route is a protected view and the requirement it declares.
type Route struct {
	Path        string
	Title       string
	Requirement domainauth.Requirement
}

// Routes is the protected route table.
var Routes = []Route{
	{Path: "/dashboard", Title: "Tableau de bord", Requirement: domainauth.None()},
	{Path: "/admin", Title: "Administration", Requirement: domainauth.RequireRole(domainauth.RoleAdmin)},
	{Path: "/prospection", Title: "Prospection", Requirement: domainauth.RequirePermission(domainauth.PermissionRead)},
	{Path: "/fiches", Title: "Fiches", Requirement: domainauth.RequirePermission(domainauth.PermissionRead)},
	{Path: "/fiches/ajouter", Title: "Nouvelle fiche", Requirement: domainauth.RequirePermission(domainauth.PermissionWrite)},
	{Path: "/rapports", Title: "Rapports", Requirement: domainauth.RequirePermission(domainauth.PermissionReports)},
	{Path: "/utilisateurs", Title: "Utilisateurs", Requirement: domainauth.RequireRole(domainauth.RoleAdmin)},
	{Path: "/profil", Title: "Profil", Requirement: domainauth.None()},
}

// navigableRoutes lists the routes the session may open.
func navigableRoutes(s domainauth.SessionState) []Route {
	out := make([]Route, 0, len(Routes))
	for _, rt := range Routes {
		if domainauth.Decide(s, rt.Requirement).Verdict == domainauth.Allow {
			out = append(out, rt)
		}
	}
	return out
}

// RouterServices holds what the router needs.
type RouterServices struct {
	Auth SessionController
	// PendingRefresh is the Refresh header, in seconds, sent with the loading placeholder.
	PendingRefresh int
	Logger         *slog.Logger
}

// NewRouter builds the chi router. Every protected route runs behind Gate.
func NewRouter(services RouterServices) (http.Handler, error) {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer, err := NewRenderer(logger)
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		Auth:     services.Auth,
		Renderer: renderer,
		Logger:   logger,
		Refresh:  services.PendingRefresh,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Recover(logger))
	r.Use(Logging(logger))
	r.Use(chimw.CleanPath)

	r.Get("/healthz", healthHandler)
	r.Head("/healthz", healthHandler)

	r.Get("/", h.Landing)
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.LoginSubmit)
	r.Post("/logout", h.Logout)

	r.Get("/api/session", h.SessionStatus)
	r.Post("/api/session/check", h.SessionCheck)

	for _, rt := range Routes {
		r.With(h.Gate(rt.Requirement)).Get(rt.Path, h.Page(rt))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Message: "page introuvable"})
	})

	return r, nil
}
