package httpx

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	viewLogin     = "login"
	viewPage      = "page"
	viewPending   = "pending"
	viewForbidden = "forbidden"
)

// Renderer renders the embedded page templates inside the shared layout.
type Renderer struct {
	views  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses every view once.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	views := make(map[string]*template.Template, 4)
	for _, name := range []string{viewLogin, viewPage, viewPending, viewForbidden} {
		t, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		views[name] = t
	}
	return &Renderer{views: views, logger: logger}, nil
}

// viewData is what every template sees.
type viewData struct {
	Title       string
	Identity    *domainauth.Identity
	Roles       []string
	Nav         []Route
	Permissions []string

	// login form
	Error string
	Email string
	From  string
}

// newViewData fills the header fields from the session.
func newViewData(title string, s domainauth.SessionState) viewData {
	d := viewData{Title: title}
	if s.Identity == nil {
		return d
	}
	id := s.Identity.Clone()
	d.Identity = &id
	for _, r := range id.Roles {
		d.Roles = append(d.Roles, r.DisplayName())
	}
	d.Nav = navigableRoutes(s)
	return d
}

// Render executes view into a buffer so template errors never produce half pages.
func (r *Renderer) Render(w http.ResponseWriter, status int, view string, data viewData) {
	t, ok := r.views[view]
	if !ok {
		r.logger.Error("unknown view", "view", view)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template render failed", "view", view, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
