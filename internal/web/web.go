// Package web serves the browser pages. Every page reads the signed-in state
// from the authctx provider attached by Providers.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"module5/portal/internal/apiclient"
	"module5/portal/internal/authctx"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home", "dashboard", "login", "signup"}

const (
	landingPath   = "/"
	dashboardPath = "/dashboard"

	defaultCookieName    = "access_token"
	defaultHealthTimeout = 2 * time.Second
)

type HealthChecker interface {
	Health(ctx context.Context) (apiclient.HealthStatus, error)
}

type Registrar interface {
	Signup(ctx context.Context, in apiclient.SignupRequest) (apiclient.User, error)
}

type Deps struct {
	Auth          authctx.Service
	Accounts      Registrar
	Health        HealthChecker
	Logger        *slog.Logger
	CookieName    string
	CookieSecure  bool
	Location      *time.Location
	HealthTimeout time.Duration
}

type handler struct {
	health        HealthChecker
	accounts      Registrar
	logger        *slog.Logger
	cookieName    string
	cookieSecure  bool
	loc           *time.Location
	healthTimeout time.Duration
	pages         map[string]*template.Template
}

// NewHandler returns the full page tree wrapped in Providers.
func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Auth == nil || deps.Accounts == nil || deps.Health == nil {
		return nil, fmt.Errorf("auth, accounts and health backends are required")
	}
	deps = withDefaults(deps)

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	h := &handler{
		health:        deps.Health,
		accounts:      deps.Accounts,
		logger:        deps.Logger,
		cookieName:    deps.CookieName,
		cookieSecure:  deps.CookieSecure,
		loc:           deps.Location,
		healthTimeout: deps.HealthTimeout,
		pages:         pages,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", h.home).Methods(http.MethodGet)
	r.Handle(dashboardPath, authctx.RequireAuth(landingPath, authctx.LoadingPlaceholder(), http.HandlerFunc(h.dashboard))).
		Methods(http.MethodGet)
	r.HandleFunc("/login", h.loginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/signup", h.signupForm).Methods(http.MethodGet)
	r.HandleFunc("/signup", h.signup).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.logout).Methods(http.MethodPost)

	return Providers(deps, r), nil
}

func withDefaults(deps Deps) Deps {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.CookieName == "" {
		deps.CookieName = defaultCookieName
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.HealthTimeout <= 0 {
		deps.HealthTimeout = defaultHealthTimeout
	}
	return deps
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// navView is the navbar's read of the auth state.
type navView struct {
	Loading       bool
	Authenticated bool
	Username      string
}

func navFor(p *authctx.Provider) navView {
	if p == nil {
		return navView{Loading: true}
	}
	st := p.State()
	if u, ok := st.User(); ok {
		return navView{Authenticated: true, Username: u.Username}
	}
	return navView{Loading: st.IsLoading()}
}

type pageData struct {
	Title   string
	Nav     navView
	Content any
}

func (h *handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, content any) {
	t, ok := h.pages[page]
	if !ok {
		h.logger.Error("unknown page template", "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	data := pageData{Title: title, Nav: navFor(authctx.FromContext(r.Context())), Content: content}
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("render page failed", "page", page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
