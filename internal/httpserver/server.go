package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"module5/portal/internal/audit"
	"module5/portal/internal/auth"
	"module5/portal/internal/config"
	"module5/portal/internal/observability"
)

type AuthService interface {
	Signup(ctx context.Context, in auth.SignupInput) (auth.User, error)
	Login(ctx context.Context, email, password string) (auth.Token, error)
	CurrentUser(ctx context.Context, token string) (auth.User, error)
	Logout(ctx context.Context, token string) error
}

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type AuditLogger interface {
	Record(e audit.Event) error
}

type Deps struct {
	Auth AuthService
	// DB is nil when the API runs without a database.
	DB     Pinger
	Audit  AuditLogger
	Logger *slog.Logger
}

type Server struct {
	httpServer *http.Server
}

// New wraps handler in an http.Server. The API and the web front end share it.
func New(cfg config.HTTPConfig, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewHandler builds the JSON API. Errors are {"detail": "..."}.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	// Routes sit on the root router so a wrong method answers 405, not 404.
	r.HandleFunc("/api/health", healthHandler(deps)).Methods(http.MethodGet)
	registerAuthHandlers(r, deps)

	return observability.RequestLogger(deps.Logger)(r)
}

const healthCheckTimeout = 2 * time.Second

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := deps.DB.PingContext(ctx); err != nil {
				deps.Logger.Warn("health check database ping failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "database unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "API is running"})
	}
}

func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, detail)
}

func auditReq(a AuditLogger, logger *slog.Logger, r *http.Request, e audit.Event) {
	if a == nil {
		return
	}
	e.RequestID = observability.RequestIDFromContext(r.Context())
	e.RemoteIP = observability.ClientIP(r)
	e.UserAgent = strings.TrimSpace(r.UserAgent())
	if err := a.Record(e); err != nil {
		logger.Warn("audit record failed", "action", e.Action, "error", err)
	}
}
