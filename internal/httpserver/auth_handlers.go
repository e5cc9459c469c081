package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"module5/portal/internal/audit"
	"module5/portal/internal/auth"
)

const (
	detailBadCredentials = "Incorrect email or password"
	detailBadToken       = "Could not validate credentials"
	detailEmailTaken     = "Email already registered"
	detailUsernameTaken  = "Username already taken"
	detailBadBody        = "invalid request body"

	maxRequestBody = 1 << 16
)

func registerAuthHandlers(r *mux.Router, deps Deps) {
	r.HandleFunc("/api/auth/signup", signupHandler(deps)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", loginHandler(deps)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", meHandler(deps)).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/logout", logoutHandler(deps)).Methods(http.MethodPost)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst)
}

func signupHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		var req auth.SignupInput
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, detailBadBody)
			return
		}

		u, err := deps.Auth.Signup(r.Context(), req)
		if err != nil {
			status, detail := signupFailure(err)
			if status == http.StatusInternalServerError {
				deps.Logger.Error("signup failed", "error", err)
			}
			auditReq(deps.Audit, deps.Logger, r, audit.Event{Actor: req.Username, Action: "auth.signup", Outcome: audit.OutcomeFailed, Detail: detail})
			writeError(w, status, detail)
			return
		}
		auditReq(deps.Audit, deps.Logger, r, audit.Event{Actor: u.Username, Action: "auth.signup", Outcome: audit.OutcomeSuccess})
		writeJSON(w, http.StatusCreated, u)
	}
}

func signupFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusBadRequest, detailEmailTaken
	case errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusBadRequest, detailUsernameTaken
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusUnprocessableEntity, strings.TrimPrefix(err.Error(), auth.ErrInvalidInput.Error()+": ")
	default:
		return http.StatusInternalServerError, "signup failed"
	}
}

func loginHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, detailBadBody)
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			writeError(w, http.StatusUnprocessableEntity, "email and password are required")
			return
		}

		tok, err := deps.Auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				auditReq(deps.Audit, deps.Logger, r, audit.Event{Actor: req.Email, Action: "auth.login", Outcome: audit.OutcomeFailed, Detail: "invalid credentials"})
				writeUnauthorized(w, detailBadCredentials)
				return
			}
			deps.Logger.Error("login failed", "error", err)
			auditReq(deps.Audit, deps.Logger, r, audit.Event{Actor: req.Email, Action: "auth.login", Outcome: audit.OutcomeFailed, Detail: err.Error()})
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		auditReq(deps.Audit, deps.Logger, r, audit.Event{Actor: req.Email, Action: "auth.login", Outcome: audit.OutcomeSuccess})
		writeJSON(w, http.StatusOK, tok)
	}
}

// requireUser resolves the bearer token or writes the 401 itself.
func requireUser(w http.ResponseWriter, r *http.Request, deps Deps) (auth.User, string, bool) {
	if deps.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return auth.User{}, "", false
	}
	token, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeUnauthorized(w, "Not authenticated")
		return auth.User{}, "", false
	}
	u, err := deps.Auth.CurrentUser(r.Context(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			deps.Logger.Error("resolve current user failed", "error", err)
		}
		writeUnauthorized(w, detailBadToken)
		return auth.User{}, "", false
	}
	return u, token, true
}

func meHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _, ok := requireUser(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func logoutHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, token, ok := requireUser(w, r, deps)
		if !ok {
			return
		}
		if err := deps.Auth.Logout(r.Context(), token); err != nil {
			auditReq(deps.Audit, deps.Logger, r, audit.Event{Actor: u.Username, Action: "auth.logout", Outcome: audit.OutcomeFailed, Detail: err.Error()})
			if errors.Is(err, auth.ErrInvalidToken) {
				writeUnauthorized(w, detailBadToken)
				return
			}
			deps.Logger.Error("logout failed", "error", err)
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
		auditReq(deps.Audit, deps.Logger, r, audit.Event{Actor: u.Username, Action: "auth.logout", Outcome: audit.OutcomeSuccess})
		w.WriteHeader(http.StatusNoContent)
	}
}
