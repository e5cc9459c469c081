package web

import (
	"errors"
	"net/http"
	"strings"

	"module5/portal/internal/apiclient"
	"module5/portal/internal/authctx"
)

const (
	msgInvalidLogin   = "이메일 또는 비밀번호가 올바르지 않습니다"
	msgMissingLogin   = "이메일과 비밀번호를 입력하세요"
	msgMissingSignup  = "모든 항목을 입력하세요"
	msgBackendFailure = "백엔드 연결 실패"
)

type loginView struct {
	Email      string
	Error      string
	Registered bool
}

type signupView struct {
	Username string
	Email    string
	Error    string
}

func (h *handler) authenticated(r *http.Request) bool {
	p := authctx.FromContext(r.Context())
	return p != nil && p.State().IsAuthenticated()
}

func (h *handler) loginForm(w http.ResponseWriter, r *http.Request) {
	if h.authenticated(r) {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login", "로그인", loginView{Registered: r.URL.Query().Get("registered") == "1"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if h.authenticated(r) {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		h.render(w, r, http.StatusBadRequest, "login", "로그인", loginView{Email: email, Error: msgMissingLogin})
		return
	}

	p := authctx.FromContext(r.Context())
	if p == nil {
		h.render(w, r, http.StatusServiceUnavailable, "login", "로그인", loginView{Email: email, Error: msgBackendFailure})
		return
	}
	if err := p.Login(r.Context(), email, password); err != nil {
		status, msg := loginFailure(err)
		h.logger.Info("login rejected", "status", status, "error", err)
		h.render(w, r, status, "login", "로그인", loginView{Email: email, Error: msg})
		return
	}

	h.setSessionCookie(w, p.Token())
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func loginFailure(err error) (int, string) {
	switch apiclient.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusBadRequest, http.StatusUnprocessableEntity:
		return http.StatusUnauthorized, msgInvalidLogin
	default:
		return http.StatusBadGateway, msgBackendFailure
	}
}

func (h *handler) signupForm(w http.ResponseWriter, r *http.Request) {
	if h.authenticated(r) {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "signup", "회원가입", signupView{})
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	if h.authenticated(r) {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	in := apiclient.SignupRequest{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	view := signupView{Username: in.Username, Email: in.Email}
	if in.Username == "" || in.Email == "" || in.Password == "" {
		view.Error = msgMissingSignup
		h.render(w, r, http.StatusBadRequest, "signup", "회원가입", view)
		return
	}

	if _, err := h.accounts.Signup(r.Context(), in); err != nil {
		status := http.StatusBadGateway
		view.Error = msgBackendFailure
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = apiErr.StatusCode
			if apiErr.Detail != "" {
				view.Error = apiErr.Detail
			}
		}
		h.logger.Info("signup rejected", "status", status, "error", err)
		h.render(w, r, status, "signup", "회원가입", view)
		return
	}
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if p := authctx.FromContext(r.Context()); p != nil {
		p.Logout(r.Context())
	}
	authctx.ClearCookie(w, h.cookieName)
	http.Redirect(w, r, landingPath, http.StatusSeeOther)
}

func (h *handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
