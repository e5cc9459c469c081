package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"module5/portal/internal/apiclient"
	"module5/portal/internal/observability"
)

// fakeBackend plays the API: one account, tokens revoked on logout.
type fakeBackend struct {
	mu          sync.Mutex
	healthFn    func(ctx context.Context) (apiclient.HealthStatus, error)
	healthCalls int
	tokens      map[string]bool
	signupErr   error
	signups     []apiclient.SignupRequest
	user        apiclient.User
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tokens: map[string]bool{},
		user: apiclient.User{
			ID:        1,
			Username:  "kim",
			Email:     "kim@example.com",
			IsActive:  true,
			CreatedAt: "2024-01-15T10:30:00Z",
		},
		healthFn: func(context.Context) (apiclient.HealthStatus, error) {
			return apiclient.HealthStatus{Status: "ok", Message: "API is running"}, nil
		},
	}
}

func (f *fakeBackend) Health(ctx context.Context) (apiclient.HealthStatus, error) {
	f.mu.Lock()
	f.healthCalls++
	fn := f.healthFn
	f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeBackend) CurrentUser(_ context.Context, token string) (apiclient.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.tokens[token] {
		return apiclient.User{}, &apiclient.APIError{StatusCode: http.StatusUnauthorized, Detail: "Could not validate credentials"}
	}
	return f.user, nil
}

func (f *fakeBackend) Login(_ context.Context, email, password string) (apiclient.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if email != f.user.Email || password != "secret123" {
		return apiclient.Token{}, &apiclient.APIError{StatusCode: http.StatusUnauthorized, Detail: "Incorrect email or password"}
	}
	f.tokens["tok-1"] = true
	return apiclient.Token{AccessToken: "tok-1", TokenType: "bearer"}, nil
}

func (f *fakeBackend) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

func (f *fakeBackend) Signup(_ context.Context, in apiclient.SignupRequest) (apiclient.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signups = append(f.signups, in)
	if f.signupErr != nil {
		return apiclient.User{}, f.signupErr
	}
	return apiclient.User{ID: 2, Username: in.Username, Email: in.Email, IsActive: true}, nil
}

func newTestHandler(t *testing.T, be *fakeBackend, loc *time.Location) http.Handler {
	t.Helper()
	h, err := NewHandler(Deps{
		Auth:          be,
		Accounts:      be,
		Health:        be,
		Logger:        observability.Discard(),
		Location:      loc,
		HealthTimeout: time.Second,
	})
	require.NoError(t, err)
	return h
}

func do(h http.Handler, method, target string, form url.Values, cookie string) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == defaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", defaultCookieName)
	return nil
}

func TestNewHandlerRequiresBackends(t *testing.T) {
	_, err := NewHandler(Deps{})
	assert.Error(t, err)
}

func TestHomeProbesHealthOncePerRequest(t *testing.T) {
	be := newFakeBackend()
	h := newTestHandler(t, be, time.UTC)

	rec := do(h, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, be.healthCalls)
	body := rec.Body.String()
	assert.Contains(t, body, "연결됨")
	assert.Contains(t, body, "API is running")
	assert.Contains(t, body, `href="/signup"`)
	assert.NotContains(t, body, "환영합니다")

	do(h, http.MethodGet, "/", nil, "")
	assert.Equal(t, 2, be.healthCalls)
}

func TestHomeHealthFailureUsesFallback(t *testing.T) {
	be := newFakeBackend()
	be.healthFn = func(context.Context) (apiclient.HealthStatus, error) {
		return apiclient.HealthStatus{}, errors.New("connection refused")
	}
	h := newTestHandler(t, be, time.UTC)

	rec := do(h, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, be.healthCalls, "probe is not retried")
	assert.Contains(t, rec.Body.String(), "연결 실패")
	assert.Contains(t, rec.Body.String(), healthFallbackMessage)
}

func TestHomeHealthNonOKStatus(t *testing.T) {
	be := newFakeBackend()
	be.healthFn = func(context.Context) (apiclient.HealthStatus, error) {
		return apiclient.HealthStatus{Status: "error", Message: "database unavailable"}, nil
	}
	rec := do(newTestHandler(t, be, time.UTC), http.MethodGet, "/", nil, "")
	assert.Contains(t, rec.Body.String(), "연결 실패")
	assert.Contains(t, rec.Body.String(), "database unavailable")
}

func TestHomeHealthProbeHasDeadline(t *testing.T) {
	be := newFakeBackend()
	be.healthFn = func(ctx context.Context) (apiclient.HealthStatus, error) {
		if _, ok := ctx.Deadline(); !ok {
			return apiclient.HealthStatus{}, errors.New("no deadline")
		}
		return apiclient.HealthStatus{Status: "ok", Message: "API is running"}, nil
	}
	rec := do(newTestHandler(t, be, time.UTC), http.MethodGet, "/", nil, "")
	assert.Contains(t, rec.Body.String(), "연결됨")
}

func TestHomeWelcomesSignedInUser(t *testing.T) {
	be := newFakeBackend()
	be.tokens["tok-1"] = true
	rec := do(newTestHandler(t, be, time.UTC), http.MethodGet, "/", nil, "tok-1")
	body := rec.Body.String()
	assert.Contains(t, body, "환영합니다, kim님!")
	assert.Contains(t, body, "대시보드로 이동")
}

func TestDashboardRedirectsAnonymous(t *testing.T) {
	rec := do(newTestHandler(t, newFakeBackend(), time.UTC), http.MethodGet, "/dashboard", nil, "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestDashboardShowsAccount(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	be := newFakeBackend()
	be.tokens["tok-1"] = true

	rec := do(newTestHandler(t, be, seoul), http.MethodGet, "/dashboard", nil, "tok-1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "kim@example.com")
	assert.Contains(t, body, "활성")
	assert.NotContains(t, body, "비활성")
	assert.Contains(t, body, "2024년 1월 15일 오후 07:30")
}

func TestDashboardMissingDate(t *testing.T) {
	be := newFakeBackend()
	be.user.CreatedAt = ""
	be.user.IsActive = false
	be.tokens["tok-1"] = true

	rec := do(newTestHandler(t, be, time.UTC), http.MethodGet, "/dashboard", nil, "tok-1")
	body := rec.Body.String()
	assert.Contains(t, body, "비활성")
	assert.Contains(t, body, "<dd>-</dd>")
}

func TestLoginLogoutFlow(t *testing.T) {
	be := newFakeBackend()
	h := newTestHandler(t, be, time.UTC)

	rec := do(h, http.MethodPost, "/login", url.Values{"email": {"kim@example.com"}, "password": {"secret123"}}, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	c := sessionCookie(t, rec)
	assert.Equal(t, "tok-1", c.Value)
	assert.True(t, c.HttpOnly)

	rec = do(h, http.MethodGet, "/dashboard", nil, c.Value)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/login", nil, c.Value)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = do(h, http.MethodPost, "/logout", nil, c.Value)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)

	rec = do(h, http.MethodGet, "/dashboard", nil, c.Value)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLoginRejected(t *testing.T) {
	h := newTestHandler(t, newFakeBackend(), time.UTC)

	rec := do(h, http.MethodPost, "/login", url.Values{"email": {"kim@example.com"}, "password": {"nope"}}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), msgInvalidLogin)
	assert.Contains(t, rec.Body.String(), `value="kim@example.com"`)

	rec = do(h, http.MethodPost, "/login", url.Values{"email": {""}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignup(t *testing.T) {
	be := newFakeBackend()
	h := newTestHandler(t, be, time.UTC)

	form := url.Values{"username": {"lee"}, "email": {"lee@example.com"}, "password": {"secret123"}}
	rec := do(h, http.MethodPost, "/signup", form, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?registered=1", rec.Header().Get("Location"))
	require.Len(t, be.signups, 1)
	assert.Equal(t, "lee", be.signups[0].Username)

	rec = do(h, http.MethodGet, "/login?registered=1", nil, "")
	assert.Contains(t, rec.Body.String(), "회원가입이 완료되었습니다")

	be.signupErr = &apiclient.APIError{StatusCode: http.StatusBadRequest, Detail: "Email already registered"}
	rec = do(h, http.MethodPost, "/signup", form, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already registered")

	be.signupErr = errors.New("dial tcp: connection refused")
	rec = do(h, http.MethodPost, "/signup", form, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), msgBackendFailure)
}

func TestNavbarReflectsState(t *testing.T) {
	be := newFakeBackend()
	be.tokens["tok-1"] = true
	h := newTestHandler(t, be, time.UTC)

	rec := do(h, http.MethodGet, "/login", nil, "")
	assert.Contains(t, rec.Body.String(), `action="/login"`)
	assert.NotContains(t, rec.Body.String(), `action="/logout"`)

	rec = do(h, http.MethodGet, "/", nil, "tok-1")
	assert.Contains(t, rec.Body.String(), `action="/logout"`)
}
