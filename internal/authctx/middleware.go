package authctx

import (
	"context"
	"log/slog"
	"net/http"
)

type providerKey struct{}

func NewContext(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext returns the request's provider, or nil outside Middleware.
func FromContext(ctx context.Context) *Provider {
	p, _ := ctx.Value(providerKey{}).(*Provider)
	return p
}

// Middleware builds a provider from the session cookie and resolves it
// before the page handler runs. A cookie that no longer resolves is cleared.
func Middleware(svc Service, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}

			p := NewProvider(svc, token, logger)
			if st := p.Resolve(r.Context()); token != "" && st.Kind() == KindAnonymous {
				ClearCookie(w, cookieName)
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), p)))
		})
	}
}

func ClearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
