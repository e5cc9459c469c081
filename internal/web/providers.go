package web

import (
	"net/http"

	"module5/portal/internal/authctx"
	"module5/portal/internal/observability"
)

// Providers attaches request logging and the auth provider around pages.
// The navbar is drawn by the shared layout from that provider.
func Providers(deps Deps, pages http.Handler) http.Handler {
	deps = withDefaults(deps)
	withAuth := authctx.Middleware(deps.Auth, deps.CookieName, deps.Logger)(pages)
	return observability.RequestLogger(deps.Logger)(withAuth)
}
