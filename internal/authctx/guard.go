package authctx

import (
	"net/http"
	"strconv"
)

// Decision is what a guarded page does for a given State.
type Decision int

const (
	DecisionWait Decision = iota
	DecisionRedirect
	DecisionRender
)

// Decide maps Loading to Wait, Anonymous to Redirect and Authenticated to Render.
func Decide(s State) Decision {
	switch s.Kind() {
	case KindAuthenticated:
		return DecisionRender
	case KindAnonymous:
		return DecisionRedirect
	default:
		return DecisionWait
	}
}

// Navigator moves the client to another path.
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Guard gates protected content on a Provider, sending anonymous visitors to Landing.
type Guard struct {
	Provider *Provider
	Landing  string
}

// Evaluate reports whether protected content may render. An Anonymous state
// navigates to Landing once per transition; Loading does nothing.
func (g Guard) Evaluate(nav Navigator) bool {
	if g.Provider == nil {
		return false
	}
	switch Decide(g.Provider.State()) {
	case DecisionRender:
		return true
	case DecisionRedirect:
		if g.Provider.claimRedirect() {
			nav.Navigate(g.Landing)
		}
		return false
	default:
		return false
	}
}

// LoadingPlaceholder renders nothing and asks the browser to retry shortly.
func LoadingPlaceholder() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", strconv.Itoa(1))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusServiceUnavailable)
	})
}

// RequireAuth serves next only for Authenticated requests.
func RequireAuth(landing string, placeholder, next http.Handler) http.Handler {
	if placeholder == nil {
		placeholder = LoadingPlaceholder()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		navigated := false
		g := Guard{Provider: FromContext(r.Context()), Landing: landing}
		ok := g.Evaluate(NavigatorFunc(func(path string) {
			navigated = true
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, path, http.StatusFound)
		}))
		switch {
		case ok:
			next.ServeHTTP(w, r)
		case !navigated:
			placeholder.ServeHTTP(w, r)
		}
	})
}
