// Package authctx holds the signed-in state of one browser request and the
// guard that gates pages on it.
package authctx

import "module5/portal/internal/apiclient"

// Kind tags which of the three auth states a State is in.
type Kind int

const (
	KindLoading Kind = iota
	KindAuthenticated
	KindAnonymous
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindAuthenticated:
		return "authenticated"
	case KindAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is Loading, Authenticated(user) or Anonymous. The user is only
// reachable when the kind is Authenticated.
type State struct {
	kind Kind
	user apiclient.User
}

// Loading is the state before the stored token has been checked.
func Loading() State { return State{kind: KindLoading} }

// Authenticated carries the signed-in user.
func Authenticated(u apiclient.User) State { return State{kind: KindAuthenticated, user: u} }

// Anonymous means no valid session.
func Anonymous() State { return State{kind: KindAnonymous} }

func (s State) Kind() Kind { return s.kind }

func (s State) User() (apiclient.User, bool) {
	if s.kind != KindAuthenticated {
		return apiclient.User{}, false
	}
	return s.user, true
}

func (s State) IsLoading() bool { return s.kind == KindLoading }

func (s State) IsAuthenticated() bool { return s.kind == KindAuthenticated }
