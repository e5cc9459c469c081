package authctx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"module5/portal/internal/apiclient"
)

// Service is the backend surface the provider needs. *apiclient.Client satisfies it.
type Service interface {
	CurrentUser(ctx context.Context, token string) (apiclient.User, error)
	Login(ctx context.Context, email, password string) (apiclient.Token, error)
	Logout(ctx context.Context, token string) error
}

// Provider owns the auth state for one browser session. It starts Loading,
// settles once, and afterwards only moves between Authenticated and Anonymous.
type Provider struct {
	svc    Service
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	token      string
	resolved   bool
	redirected bool
}

// NewProvider starts Loading with the token read from the request, if any.
func NewProvider(svc Service, token string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{svc: svc, logger: logger, state: Loading(), token: token}
}

// State is the current snapshot.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Token is the access token currently held, empty when anonymous.
func (p *Provider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// Resolve asks the backend who owns the token, once. Every failure,
// including a cancelled ctx, settles to Anonymous. The lock is not held
// during the backend call; a concurrent caller sees Loading until it returns.
func (p *Provider) Resolve(ctx context.Context) State {
	p.mu.Lock()
	if p.resolved {
		defer p.mu.Unlock()
		return p.state
	}
	p.resolved = true
	token := p.token
	if token == "" {
		defer p.mu.Unlock()
		p.setLocked(Anonymous())
		return p.state
	}
	p.mu.Unlock()

	u, err := p.svc.CurrentUser(ctx, token)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.IsLoading() {
		// Login or Logout settled the state while the call was in flight.
		return p.state
	}
	if err != nil {
		p.logger.Debug("session resolution failed", "error", err)
		p.token = ""
		p.setLocked(Anonymous())
		return p.state
	}
	p.setLocked(Authenticated(u))
	return p.state
}

// Login exchanges credentials for a token and resolves it. On failure the
// state is left as it was and a token that could not be resolved is revoked.
func (p *Provider) Login(ctx context.Context, email, password string) error {
	tok, err := p.svc.Login(ctx, email, password)
	if err != nil {
		return err
	}
	u, err := p.svc.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		if lerr := p.svc.Logout(ctx, tok.AccessToken); lerr != nil {
			p.logger.Warn("revoke unresolved session failed", "error", lerr)
		}
		return fmt.Errorf("resolve new session: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved = true
	p.token = tok.AccessToken
	p.setLocked(Authenticated(u))
	return nil
}

// Logout always ends Anonymous. Revoking the token on the backend is best effort.
func (p *Provider) Logout(ctx context.Context) {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()

	if token != "" {
		if err := p.svc.Logout(ctx, token); err != nil {
			p.logger.Warn("backend logout failed", "error", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved = true
	p.token = ""
	p.setLocked(Anonymous())
}

func (p *Provider) setLocked(s State) {
	if s.kind == KindLoading {
		return
	}
	if s.kind != p.state.kind {
		p.redirected = false
	}
	p.state = s
}

// claimRedirect reports whether the caller is the first to redirect since
// the provider last became Anonymous.
func (p *Provider) claimRedirect() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.kind != KindAnonymous || p.redirected {
		return false
	}
	p.redirected = true
	return true
}
