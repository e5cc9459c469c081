package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"module5/portal/internal/apiclient"
	"module5/portal/internal/audit"
	"module5/portal/internal/auth"
	"module5/portal/internal/config"
	"module5/portal/internal/httpserver"
	"module5/portal/internal/observability"
	"module5/portal/internal/web"
)

const sessionPurgeInterval = 10 * time.Minute

type App struct {
	name            string
	addr            string
	shutdownTimeout time.Duration
	log             *slog.Logger
	handler         http.Handler
	server          *httpserver.Server
	background      []func(ctx context.Context)
	closers         []func() error
}

// NewAPI wires the backend: database, migrations, stores, auth and the JSON API.
func NewAPI(ctx context.Context, cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	return newAPI(ctx, cfg, logger)
}

func newAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		name:            "api",
		addr:            cfg.HTTP.Addr,
		shutdownTimeout: cfg.HTTP.ShutdownTimeout,
		log:             logger,
	}

	db, err := OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	var pinger httpserver.Pinger
	if db != nil {
		a.closers = append(a.closers, db.Close)
		pinger = db
		if err := Migrate(ctx, db, cfg.Database.Driver); err != nil {
			_ = a.Close()
			return nil, err
		}
		logger.Info("database migrated", "driver", cfg.Database.Driver)
	}

	stores, err := OpenStores(ctx, cfg, db, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, stores.Close)

	authService, err := auth.NewService(stores.Users, auth.ServiceConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
		Sessions:   stores.Sessions,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("create auth service: %w", err)
	}
	if cfg.Auth.JWTSecret == "change-me-in-production" {
		logger.Warn("AUTH_JWT_SECRET is the built-in default")
	}

	a.handler = httpserver.NewHandler(httpserver.Deps{
		Auth:   authService,
		DB:     pinger,
		Audit:  audit.NewLogger(cfg.AuditLogFile),
		Logger: logger,
	})
	a.server = httpserver.New(cfg.HTTP, a.handler)
	a.background = append(a.background, func(ctx context.Context) {
		purgeSessions(ctx, authService, sessionPurgeInterval, logger)
	})
	return a, nil
}

// NewWeb wires the browser front end against the backend API.
func NewWeb(cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	return newWeb(cfg, logger)
}

func newWeb(cfg config.Config, logger *slog.Logger) (*App, error) {
	loc, err := time.LoadLocation(cfg.Web.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Web.Timezone, err)
	}
	client, err := apiclient.New(cfg.Web.BackendURL, cfg.Web.BackendTimeout)
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	handler, err := web.NewHandler(web.Deps{
		Auth:          client,
		Accounts:      client,
		Health:        client,
		Logger:        logger,
		CookieName:    cfg.Web.CookieName,
		CookieSecure:  cfg.Web.CookieSecure,
		Location:      loc,
		HealthTimeout: cfg.Web.HealthTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create web handler: %w", err)
	}

	httpCfg := cfg.HTTP
	httpCfg.Addr = cfg.Web.Addr
	return &App{
		name:            "web",
		addr:            cfg.Web.Addr,
		shutdownTimeout: cfg.HTTP.ShutdownTimeout,
		log:             logger,
		handler:         handler,
		server:          httpserver.New(httpCfg, handler),
	}, nil
}

type sessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

func purgeSessions(ctx context.Context, p sessionPurger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Warn("purge expired sessions failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions purged", "count", n)
			}
		}
	}
}

func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func (a *App) Run(ctx context.Context) error {
	defer func() { _ = a.Close() }()

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	for _, fn := range a.background {
		go fn(bgCtx)
	}

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "app", a.name, "addr", a.addr)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received", "app", a.name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}
