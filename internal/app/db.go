package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"module5/portal/internal/auth"
	"module5/portal/internal/config"
	"module5/portal/internal/migrations"
)

// OpenDatabase opens and pings the configured database. It returns a nil DB
// for DATABASE_DRIVER=none.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	var driverName string
	switch cfg.Driver {
	case config.DriverNone:
		return nil, nil
	case config.DriverPostgres:
		driverName = "postgres"
	case config.DriverSQLite:
		driverName = "sqlite"
		if err := ensureSQLiteDir(cfg.URL); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// One writer at a time; also keeps :memory: databases on a single connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	return nil
}

// Migrate applies all pending migrations for the configured driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	m, err := migrations.NewService(db, driver)
	if err != nil {
		return fmt.Errorf("create migration service: %w", err)
	}
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

type Stores struct {
	Users    auth.UserStore
	Sessions auth.SessionStore
	closers  []func() error
}

func (s Stores) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenStores picks user and session stores from the configuration. db may be
// nil only when no database is configured.
func OpenStores(ctx context.Context, cfg config.Config, db *sql.DB, logger *slog.Logger) (Stores, error) {
	var stores Stores
	dialect := auth.Dialect(cfg.Database.Driver)

	var err error
	if db != nil {
		stores.Users, err = auth.NewSQLUserStore(db, dialect)
	} else {
		stores.Users, err = auth.NewFileUserStore(cfg.Auth.UserStateFile)
	}
	if err != nil {
		return Stores{}, fmt.Errorf("create user store: %w", err)
	}

	switch cfg.Session.Backend {
	case config.SessionBackendSQL:
		if db == nil {
			return Stores{}, fmt.Errorf("sql session store requires a database")
		}
		stores.Sessions, err = auth.NewSQLSessionStore(db, dialect)
		if err != nil {
			return Stores{}, fmt.Errorf("create sql session store: %w", err)
		}
	case config.SessionBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return Stores{}, fmt.Errorf("ping redis: %w", err)
		}
		stores.closers = append(stores.closers, rdb.Close)
		stores.Sessions, err = auth.NewRedisSessionStore(rdb, cfg.Session.KeyPrefix)
		if err != nil {
			_ = stores.Close()
			return Stores{}, fmt.Errorf("create redis session store: %w", err)
		}
	default:
		logger.Warn("sessions are kept in memory and are lost on restart")
		stores.Sessions = auth.NewInMemorySessionStore()
	}

	logger.Info("stores ready", "database", cfg.Database.Driver, "sessions", cfg.Session.Backend)
	return stores, nil
}
