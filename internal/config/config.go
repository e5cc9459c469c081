package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"

	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
	SessionBackendSQL    = "sql"
)

type Config struct {
	HTTP         HTTPConfig
	Web          WebConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Session      SessionConfig
	Log          LogConfig
	AuditLogFile string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type WebConfig struct {
	Addr           string
	BackendURL     string
	BackendTimeout time.Duration
	HealthTimeout  time.Duration
	CookieName     string
	CookieSecure   bool
	Timezone       string
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	BcryptCost    int
	UserStateFile string
}

type SessionConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the configuration from the environment. A .env file (ENV_FILE,
// default ".env") is applied first when present; real environment variables win.
func Load() (Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8000"),
			ReadTimeout:     time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SEC", 10)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
		},
		Web: WebConfig{
			Addr:           getEnv("WEB_ADDR", ":3000"),
			BackendURL:     getEnv("WEB_BACKEND_URL", "http://localhost:8000"),
			BackendTimeout: time.Duration(getEnvInt("WEB_BACKEND_TIMEOUT_MS", 5000)) * time.Millisecond,
			HealthTimeout:  time.Duration(getEnvInt("WEB_HEALTH_TIMEOUT_MS", 2000)) * time.Millisecond,
			CookieName:     getEnv("WEB_SESSION_COOKIE", "access_token"),
			CookieSecure:   getEnvBool("WEB_COOKIE_SECURE", false),
			Timezone:       getEnv("WEB_TIMEZONE", "Asia/Seoul"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
			URL:    getEnv("DATABASE_URL", "file:./data/portal.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("AUTH_JWT_SECRET", "change-me-in-production"),
			TokenTTL:      time.Duration(getEnvInt("AUTH_TOKEN_TTL_MIN", 30)) * time.Minute,
			BcryptCost:    getEnvInt("AUTH_BCRYPT_COST", 10),
			UserStateFile: getEnv("AUTH_USER_STATE_FILE", "./data/auth_users.json"),
		},
		Session: SessionConfig{
			Backend:       strings.ToLower(getEnv("SESSION_BACKEND", "")),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			KeyPrefix:     getEnv("SESSION_KEY_PREFIX", "portal:session:"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		AuditLogFile: getEnv("AUDIT_LOG_FILE", "./data/audit.log"),
	}

	if cfg.Session.Backend == "" {
		cfg.Session.Backend = SessionBackendSQL
		if cfg.Database.Driver == DriverNone {
			cfg.Session.Backend = SessionBackendMemory
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if c.Web.Addr == "" {
		return fmt.Errorf("WEB_ADDR must not be empty")
	}
	if c.Web.BackendURL == "" {
		return fmt.Errorf("WEB_BACKEND_URL must not be empty")
	}
	if c.Web.BackendTimeout <= 0 {
		return fmt.Errorf("WEB_BACKEND_TIMEOUT_MS must be > 0")
	}
	if c.Web.HealthTimeout <= 0 {
		return fmt.Errorf("WEB_HEALTH_TIMEOUT_MS must be > 0")
	}
	if c.Web.CookieName == "" {
		return fmt.Errorf("WEB_SESSION_COOKIE must not be empty")
	}
	if c.Web.Timezone == "" {
		return fmt.Errorf("WEB_TIMEZONE must not be empty")
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL must not be empty for driver %q", c.Database.Driver)
		}
	case DriverNone:
		if c.Auth.UserStateFile == "" {
			return fmt.Errorf("AUTH_USER_STATE_FILE must not be empty when DATABASE_DRIVER=none")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of postgres, sqlite, none; got %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL_MIN must be > 0")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be between 4 and 31")
	}

	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR must not be empty when SESSION_BACKEND=redis")
		}
	case SessionBackendSQL:
		if c.Database.Driver == DriverNone {
			return fmt.Errorf("SESSION_BACKEND=sql requires a database driver")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be one of memory, redis, sql; got %q", c.Session.Backend)
	}
	return nil
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
