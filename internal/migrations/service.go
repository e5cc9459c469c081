// Package migrations applies the embedded schema migrations with goose.
package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var embedded embed.FS

type Status struct {
	Version  int64  `json:"version"`
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
	Applied  bool   `json:"applied"`
}

type Service struct {
	db      *sql.DB
	dialect string
	dir     string
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// NewService binds the migrations for driver ("postgres" or "sqlite") to db.
func NewService(db *sql.DB, driver string) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &Service{db: db, dir: driver}
	switch driver {
	case "postgres":
		s.dialect = "postgres"
	case "sqlite":
		s.dialect = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported migration driver %q", driver)
	}
	return s, nil
}

func (s *Service) Up(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.prepareLocked(); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, s.db, s.dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Service) Status(ctx context.Context) ([]Status, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.prepareLocked(); err != nil {
		return nil, err
	}
	migs, err := goose.CollectMigrations(s.dir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("collect migrations: %w", err)
	}
	current, err := goose.GetDBVersionContext(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("read migration version: %w", err)
	}

	out := make([]Status, 0, len(migs))
	for _, m := range migs {
		name := path.Base(m.Source)
		checksum, err := fileSHA256(path.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("hash migration %s: %w", name, err)
		}
		out = append(out, Status{
			Version:  m.Version,
			Name:     name,
			Checksum: checksum,
			Applied:  m.Version <= current,
		})
	}
	return out, nil
}

func (s *Service) prepareLocked() error {
	goose.SetBaseFS(embedded)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(s.dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	return nil
}

func fileSHA256(name string) (string, error) {
	b, err := fs.ReadFile(embedded, name)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
