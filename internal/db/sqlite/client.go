package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iamwavecut/hustlebot/resources"
)

const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

type sqliteClient struct {
	db    *sqlx.DB
	mutex sync.RWMutex
}

// NewSQLiteClient opens the database file in dir and applies pending migrations.
func NewSQLiteClient(ctx context.Context, dir, file string) (*sqliteClient, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dbx, err := sqlx.ConnectContext(ctx, "sqlite", "file:"+filepath.Join(dir, file)+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	dbx.SetMaxOpenConns(8)

	n, err := applyMigrations(dbx)
	if err != nil {
		_ = dbx.Close()
		return nil, err
	}
	if n > 0 {
		log.WithField("count", n).Info("applied migrations")
	}
	return &sqliteClient{db: dbx}, nil
}

func applyMigrations(dbx *sqlx.DB) (int, error) {
	source := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	if _, _, err := migrate.PlanMigration(dbx.DB, "sqlite3", source, migrate.Up, 0); err != nil {
		return 0, fmt.Errorf("plan migrations: %w", err)
	}
	n, err := migrate.Exec(dbx.DB, "sqlite3", source, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return n, nil
}

func (s *sqliteClient) Close() error {
	return s.db.Close()
}
