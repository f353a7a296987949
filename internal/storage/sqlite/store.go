package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"bugtracker/internal/storage"
	"bugtracker/internal/storage/sqlstore"
)

// Dialect is the SQLite flavour of the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:        "sqlite",
	Placeholder: sqlstore.QuestionMarks,
	NoLimit:     "LIMIT -1",
	Classify:    classify,
}

// Open initializes a SQLite backed store and creates the schema when missing.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*sqlstore.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes writers; count-then-fetch listings see one snapshot.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := sqlstore.New(conn, Dialect, logger)
	if err := s.Bootstrap(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            project_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            priority INTEGER NOT NULL CHECK (priority >= 1),
            status INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
	`CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project_created ON tasks(project_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project_priority ON tasks(project_id, priority);`,
}

func classify(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return nil
	}
	switch {
	case se.ExtendedCode == sqlite3.ErrConstraintForeignKey:
		return storage.ErrForeignKey
	case se.Code == sqlite3.ErrBusy, se.Code == sqlite3.ErrLocked:
		return storage.ErrConflict
	}
	return nil
}
