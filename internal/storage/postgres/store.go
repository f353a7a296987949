// Package postgres opens the entity store on PostgreSQL through pgx's
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"bugtracker/internal/storage"
	"bugtracker/internal/storage/sqlstore"
)

// Dialect is the PostgreSQL flavour of the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	ReadTx:      &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	Classify:    classify,
}

// Open connects to dsn, checks the connection and creates the schema when missing.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*sqlstore.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	conn.SetMaxOpenConns(16)
	conn.SetMaxIdleConns(4)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := sqlstore.New(conn, Dialect, logger)
	if err := s.Bootstrap(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL CHECK (priority >= 1),
		status SMALLINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project_created ON tasks(project_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project_priority ON tasks(project_id, priority)`,
}

// SQLSTATE codes the store maps onto storage sentinels.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeForeignKeyViolation  = "23503"
)

func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case codeForeignKeyViolation:
		return storage.ErrForeignKey
	case codeSerializationFailure, codeDeadlockDetected:
		return storage.ErrConflict
	}
	return nil
}
