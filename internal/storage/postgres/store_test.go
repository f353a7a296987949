package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtracker/internal/storage"
	"bugtracker/internal/storage/sqlstore"
	"bugtracker/internal/storage/storagetest"
	"bugtracker/internal/tracker"
)

// Set BUGTRACKER_TEST_POSTGRES_DSN to a disposable database to run these tests.
const dsnEnv = "BUGTRACKER_TEST_POSTGRES_DSN"

func openClean(t *testing.T) tracker.Store {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	truncate(t, s)
	return s
}

func truncate(t *testing.T, s *sqlstore.Store) {
	t.Helper()
	require.NoError(t, s.Bootstrap(context.Background(), []string{`TRUNCATE tasks, projects RESTART IDENTITY CASCADE`}))
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, openClean)
}

func TestClassify(t *testing.T) {
	wrap := func(code string) error { return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code}) }

	assert.ErrorIs(t, classify(wrap("23503")), storage.ErrForeignKey)
	assert.ErrorIs(t, classify(wrap("40001")), storage.ErrConflict)
	assert.ErrorIs(t, classify(wrap("40P01")), storage.ErrConflict)
	assert.NoError(t, classify(wrap("23505")))
	assert.NoError(t, classify(errors.New("boom")))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$3", Dialect.Placeholder(3))
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "", nil)
	assert.Error(t, err)
}
