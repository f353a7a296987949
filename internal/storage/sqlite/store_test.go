package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtracker/internal/storage"
	"bugtracker/internal/storage/storagetest"
	"bugtracker/internal/tracker"
)

func openTemp(t *testing.T) tracker.Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "bugtracker.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, openTemp)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bugtracker.db")

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	p := storagetest.SeedProject(t, s, "kept", storagetest.Epoch)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Name)
	assert.NoError(t, s.Ping(ctx))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(sqlite3.Error{Code: sqlite3.ErrBusy}), storage.ErrConflict)
	assert.ErrorIs(t, classify(sqlite3.Error{Code: sqlite3.ErrLocked}), storage.ErrConflict)
	assert.ErrorIs(t, classify(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}), storage.ErrForeignKey)
	assert.NoError(t, classify(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}))
	assert.NoError(t, classify(errors.New("boom")))
}
