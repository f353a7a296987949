package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bugtracker/internal/models"
	"bugtracker/internal/storage"
)

// resolveWrite classifies the result of a write against a record that existed
// when it was loaded. A conflict triggers exactly one existence check: a
// record that is gone becomes ErrNotFound, a task closed in the meantime
// becomes ErrTaskClosed, and one that is still there keeps the conflict,
// wrapped in ErrConflict.
func (s *Service) resolveWrite(ctx context.Context, kind string, id int64, writeErr error, lookup func(context.Context, int64) error) error {
	if writeErr == nil {
		return nil
	}
	if !errors.Is(writeErr, storage.ErrConflict) {
		return writeErr
	}

	err := lookup(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logger.Info("write raced a delete", slog.String("kind", kind), slog.Int64("id", id))
		return ErrNotFound
	case errors.Is(err, ErrTaskClosed):
		s.logger.Info("write raced a close", slog.String("kind", kind), slog.Int64("id", id))
		return ErrTaskClosed
	case err != nil:
		return fmt.Errorf("recheck %s %d: %w", kind, id, errors.Join(writeErr, err))
	}

	s.logger.Warn("write conflict on existing record", slog.String("kind", kind), slog.Int64("id", id), slog.String("error", writeErr.Error()))
	return fmt.Errorf("%s %d: %w: %w", kind, id, ErrConflict, writeErr)
}

func (s *Service) projectExists(ctx context.Context, id int64) error {
	_, err := s.store.GetProject(ctx, id)
	return err
}

// taskExists also reports ErrTaskClosed for a task that can no longer be written.
func (s *Service) taskExists(ctx context.Context, id int64) error {
	t, err := s.store.GetTask(ctx, id)
	if err == nil && t.Status == models.StatusClosed {
		return ErrTaskClosed
	}
	return err
}
