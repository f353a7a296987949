// Package tracker implements the project and task operations: listing with
// filters, sorting and paging, and the mutation guards that own timestamps,
// write-once fields and the closed-task lock.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bugtracker/internal/models"
	"bugtracker/internal/storage"
)

// Store is the entity store the service drives. Implementations report
// missing rows with storage.ErrNotFound, writes against a vanished row or a
// database level conflict with storage.ErrConflict, and unknown parent
// projects with storage.ErrForeignKey.
type Store interface {
	ListProjects(ctx context.Context, page models.Page) ([]models.Project, int, error)
	GetProject(ctx context.Context, id int64) (models.Project, error)
	CreateProject(ctx context.Context, p models.Project) (models.Project, error)
	UpdateProject(ctx context.Context, p models.Project) error
	DeleteProject(ctx context.Context, id int64) (models.Project, error)

	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, int, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, t models.Task) error
	DeleteTask(ctx context.Context, id int64) (models.Task, error)
}

// Service holds no per-request state; it is safe for concurrent use.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds a service on top of store.
func New(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stamp is the current time in the precision every store round-trips.
func (s *Service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// notFound converts the store's missing-row error into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
