// Package memory is an in-process entity store. It follows the same contract
// as the SQL stores and is used for tests and throwaway instances.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"bugtracker/internal/models"
	"bugtracker/internal/storage"
)

// Store keeps projects and tasks in maps guarded by one lock. The zero value
// is not usable; call New.
type Store struct {
	mu          sync.RWMutex
	projects    map[int64]models.Project
	tasks       map[int64]models.Task
	nextProject int64
	nextTask    int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		projects: make(map[int64]models.Project),
		tasks:    make(map[int64]models.Task),
	}
}

// Ping only reports a cancelled context; there is no connection to lose.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op kept for parity with the SQL stores.
func (s *Store) Close() error { return nil }

// ListProjects returns one page of projects ordered by creation date and the overall count.
func (s *Store) ListProjects(ctx context.Context, page models.Page) ([]models.Project, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		all = append(all, p)
	}
	slices.SortFunc(all, func(a, b models.Project) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	lo, hi := page.Bounds(len(all))
	return slices.Clone(all[lo:hi]), len(all), nil
}

// GetProject returns the project or storage.ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	if err := ctx.Err(); err != nil {
		return models.Project{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, fmt.Errorf("project %d: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

// CreateProject assigns the next id and stores p.
func (s *Store) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	if err := ctx.Err(); err != nil {
		return models.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProject++
	p.ID = s.nextProject
	s.projects[p.ID] = p
	return p, nil
}

// UpdateProject copies the mutable fields of p onto the stored project.
func (s *Store) UpdateProject(ctx context.Context, p models.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.projects[p.ID]
	if !ok {
		return fmt.Errorf("update project: row missing at commit: %w", storage.ErrConflict)
	}
	current.Name = p.Name
	current.Description = p.Description
	current.UpdatedAt = p.UpdatedAt
	s.projects[p.ID] = current
	return nil
}

// DeleteProject removes the project and cascades to its tasks.
func (s *Store) DeleteProject(ctx context.Context, id int64) (models.Project, error) {
	if err := ctx.Err(); err != nil {
		return models.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, fmt.Errorf("project %d: %w", id, storage.ErrNotFound)
	}
	delete(s.projects, id)
	for tid, t := range s.tasks {
		if t.ProjectID == id {
			delete(s.tasks, tid)
		}
	}
	return p, nil
}

// ListTasks filters, sorts and pages the tasks and returns the count before paging.
func (s *Store) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Task
	for _, t := range s.tasks {
		if f.Matches(t) {
			matched = append(matched, t)
		}
	}
	slices.SortFunc(matched, f.Compare)

	lo, hi := f.Page.Bounds(len(matched))
	page := make([]models.Task, 0, hi-lo)
	return append(page, matched[lo:hi]...), len(matched), nil
}

// GetTask returns the task or storage.ErrNotFound.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	return t, nil
}

// CreateTask stores t under an existing project.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[t.ProjectID]; !ok {
		return models.Task{}, fmt.Errorf("insert task: project %d: %w", t.ProjectID, storage.ErrForeignKey)
	}
	s.nextTask++
	t.ID = s.nextTask
	s.tasks[t.ID] = t
	return t, nil
}

// UpdateTask copies the mutable fields of t onto the stored task. A Closed
// task is left alone and reported as storage.ErrConflict.
func (s *Store) UpdateTask(ctx context.Context, t models.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[t.ID]
	if !ok {
		return fmt.Errorf("update task: row missing at commit: %w", storage.ErrConflict)
	}
	if current.Status == models.StatusClosed {
		return fmt.Errorf("update task %d: closed: %w", t.ID, storage.ErrConflict)
	}
	current.Name = t.Name
	current.Description = t.Description
	current.Priority = t.Priority
	current.Status = t.Status
	current.UpdatedAt = t.UpdatedAt
	s.tasks[t.ID] = current
	return nil
}

// DeleteTask removes a task and returns it.
func (s *Store) DeleteTask(ctx context.Context, id int64) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	delete(s.tasks, id)
	return t, nil
}

// PutTask stores t verbatim, bypassing the lifecycle rules. The id must be set.
// Used to seed fixtures such as already-closed tasks.
func (s *Store) PutTask(t models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = t
	s.nextTask = max(s.nextTask, t.ID)
}
