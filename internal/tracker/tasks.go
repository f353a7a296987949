package tracker

import (
	"context"
	"errors"
	"strings"

	"bugtracker/internal/models"
	"bugtracker/internal/storage"
)

// ListTasks returns a page of a project's tasks and the number of tasks that
// matched the filters before paging.
func (s *Service) ListTasks(ctx context.Context, params TaskParams) ([]models.Task, int, error) {
	f, err := ParseTaskParams(params)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListTasks(ctx, f)
}

func (s *Service) GetTask(ctx context.Context, id int64) (models.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, notFound(err)
	}
	return t, nil
}

// CreateTask stores a new task under t.ProjectID. The task always starts as
// New with both timestamps set to now.
func (s *Service) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if err := validateTask(t); err != nil {
		return models.Task{}, err
	}
	if t.ProjectID < 1 {
		return models.Task{}, invalidField("invalid task", "projectId", "required")
	}

	now := s.stamp()
	created, err := s.store.CreateTask(ctx, models.Task{
		ProjectID:   t.ProjectID,
		Name:        t.Name,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      models.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, storage.ErrForeignKey) {
		return models.Task{}, invalidField("project does not exist", "projectId", "exists")
	}
	if err != nil {
		return models.Task{}, err
	}
	return created, nil
}

// UpdateTask applies the editable fields of body to task id. Closed tasks are
// rejected as a whole. The project and creation date of the stored record
// are kept regardless of body.
func (s *Service) UpdateTask(ctx context.Context, id int64, body models.Task) error {
	if err := validateTask(body); err != nil {
		return err
	}
	if body.ID != id {
		return invalidField("route id does not match body", "taskId", "match")
	}

	current, err := s.store.GetTask(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if current.Status == models.StatusClosed {
		return ErrTaskClosed
	}

	current.Name = body.Name
	current.Description = body.Description
	current.Priority = body.Priority
	current.Status = body.Status
	current.UpdatedAt = s.stamp()

	return s.resolveWrite(ctx, "task", id, s.store.UpdateTask(ctx, current), s.taskExists)
}

// DeleteTask removes the task and returns it.
func (s *Service) DeleteTask(ctx context.Context, id int64) (models.Task, error) {
	t, err := s.store.DeleteTask(ctx, id)
	if err != nil {
		return models.Task{}, notFound(err)
	}
	return t, nil
}

func validateTask(t models.Task) error {
	errs := fieldErrors{}
	if strings.TrimSpace(t.Name) == "" {
		errs.add("taskName", "required")
	}
	switch {
	case t.Priority < 1:
		errs.add("taskPriority", "min")
	case t.Priority > models.MaxPriority:
		errs.add("taskPriority", "max")
	}
	if !t.Status.Valid() {
		errs.add("taskStatus", "taskstatus")
	}
	return errs.err("invalid task")
}
