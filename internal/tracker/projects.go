package tracker

import (
	"context"
	"strings"

	"bugtracker/internal/models"
)

// ListProjects returns a page of projects ordered by creation date and the
// total number of projects.
func (s *Service) ListProjects(ctx context.Context, params ProjectParams) ([]models.Project, int, error) {
	page, err := ParseProjectParams(params)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListProjects(ctx, page)
}

func (s *Service) GetProject(ctx context.Context, id int64) (models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, notFound(err)
	}
	return p, nil
}

// CreateProject stores a new project. Any id or timestamps in p are replaced.
func (s *Service) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	if err := validateProject(p); err != nil {
		return models.Project{}, err
	}
	now := s.stamp()
	created, err := s.store.CreateProject(ctx, models.Project{
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return models.Project{}, err
	}
	return created, nil
}

// UpdateProject applies the editable fields of body to project id. The id and
// creation date of the stored record are kept regardless of body.
func (s *Service) UpdateProject(ctx context.Context, id int64, body models.Project) error {
	if err := validateProject(body); err != nil {
		return err
	}
	if body.ID != id {
		return invalidField("route id does not match body", "projectId", "match")
	}

	current, err := s.store.GetProject(ctx, id)
	if err != nil {
		return notFound(err)
	}

	current.Name = body.Name
	current.Description = body.Description
	current.UpdatedAt = s.stamp()

	return s.resolveWrite(ctx, "project", id, s.store.UpdateProject(ctx, current), s.projectExists)
}

// DeleteProject removes the project and its tasks and returns the removed project.
func (s *Service) DeleteProject(ctx context.Context, id int64) (models.Project, error) {
	p, err := s.store.DeleteProject(ctx, id)
	if err != nil {
		return models.Project{}, notFound(err)
	}
	return p, nil
}

func validateProject(p models.Project) error {
	errs := fieldErrors{}
	if strings.TrimSpace(p.Name) == "" {
		errs.add("projectName", "required")
	}
	return errs.err("invalid project")
}
