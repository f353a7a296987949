package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"bugtracker/internal/models"
	"bugtracker/internal/tracker"
)

type projectRequest struct {
	ID          int64  `json:"projectId"`
	Name        string `json:"projectName" binding:"required,notblank"`
	Description string `json:"projectDescription"`
}

func (r projectRequest) project() models.Project {
	return models.Project{ID: r.ID, Name: r.Name, Description: r.Description}
}

// handleListProjects returns one page of projects with the overall count in X-Total-Count.
func (s *Server) handleListProjects(c *gin.Context) {
	var params tracker.ProjectParams
	if err := c.ShouldBindQuery(&params); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	projects, total, err := s.tracker.ListProjects(c.Request.Context(), params)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondList(c, total, projects)
}

func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	project, err := s.tracker.GetProject(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// handleCreateProject creates a new project entity.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	project, err := s.tracker.CreateProject(c.Request.Context(), req.project())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/api/project/%d", project.ID))
	c.JSON(http.StatusCreated, project)
}

// handleUpdateProject renames or re-describes an existing project.
func (s *Server) handleUpdateProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	if err := s.tracker.UpdateProject(c.Request.Context(), id, req.project()); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleDeleteProject removes a project and all related tasks.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	project, err := s.tracker.DeleteProject(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}
