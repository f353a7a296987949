package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"bugtracker/internal/models"
	"bugtracker/internal/tracker"
)

type taskRequest struct {
	ID          int64             `json:"taskId"`
	ProjectID   int64             `json:"projectId"`
	Name        string            `json:"taskName" binding:"required,notblank"`
	Description string            `json:"taskDescription"`
	Priority    int               `json:"taskPriority" binding:"required,min=1,max=2147483647"`
	Status      models.TaskStatus `json:"taskStatus" binding:"taskstatus"`
}

func (r taskRequest) task() models.Task {
	return models.Task{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Name:        r.Name,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
	}
}

// handleListTasks filters, sorts and pages a project's tasks. X-Total-Count
// carries the filtered count before paging.
func (s *Server) handleListTasks(c *gin.Context) {
	var params tracker.TaskParams
	if err := c.ShouldBindQuery(&params); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	tasks, total, err := s.tracker.ListTasks(c.Request.Context(), params)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondList(c, total, tasks)
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := s.tracker.GetTask(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// handleCreateTask inserts a new task; it always starts as New.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	task, err := s.tracker.CreateTask(c.Request.Context(), req.task())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/api/task/%d", task.ID))
	c.JSON(http.StatusCreated, task)
}

// handleUpdateTask edits name, description, priority and status of an open task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	if err := s.tracker.UpdateTask(c.Request.Context(), id, req.task()); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleDeleteTask removes a task completely and echoes it back.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := s.tracker.DeleteTask(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
