package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"bugtracker/internal/tracker"
)

// Error codes returned in JSON { "error": "...", "code": "..." } for stable client handling.
const (
	codeInvalidRequest = "invalid_request"
	codeTaskClosed     = "task_closed"
	codeNotFound       = "not_found"
	codeInternal       = "internal_error"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respondError maps err onto a status code. Not found answers carry no body;
// anything unclassified is logged and reported as a server error.
func (s *Server) respondError(c *gin.Context, err error) {
	var verr *tracker.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Message, Code: codeInvalidRequest, Fields: verr.Fields})
	case errors.Is(err, tracker.ErrTaskClosed):
		closedTaskEdits.Inc()
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: codeTaskClosed})
	case errors.Is(err, tracker.ErrNotFound):
		c.Status(http.StatusNotFound)
	default:
		s.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: codeInternal})
	}
}
