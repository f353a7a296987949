package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bugtracker/internal/tracker"
)

const totalCountHeader = "X-Total-Count"

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options toggles the optional parts of the HTTP surface.
type Options struct {
	// StaticDir holds the built frontend. Empty means API only.
	StaticDir string
	// Metrics exposes Prometheus metrics on /metrics.
	Metrics bool
}

// Server provides HTTP handlers for the bug tracking backend.
type Server struct {
	engine  *gin.Engine
	tracker *tracker.Service
	health  HealthChecker
	logger  *slog.Logger
	opts    Options
}

// New constructs the HTTP server with routes and middleware configured.
func New(svc *tracker.Service, health HealthChecker, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	registerValidators()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(logger))
	router.Use(cors())
	if opts.Metrics {
		router.Use(instrument())
	}

	srv := &Server{
		engine:  router,
		tracker: svc,
		health:  health,
		logger:  logger,
		opts:    opts,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		projects := api.Group("/project")
		{
			projects.GET("", s.handleListProjects)
			projects.GET("/:id", s.handleGetProject)
			projects.POST("", s.handleCreateProject)
			projects.PUT("/:id", s.handleUpdateProject)
			projects.DELETE("/:id", s.handleDeleteProject)
		}

		tasks := api.Group("/task")
		{
			tasks.GET("", s.handleListTasks)
			tasks.GET("/:id", s.handleGetTask)
			tasks.POST("", s.handleCreateTask)
			tasks.PUT("/:id", s.handleUpdateTask)
			tasks.DELETE("/:id", s.handleDeleteTask)
		}
	}

	if s.opts.Metrics {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.mountStatic()
}

// handleHealth reports readiness once the store answers a ping.
func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Ping(c.Request.Context()); err != nil {
			s.logger.Warn("health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:  "invalid identifier",
			Code:   codeInvalidRequest,
			Fields: map[string]string{name: "integer"},
		})
		return 0, false
	}
	return id, true
}

// respondList writes one page of a listing with the pre-paging total.
func respondList(c *gin.Context, total int, payload any) {
	c.Header(totalCountHeader, strconv.Itoa(total))
	c.JSON(http.StatusOK, payload)
}
