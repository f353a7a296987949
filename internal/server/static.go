package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountStatic serves the compiled frontend from the configured directory.
// Unknown API paths always get a JSON 404, everything else falls back to index.html.
func (s *Server) mountStatic() {
	indexPath := s.frontendIndex()

	s.engine.NoRoute(func(c *gin.Context) {
		if indexPath == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, errorResponse{Error: "endpoint not found", Code: codeNotFound})
			return
		}
		c.File(indexPath)
	})
	if indexPath == "" {
		return
	}

	s.engine.GET("/", func(c *gin.Context) {
		c.File(indexPath)
	})
	for _, dir := range []string{"assets", "css", "js"} {
		if path := filepath.Join(s.opts.StaticDir, dir); isDir(path) {
			s.engine.StaticFS("/"+dir, gin.Dir(path, false))
		}
	}
	if favicon := filepath.Join(s.opts.StaticDir, "favicon.ico"); fileExists(favicon) {
		s.engine.StaticFile("/favicon.ico", favicon)
	}
}

// frontendIndex returns the index.html to serve, or "" when there is no usable frontend.
func (s *Server) frontendIndex() string {
	if s.opts.StaticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return ""
	}
	if !isDir(s.opts.StaticDir) {
		s.logger.Warn("static directory missing", "path", s.opts.StaticDir)
		return ""
	}
	indexPath := filepath.Join(s.opts.StaticDir, "index.html")
	if !fileExists(indexPath) {
		s.logger.Warn("index.html not found", "path", indexPath)
		return ""
	}
	return indexPath
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
