package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtracker/internal/models"
	"bugtracker/internal/storage"
	"bugtracker/internal/storage/memory"
	"bugtracker/internal/storage/storagetest"
	"bugtracker/internal/tracker"
)

func newTestServer(t *testing.T, store tracker.Store, opts Options) *Server {
	t.Helper()
	svc := tracker.New(store, nil)
	var health HealthChecker
	if h, ok := store.(HealthChecker); ok {
		health = h
	}
	return New(svc, health, nil, opts)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestProjectEndpoints(t *testing.T) {
	s := newTestServer(t, memory.New(), Options{})

	rec := do(t, s, http.MethodPost, "/api/project", map[string]any{"projectName": "Apollo", "projectDescription": "moon", "projectId": 77})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Project](t, rec)
	assert.NotEqual(t, int64(77), created.ID)
	assert.Equal(t, fmt.Sprintf("/api/project/%d", created.ID), rec.Header().Get("Location"))
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	do(t, s, http.MethodPost, "/api/project", map[string]any{"projectName": "Gemini"})

	rec = do(t, s, http.MethodGet, "/api/project?skip=1&take=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))
	list := decode[[]models.Project](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Gemini", list[0].Name)

	path := fmt.Sprintf("/api/project/%d", created.ID)
	rec = do(t, s, http.MethodPut, path, map[string]any{"projectId": created.ID, "projectName": "Artemis"})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Project](t, rec)
	assert.Equal(t, "Artemis", got.Name)
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))

	rec = do(t, s, http.MethodPut, path, map[string]any{"projectId": created.ID + 1, "projectName": "Artemis"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "match", decode[errorResponse](t, rec).Fields["projectId"])

	rec = do(t, s, http.MethodPut, "/api/project/999", map[string]any{"projectId": 999, "projectName": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, s, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Artemis", decode[models.Project](t, rec).Name)

	for i := 0; i < 2; i++ {
		rec = do(t, s, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Body.String())
	}
}

func TestProjectValidation(t *testing.T) {
	s := newTestServer(t, memory.New(), Options{})

	rec := do(t, s, http.MethodPost, "/api/project", map[string]any{"projectName": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, codeInvalidRequest, body.Code)
	assert.Equal(t, "notblank", body.Fields["projectName"])

	rec = do(t, s, http.MethodPost, "/api/project", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", decode[errorResponse](t, rec).Fields["projectName"])

	rec = do(t, s, http.MethodGet, "/api/project?take=-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "min", decode[errorResponse](t, rec).Fields["take"])

	rec = do(t, s, http.MethodGet, "/api/project/abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "integer", decode[errorResponse](t, rec).Fields["id"])
}

func TestTaskListing(t *testing.T) {
	store := memory.New()
	s := newTestServer(t, store, Options{})
	p1 := storagetest.SeedProject(t, store, "P1", storagetest.Epoch)
	tasks := storagetest.SeedTasks(t, store, p1.ID, 12)

	rec := do(t, s, http.MethodGet, fmt.Sprintf("/api/task?projectId=%d&priorityFilter=5", p1.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	got := decode[[]models.Task](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Priority)

	rec = do(t, s, http.MethodGet, fmt.Sprintf("/api/task?projectId=%d&skip=10&take=5", p1.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("X-Total-Count"))
	got = decode[[]models.Task](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, tasks[10].ID, got[0].ID)
	assert.Equal(t, tasks[11].ID, got[1].ID)

	// The browser client sends every parameter, empty when unset.
	rec = do(t, s, http.MethodGet, fmt.Sprintf("/api/task?projectId=%d&skip=0&take=10&sortField=TaskPriority&sortDirection=1&priorityFilter=&createdFrom=&createdTo=", p1.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("X-Total-Count"))
	got = decode[[]models.Task](t, rec)
	require.Len(t, got, 10)
	assert.Equal(t, 12, got[0].Priority)

	rec = do(t, s, http.MethodGet, fmt.Sprintf("/api/task?projectId=%d&createdFrom=2020-01-05&createdTo=2020-01-06", p1.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	rec = do(t, s, http.MethodGet, "/api/task", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", decode[errorResponse](t, rec).Fields["projectId"])
}

func TestListingWithHugeTake(t *testing.T) {
	store := memory.New()
	s := newTestServer(t, store, Options{})
	p := storagetest.SeedProject(t, store, "P", storagetest.Epoch)
	storagetest.SeedTasks(t, store, p.ID, 3)
	huge := strconv.Itoa(math.MaxInt)

	rec := do(t, s, http.MethodGet, fmt.Sprintf("/api/task?projectId=%d&skip=1&take=%s", p.ID, huge), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	assert.Len(t, decode[[]models.Task](t, rec), 2)

	rec = do(t, s, http.MethodGet, "/api/project?skip=1&take="+huge, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Empty(t, decode[[]models.Project](t, rec))

	rec = do(t, s, http.MethodGet, fmt.Sprintf("/api/task?projectId=%d&priorityFilter=%d", p.ID, int64(math.MaxInt32)+1), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "max", decode[errorResponse](t, rec).Fields["priorityFilter"])
}

func TestTaskLifecycle(t *testing.T) {
	store := memory.New()
	s := newTestServer(t, store, Options{})
	p := storagetest.SeedProject(t, store, "P", storagetest.Epoch)

	rec := do(t, s, http.MethodPost, "/api/task", map[string]any{
		"projectId":    p.ID,
		"taskName":     "login fails",
		"taskPriority": 2,
		"taskStatus":   2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Task](t, rec)
	path := rec.Header().Get("Location")
	assert.Equal(t, fmt.Sprintf("/api/task/%d", created.ID), path)

	rec = do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Task](t, rec)
	assert.Equal(t, models.StatusNew, got.Status)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))

	rec = do(t, s, http.MethodPut, path, map[string]any{
		"taskId":       created.ID,
		"taskName":     "login fails on Safari",
		"taskPriority": 1,
		"taskStatus":   "Closed",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	before, err := store.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, before.Status)

	rec = do(t, s, http.MethodPut, path, map[string]any{
		"taskId":       created.ID,
		"taskName":     "reopen",
		"taskPriority": 1,
		"taskStatus":   0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeTaskClosed, decode[errorResponse](t, rec).Code)

	after, err := store.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	rec = do(t, s, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[models.Task](t, rec).ID)

	rec = do(t, s, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskValidation(t *testing.T) {
	store := memory.New()
	s := newTestServer(t, store, Options{})
	p := storagetest.SeedProject(t, store, "P", storagetest.Epoch)

	tests := []struct {
		name  string
		body  any
		field string
		rule  string
	}{
		{"missing name", map[string]any{"projectId": p.ID, "taskPriority": 1}, "taskName", "required"},
		{"zero priority", map[string]any{"projectId": p.ID, "taskName": "x", "taskPriority": 0}, "taskPriority", "required"},
		{"negative priority", map[string]any{"projectId": p.ID, "taskName": "x", "taskPriority": -3}, "taskPriority", "min"},
		{"priority beyond column range", map[string]any{"projectId": p.ID, "taskName": "x", "taskPriority": int64(math.MaxInt32) + 1}, "taskPriority", "max"},
		{"status out of range", map[string]any{"projectId": p.ID, "taskName": "x", "taskPriority": 1, "taskStatus": 5}, "taskStatus", "taskstatus"},
		{"unknown status name", map[string]any{"projectId": p.ID, "taskName": "x", "taskPriority": 1, "taskStatus": "Done"}, "taskStatus", "type"},
		{"priority wrong type", `{"projectId": 1, "taskName": "x", "taskPriority": "high"}`, "taskPriority", "type"},
		{"missing project", map[string]any{"taskName": "x", "taskPriority": 1}, "projectId", "required"},
		{"unknown project", map[string]any{"projectId": p.ID + 10, "taskName": "x", "taskPriority": 1}, "projectId", "exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/task", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decode[errorResponse](t, rec)
			assert.Equal(t, codeInvalidRequest, body.Code)
			assert.Equal(t, tt.rule, body.Fields[tt.field], body.Fields)
		})
	}

	rec := do(t, s, http.MethodPut, "/api/task/5", map[string]any{"taskId": 6, "taskName": "x", "taskPriority": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "match", decode[errorResponse](t, rec).Fields["taskId"])

	rec = do(t, s, http.MethodPut, "/api/task/5", map[string]any{"taskId": 5, "taskName": "x", "taskPriority": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// conflictingStore reports a write conflict on every update while the rows stay in place.
type conflictingStore struct {
	*memory.Store
}

func (conflictingStore) UpdateTask(context.Context, models.Task) error {
	return fmt.Errorf("update task: %w", storage.ErrConflict)
}

func TestTaskConflictIsServerError(t *testing.T) {
	store := conflictingStore{memory.New()}
	s := newTestServer(t, store, Options{})
	p := storagetest.SeedProject(t, store, "P", storagetest.Epoch)
	task := storagetest.SeedTasks(t, store, p.ID, 1)[0]

	rec := do(t, s, http.MethodPut, fmt.Sprintf("/api/task/%d", task.ID), map[string]any{
		"taskId": task.ID, "taskName": "x", "taskPriority": 1,
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, codeInternal, decode[errorResponse](t, rec).Code)
}

type downStore struct{ *memory.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, memory.New(), Options{}), http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newTestServer(t, downStore{memory.New()}, Options{}), http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t, memory.New(), Options{Metrics: true})

	rec := do(t, s, http.MethodGet, "/api/project", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Total-Count")

	req := httptest.NewRequest(http.MethodGet, "/api/project", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = do(t, s, http.MethodOptions, "/api/task", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bugtracker_http_request_duration_seconds")
}

func TestStaticFrontend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>tracker</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "js"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "js", "app.js"), []byte("console.log(1)"), 0o644))

	s := newTestServer(t, memory.New(), Options{StaticDir: dir})

	rec := do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracker")

	rec = do(t, s, http.MethodGet, "/projects/3", nil)
	assert.Contains(t, rec.Body.String(), "tracker")

	rec = do(t, s, http.MethodGet, "/js/app.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decode[errorResponse](t, rec).Code)
}

func TestAPIOnlyMode(t *testing.T) {
	s := newTestServer(t, memory.New(), Options{StaticDir: filepath.Join(t.TempDir(), "missing")})
	rec := do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTimestampsSerializeAsRFC3339(t *testing.T) {
	store := memory.New()
	s := newTestServer(t, store, Options{})
	p := storagetest.SeedProject(t, store, "P", time.Date(2021, 5, 6, 7, 8, 9, 0, time.UTC))

	rec := do(t, s, http.MethodGet, fmt.Sprintf("/api/project/%d", p.ID), nil)
	raw := decode[map[string]any](t, rec)
	assert.Equal(t, "2021-05-06T07:08:09Z", raw["projectDateCreated"])
}
