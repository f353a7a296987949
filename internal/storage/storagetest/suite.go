// Package storagetest is a conformance suite run against every entity store.
package storagetest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugtracker/internal/models"
	"bugtracker/internal/storage"
	"bugtracker/internal/tracker"
)

// Opener returns an empty store. Cleanup is registered on t.
type Opener func(t *testing.T) tracker.Store

// Epoch is the creation date of the first seeded task.
var Epoch = time.Date(2020, 1, 1, 9, 30, 0, 0, time.UTC)

// Run executes the whole suite.
func Run(t *testing.T, open Opener) {
	t.Run("ProjectRoundTrip", func(t *testing.T) { testProjectRoundTrip(t, open(t)) })
	t.Run("ProjectListing", func(t *testing.T) { testProjectListing(t, open(t)) })
	t.Run("TaskListing", func(t *testing.T) { testTaskListing(t, open(t)) })
	t.Run("TaskSortReversal", func(t *testing.T) { testTaskSortReversal(t, open(t)) })
	t.Run("TaskWrites", func(t *testing.T) { testTaskWrites(t, open(t)) })
	t.Run("ClosedTaskStaysClosed", func(t *testing.T) { testClosedTaskStaysClosed(t, open(t)) })
	t.Run("HugePage", func(t *testing.T) { testHugePage(t, open(t)) })
	t.Run("CascadeDelete", func(t *testing.T) { testCascadeDelete(t, open(t)) })
}

// SeedProject creates a project whose timestamps are at.
func SeedProject(t *testing.T, s tracker.Store, name string, at time.Time) models.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), models.Project{Name: name, CreatedAt: at, UpdatedAt: at})
	require.NoError(t, err)
	return p
}

// SeedTasks creates n tasks in project with priorities 1..n, one per day starting at Epoch.
func SeedTasks(t *testing.T, s tracker.Store, projectID int64, n int) []models.Task {
	t.Helper()
	tasks := make([]models.Task, 0, n)
	for i := 0; i < n; i++ {
		at := Epoch.AddDate(0, 0, i)
		task, err := s.CreateTask(context.Background(), models.Task{
			ProjectID: projectID,
			Name:      "task",
			Priority:  i + 1,
			Status:    models.StatusNew,
			CreatedAt: at,
			UpdatedAt: at,
		})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	return tasks
}

func ptr[T any](v T) *T { return &v }

func ids(tasks []models.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func testProjectRoundTrip(t *testing.T, s tracker.Store) {
	ctx := context.Background()
	at := time.Date(2021, 3, 4, 5, 6, 7, 123456000, time.UTC)

	created, err := s.CreateProject(ctx, models.Project{Name: "alpha", Description: "first", CreatedAt: at, UpdatedAt: at})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := s.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)
	assert.Equal(t, "first", got.Description)
	assert.True(t, got.CreatedAt.Equal(at), "created_at %s", got.CreatedAt)
	assert.True(t, got.UpdatedAt.Equal(at))

	later := at.Add(time.Hour)
	got.Name, got.UpdatedAt = "beta", later
	require.NoError(t, s.UpdateProject(ctx, got))

	got, err = s.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "beta", got.Name)
	assert.True(t, got.CreatedAt.Equal(at))
	assert.True(t, got.UpdatedAt.Equal(later))

	deleted, err := s.DeleteProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)
	assert.Equal(t, "beta", deleted.Name)

	_, err = s.GetProject(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.DeleteProject(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.UpdateProject(ctx, got)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func testProjectListing(t *testing.T, s tracker.Store) {
	ctx := context.Background()
	// Inserted out of creation order.
	third := SeedProject(t, s, "third", Epoch.AddDate(0, 0, 2))
	first := SeedProject(t, s, "first", Epoch)
	second := SeedProject(t, s, "second", Epoch.AddDate(0, 0, 1))

	all, total, err := s.ListProjects(ctx, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{first.ID, second.ID, third.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	page, total, err := s.ListProjects(ctx, models.Page{Skip: 1, Take: ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	page, total, err = s.ListProjects(ctx, models.Page{Skip: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, page)
}

func testTaskListing(t *testing.T, s tracker.Store) {
	ctx := context.Background()
	p1 := SeedProject(t, s, "P1", Epoch)
	p2 := SeedProject(t, s, "P2", Epoch)
	tasks := SeedTasks(t, s, p1.ID, 12)
	SeedTasks(t, s, p2.ID, 3)

	tests := []struct {
		name   string
		filter models.TaskFilter
		want   []int64
		total  int
	}{
		{
			name:   "all",
			filter: models.TaskFilter{ProjectID: p1.ID},
			want:   ids(tasks),
			total:  12,
		},
		{
			name:   "priority filter",
			filter: models.TaskFilter{ProjectID: p1.ID, Priority: ptr(5)},
			want:   []int64{tasks[4].ID},
			total:  1,
		},
		{
			name:   "skip and take past the end",
			filter: models.TaskFilter{ProjectID: p1.ID, Page: models.Page{Skip: 10, Take: ptr(5)}},
			want:   []int64{tasks[10].ID, tasks[11].ID},
			total:  12,
		},
		{
			name:   "skip without take",
			filter: models.TaskFilter{ProjectID: p1.ID, Page: models.Page{Skip: 9}},
			want:   ids(tasks[9:]),
			total:  12,
		},
		{
			name:   "take zero",
			filter: models.TaskFilter{ProjectID: p1.ID, Page: models.Page{Take: ptr(0)}},
			want:   []int64{},
			total:  12,
		},
		{
			name:   "skip beyond result",
			filter: models.TaskFilter{ProjectID: p1.ID, Page: models.Page{Skip: 40}},
			want:   []int64{},
			total:  12,
		},
		{
			name: "created range covers whole days",
			filter: models.TaskFilter{
				ProjectID:     p1.ID,
				CreatedFrom:   ptr(time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)),
				CreatedBefore: ptr(time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)),
			},
			want:  ids(tasks[2:5]),
			total: 3,
		},
		{
			name:   "priority descending",
			filter: models.TaskFilter{ProjectID: p1.ID, SortBy: models.SortByPriority, Descending: true, Page: models.Page{Take: ptr(3)}},
			want:   []int64{tasks[11].ID, tasks[10].ID, tasks[9].ID},
			total:  12,
		},
		{
			name:   "unknown project",
			filter: models.TaskFilter{ProjectID: p2.ID + 100},
			want:   []int64{},
			total:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := s.ListTasks(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func testTaskSortReversal(t *testing.T, s tracker.Store) {
	ctx := context.Background()
	p := SeedProject(t, s, "ties", Epoch)
	// Pairs of tasks share both creation date and priority.
	for i := 0; i < 6; i++ {
		at := Epoch.AddDate(0, 0, i/2)
		_, err := s.CreateTask(ctx, models.Task{ProjectID: p.ID, Name: "t", Priority: 1 + i/2, CreatedAt: at, UpdatedAt: at})
		require.NoError(t, err)
	}

	for _, field := range []models.TaskSortField{models.SortByCreated, models.SortByPriority} {
		asc, _, err := s.ListTasks(ctx, models.TaskFilter{ProjectID: p.ID, SortBy: field})
		require.NoError(t, err)
		desc, _, err := s.ListTasks(ctx, models.TaskFilter{ProjectID: p.ID, SortBy: field, Descending: true})
		require.NoError(t, err)

		reversed := ids(asc)
		for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
			reversed[i], reversed[j] = reversed[j], reversed[i]
		}
		assert.Equal(t, reversed, ids(desc), string(field))
	}
}

func testTaskWrites(t *testing.T, s tracker.Store) {
	ctx := context.Background()
	p := SeedProject(t, s, "writes", Epoch)

	_, err := s.CreateTask(ctx, models.Task{ProjectID: p.ID + 1000, Name: "orphan", Priority: 1, CreatedAt: Epoch, UpdatedAt: Epoch})
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	task, err := s.CreateTask(ctx, models.Task{ProjectID: p.ID, Name: "a", Description: "d", Priority: 2, Status: models.StatusInProgress, CreatedAt: Epoch, UpdatedAt: Epoch})
	require.NoError(t, err)

	later := Epoch.Add(90 * time.Minute)
	edit := task
	edit.Name, edit.Priority, edit.Status, edit.UpdatedAt = "b", 7, models.StatusClosed, later
	// Write-once columns are not part of the update.
	edit.ProjectID, edit.CreatedAt = p.ID+1000, later
	require.NoError(t, s.UpdateTask(ctx, edit))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)
	assert.Equal(t, 7, got.Priority)
	assert.Equal(t, models.StatusClosed, got.Status)
	assert.Equal(t, p.ID, got.ProjectID)
	assert.True(t, got.CreatedAt.Equal(Epoch))
	assert.True(t, got.UpdatedAt.Equal(later))

	deleted, err := s.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", deleted.Name)

	_, err = s.DeleteTask(ctx, task.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdateTask(ctx, edit), storage.ErrConflict)
}

// testClosedTaskStaysClosed writes through a stale copy of a task that has
// been closed since it was read; the store must not reopen it.
func testClosedTaskStaysClosed(t *testing.T, s tracker.Store) {
	ctx := context.Background()
	p := SeedProject(t, s, "locked", Epoch)
	task := SeedTasks(t, s, p.ID, 1)[0]

	closed := task
	closed.Status, closed.UpdatedAt = models.StatusClosed, Epoch.Add(time.Hour)
	require.NoError(t, s.UpdateTask(ctx, closed))

	stale := task
	stale.Name, stale.Status, stale.UpdatedAt = "reopened", models.StatusInProgress, Epoch.Add(2*time.Hour)
	assert.ErrorIs(t, s.UpdateTask(ctx, stale), storage.ErrConflict)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)
	assert.Equal(t, task.Name, got.Name)
	assert.True(t, got.UpdatedAt.Equal(closed.UpdatedAt))
}

func testHugePage(t *testing.T, s tracker.Store) {
	ctx := context.Background()
	p := SeedProject(t, s, "huge", Epoch)
	SeedTasks(t, s, p.ID, 3)

	page := models.Page{Skip: 1, Take: ptr(math.MaxInt)}
	tasks, total, err := s.ListTasks(ctx, models.TaskFilter{ProjectID: p.ID, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, tasks, 2)

	projects, total, err := s.ListProjects(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, projects)
}

func testCascadeDelete(t *testing.T, s tracker.Store) {
	ctx := context.Background()
	p := SeedProject(t, s, "doomed", Epoch)
	tasks := SeedTasks(t, s, p.ID, 3)

	_, err := s.DeleteProject(ctx, p.ID)
	require.NoError(t, err)

	for _, task := range tasks {
		_, err := s.GetTask(ctx, task.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
	_, total, err := s.ListTasks(ctx, models.TaskFilter{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Zero(t, total)
}
