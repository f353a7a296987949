// Package sqlstore implements the entity store over database/sql. The SQL is
// shared between SQLite and PostgreSQL; dialect differences are carried by Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bugtracker/internal/models"
	"bugtracker/internal/storage"
)

// Dialect describes how a database differs from the SQL this package emits.
type Dialect struct {
	Name string
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder func(n int) string
	// NoLimit is emitted before OFFSET when no LIMIT is requested. Empty when
	// the database accepts OFFSET on its own.
	NoLimit string
	// ReadTx are the options used for count-then-fetch listings.
	ReadTx *sql.TxOptions
	// Classify maps driver errors onto storage sentinels. It returns nil for
	// errors it does not recognize.
	Classify func(error) error
}

// Store wraps access to a SQL database and exposes the entity operations.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if dialect.Classify == nil {
		dialect.Classify = func(error) error { return nil }
	}
	return &Store{db: db, dialect: dialect, logger: logger}
}

// Bootstrap executes schema statements in order.
func (s *Store) Bootstrap(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	s.logger.Debug("schema ready", slog.String("dialect", s.dialect.Name))
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const (
	projectColumns = `id, name, description, created_at, updated_at`
	taskColumns    = `id, project_id, name, description, priority, status, created_at, updated_at`
)

var sortColumns = map[models.TaskSortField]string{
	models.SortByCreated:  "created_at",
	models.SortByPriority: "priority",
}

// ListProjects returns one page of projects ordered by creation date and the
// number of projects overall.
func (s *Store) ListProjects(ctx context.Context, page models.Page) ([]models.Project, int, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.ReadTx)
	if err != nil {
		return nil, 0, s.wrap("begin list projects", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, s.wrap("count projects", err)
	}

	q := s.newQuery()
	q.WriteString(`SELECT ` + projectColumns + ` FROM projects ORDER BY created_at ASC, id ASC`)
	q.page(page)

	rows, err := tx.QueryContext(ctx, q.String(), q.args...)
	if err != nil {
		return nil, 0, s.wrap("list projects", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, s.wrap("list projects", err)
	}
	return projects, total, nil
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	q := s.newQuery()
	q.WriteString(`SELECT ` + projectColumns + ` FROM projects WHERE id = ` + q.arg(id))
	p, err := scanProject(s.db.QueryRowContext(ctx, q.String(), q.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Project{}, s.wrap("get project", err)
	}
	return p, nil
}

// CreateProject inserts p and returns it with the assigned id.
func (s *Store) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	q := s.newQuery()
	q.WriteString(`INSERT INTO projects(name, description, created_at, updated_at) VALUES(`)
	q.WriteString(strings.Join([]string{q.arg(p.Name), q.arg(p.Description), q.arg(p.CreatedAt.UTC()), q.arg(p.UpdatedAt.UTC())}, ", "))
	q.WriteString(`) RETURNING id`)

	if err := s.db.QueryRowContext(ctx, q.String(), q.args...).Scan(&p.ID); err != nil {
		return models.Project{}, s.wrap("insert project", err)
	}
	return p, nil
}

// UpdateProject writes the mutable project columns. A missing row is reported
// as storage.ErrConflict: the caller loaded it before, so it vanished mid-flight.
func (s *Store) UpdateProject(ctx context.Context, p models.Project) error {
	q := s.newQuery()
	q.WriteString(`UPDATE projects SET name = ` + q.arg(p.Name))
	q.WriteString(`, description = ` + q.arg(p.Description))
	q.WriteString(`, updated_at = ` + q.arg(p.UpdatedAt.UTC()))
	q.WriteString(` WHERE id = ` + q.arg(p.ID))
	return s.execSingle(ctx, "update project", q)
}

// DeleteProject removes a project along with its tasks and returns the removed row.
func (s *Store) DeleteProject(ctx context.Context, id int64) (models.Project, error) {
	var p models.Project
	err := s.deleteByID(ctx, "project", id, func(tx *sql.Tx) error {
		q := s.newQuery()
		q.WriteString(`SELECT ` + projectColumns + ` FROM projects WHERE id = ` + q.arg(id))
		var err error
		p, err = scanProject(tx.QueryRowContext(ctx, q.String(), q.args...))
		return err
	})
	if err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// ListTasks returns one page of the filtered tasks and the filtered count
// before paging. Both are read inside one transaction.
func (s *Store) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, int, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.ReadTx)
	if err != nil {
		return nil, 0, s.wrap("begin list tasks", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.newQuery()
	q.WriteString(` WHERE project_id = ` + q.arg(f.ProjectID))
	if f.Priority != nil {
		q.WriteString(` AND priority = ` + q.arg(*f.Priority))
	}
	if f.CreatedFrom != nil {
		q.WriteString(` AND created_at >= ` + q.arg(f.CreatedFrom.UTC()))
	}
	if f.CreatedBefore != nil {
		q.WriteString(` AND created_at < ` + q.arg(f.CreatedBefore.UTC()))
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+q.String(), q.args...).Scan(&total); err != nil {
		return nil, 0, s.wrap("count tasks", err)
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = sortColumns[models.SortByCreated]
	}
	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}
	q.WriteString(fmt.Sprintf(` ORDER BY %s %s, id %s`, column, dir, dir))
	q.page(f.Page)

	rows, err := tx.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+q.String(), q.args...)
	if err != nil {
		return nil, 0, s.wrap("list tasks", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, s.wrap("list tasks", err)
	}
	return tasks, total, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	q := s.newQuery()
	q.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ` + q.arg(id))
	t, err := scanTask(s.db.QueryRowContext(ctx, q.String(), q.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Task{}, s.wrap("get task", err)
	}
	return t, nil
}

// CreateTask inserts t and returns it with the assigned id. An unknown
// project surfaces as storage.ErrForeignKey.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	q := s.newQuery()
	q.WriteString(`INSERT INTO tasks(project_id, name, description, priority, status, created_at, updated_at) VALUES(`)
	q.WriteString(strings.Join([]string{
		q.arg(t.ProjectID), q.arg(t.Name), q.arg(t.Description), q.arg(t.Priority),
		q.arg(int(t.Status)), q.arg(t.CreatedAt.UTC()), q.arg(t.UpdatedAt.UTC()),
	}, ", "))
	q.WriteString(`) RETURNING id`)

	if err := s.db.QueryRowContext(ctx, q.String(), q.args...).Scan(&t.ID); err != nil {
		return models.Task{}, s.wrap("insert task", err)
	}
	return t, nil
}

// UpdateTask writes the mutable task columns. project_id and created_at are
// never part of the statement. A task that is Closed by the time the statement
// runs is left alone and reported as storage.ErrConflict.
func (s *Store) UpdateTask(ctx context.Context, t models.Task) error {
	q := s.newQuery()
	q.WriteString(`UPDATE tasks SET name = ` + q.arg(t.Name))
	q.WriteString(`, description = ` + q.arg(t.Description))
	q.WriteString(`, priority = ` + q.arg(t.Priority))
	q.WriteString(`, status = ` + q.arg(int(t.Status)))
	q.WriteString(`, updated_at = ` + q.arg(t.UpdatedAt.UTC()))
	q.WriteString(` WHERE id = ` + q.arg(t.ID))
	q.WriteString(` AND status <> ` + q.arg(int(models.StatusClosed)))
	return s.execSingle(ctx, "update task", q)
}

// DeleteTask removes a task by id and returns the removed row.
func (s *Store) DeleteTask(ctx context.Context, id int64) (models.Task, error) {
	var t models.Task
	err := s.deleteByID(ctx, "task", id, func(tx *sql.Tx) error {
		q := s.newQuery()
		q.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ` + q.arg(id))
		var err error
		t, err = scanTask(tx.QueryRowContext(ctx, q.String(), q.args...))
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// deleteByID loads the row through load and deletes it in the same
// transaction. A row that is absent, or removed by someone else before the
// delete runs, is storage.ErrNotFound.
func (s *Store) deleteByID(ctx context.Context, kind string, id int64, load func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin delete "+kind, err)
	}
	defer func() { _ = tx.Rollback() }()

	missing := fmt.Errorf("%s %d: %w", kind, id, storage.ErrNotFound)
	if err := load(tx); errors.Is(err, sql.ErrNoRows) {
		return missing
	} else if err != nil {
		return s.wrap("load "+kind, err)
	}

	q := s.newQuery()
	q.WriteString(`DELETE FROM ` + kind + `s WHERE id = ` + q.arg(id))
	res, err := tx.ExecContext(ctx, q.String(), q.args...)
	if err != nil {
		return s.wrap("delete "+kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return s.wrap("delete "+kind, err)
	}
	if affected == 0 {
		return missing
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("commit delete "+kind, err)
	}
	return nil
}

func (s *Store) execSingle(ctx context.Context, op string, q *query) error {
	res, err := s.db.ExecContext(ctx, q.String(), q.args...)
	if err != nil {
		return s.wrap(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return s.wrap(op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: no row matched: %w", op, storage.ErrConflict)
	}
	return nil
}

// wrap annotates err with op and, when the dialect recognizes it, a storage sentinel.
func (s *Store) wrap(op string, err error) error {
	if kind := s.dialect.Classify(err); kind != nil {
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (models.Project, error) {
	var p models.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Project{}, err
	}
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return p, nil
}

func scanTask(row scanner) (models.Task, error) {
	var t models.Task
	var status int
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Description, &t.Priority, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	t.Status = models.TaskStatus(status)
	t.CreatedAt, t.UpdatedAt = t.CreatedAt.UTC(), t.UpdatedAt.UTC()
	return t, nil
}
