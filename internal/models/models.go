package models

import (
	"bytes"
	"cmp"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"time"
)

// Project groups the tasks of a single tracked product or effort.
type Project struct {
	ID          int64     `json:"projectId"`
	Name        string    `json:"projectName"`
	Description string    `json:"projectDescription"`
	CreatedAt   time.Time `json:"projectDateCreated"`
	UpdatedAt   time.Time `json:"projectDateUpdated"`
}

// Task is a single tracked issue belonging to a project.
type Task struct {
	ID          int64      `json:"taskId"`
	ProjectID   int64      `json:"projectId"`
	Name        string     `json:"taskName"`
	Description string     `json:"taskDescription"`
	Priority    int        `json:"taskPriority"`
	Status      TaskStatus `json:"taskStatus"`
	CreatedAt   time.Time  `json:"taskDateCreated"`
	UpdatedAt   time.Time  `json:"taskDateUpdated"`
}

// MaxPriority is the largest priority every store can hold (a 32-bit column).
const MaxPriority = math.MaxInt32

// TaskStatus is the lifecycle state of a task. It travels as an integer on the wire.
type TaskStatus int

const (
	StatusNew TaskStatus = iota
	StatusInProgress
	StatusClosed
)

var statusNames = map[TaskStatus]string{
	StatusNew:        "New",
	StatusInProgress: "InProgress",
	StatusClosed:     "Closed",
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s TaskStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "TaskStatus(" + strconv.Itoa(int(s)) + ")"
}

// UnmarshalJSON accepts either the integer value or the status name.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		for status, n := range statusNames {
			if n == name {
				*s = status
				return nil
			}
		}
		if v, err := strconv.Atoi(name); err == nil {
			*s = TaskStatus(v)
			return nil
		}
		return &json.UnmarshalTypeError{Value: "string " + strconv.Quote(name), Type: reflect.TypeOf(*s)}
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = TaskStatus(v)
	return nil
}

// Page selects a window of an ordered result. A nil Take means no upper bound.
type Page struct {
	Skip int
	Take *int
}

// Bounds returns the half-open index range of the page over n ordered items.
func (p Page) Bounds(n int) (lo, hi int) {
	lo = min(max(p.Skip, 0), n)
	hi = n
	if p.Take != nil {
		hi = lo + min(max(*p.Take, 0), n-lo)
	}
	return lo, hi
}

// TaskSortField names an attribute tasks can be ordered by.
type TaskSortField string

const (
	SortByCreated  TaskSortField = "TaskDateCreated"
	SortByPriority TaskSortField = "TaskPriority"
)

// TaskFilter is a normalized task listing request. Bounds are already
// date-truncated: CreatedFrom is inclusive, CreatedBefore exclusive.
type TaskFilter struct {
	ProjectID     int64
	Priority      *int
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	SortBy        TaskSortField
	Descending    bool
	Page          Page
}

// Matches reports whether t passes every filter condition.
func (f TaskFilter) Matches(t Task) bool {
	if t.ProjectID != f.ProjectID {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

// Compare orders a and b by the filter's sort key, breaking ties by id.
// Direction applies to the tie-breaker too so that flipping it reverses the sequence exactly.
func (f TaskFilter) Compare(a, b Task) int {
	var c int
	switch f.SortBy {
	case SortByPriority:
		c = cmp.Compare(a.Priority, b.Priority)
	default:
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	if c == 0 {
		c = cmp.Compare(a.ID, b.ID)
	}
	if f.Descending {
		return -c
	}
	return c
}
