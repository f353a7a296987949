package tracker

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound means the id does not resolve to a stored record.
	ErrNotFound = errors.New("not found")
	// ErrTaskClosed is returned for any edit of a task whose status is Closed.
	ErrTaskClosed = errors.New("task is closed and can no longer be modified")
	// ErrConflict is a write that raced another writer while the record still
	// exists. It is never retried.
	ErrConflict = errors.New("conflicting concurrent write")
)

// ValidationError describes client input that was rejected before any store
// access. Fields maps the JSON field name to the violated rule.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for field, rule := range e.Fields {
		parts = append(parts, field+": "+rule)
	}
	sort.Strings(parts)
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

// fieldErrors collects per-field violations.
type fieldErrors map[string]string

func (f fieldErrors) add(field, rule string) {
	if _, seen := f[field]; !seen {
		f[field] = rule
	}
}

func (f fieldErrors) err(message string) error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Message: message, Fields: f}
}

func invalidField(message, field, rule string) error {
	return &ValidationError{Message: message, Fields: map[string]string{field: rule}}
}
