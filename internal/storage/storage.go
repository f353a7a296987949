// Package storage holds the error contract shared by every entity store.
package storage

import "errors"

var (
	// ErrNotFound is returned when an id does not resolve to a stored record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write could not be applied because the row
	// changed underneath it: it vanished before commit, or the database reported
	// a serialization or lock conflict.
	ErrConflict = errors.New("write conflict")
	// ErrForeignKey is returned when a write references a parent that does not exist.
	ErrForeignKey = errors.New("referenced record does not exist")
)
