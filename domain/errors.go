package domain

import "errors"

var (
	// ErrNotFound is returned when a lookup has no matching row
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits a uniqueness constraint that callers treat as success
	ErrDuplicate = errors.New("duplicate")
)
