package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a write collided with a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")
)
