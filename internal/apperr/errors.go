// Package apperr defines sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidQuery   = errors.New("invalid query")
	ErrInvalidRequest = errors.New("invalid request")
	ErrCorruptNode    = errors.New("corrupt node")
)
