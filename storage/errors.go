package storage

import "errors"

// Common errors
var (
	ErrNotFound = errors.New("not found")
)
