// Package db persists the documentation vector index in SQLite.
package db

import "errors"

// Sentinel errors for index operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEmptyIndex indicates the index holds no chunks. Callers rebuild on it.
	ErrEmptyIndex = errors.New("index is empty")
)
