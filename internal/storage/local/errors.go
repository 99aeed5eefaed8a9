package local

import "github.com/felixgeelhaar/refacto/internal/storage"

var (
	// ErrNotFound is returned when a key is not found
	ErrNotFound = storage.ErrNotFound
)
