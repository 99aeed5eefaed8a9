package sqlite

import "github.com/felixgeelhaar/refacto/internal/storage"

// Ensure SQLite stores implement the storage interfaces.
var _ storage.KV = (*KVStore)(nil)
