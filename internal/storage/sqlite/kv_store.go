package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/refacto/internal/storage"
)

// KVStore implements storage.KV on the local_storage table.
type KVStore struct {
	db *DB
}

// NewKVStore creates a new SQLite-backed key-value store. The database must
// already be migrated.
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the value stored under key.
func (s *KVStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM local_storage WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set upserts all values in a single transaction.
func (s *KVStore) Set(values map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for key, value := range values {
		_, err := tx.Exec(`
			INSERT INTO local_storage (key, value, updated_at)
			VALUES (?, ?, datetime('now'))
			ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
			key, value)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Keys returns all stored keys in sorted order.
func (s *KVStore) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM local_storage ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
