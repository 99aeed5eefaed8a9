// Package storage defines the durable key-value contract used for
// process-wide client state such as the suggestion log.
package storage

import "errors"

// ErrNotFound is returned when a key has never been written
var ErrNotFound = errors.New("not found")

// KV is a small string key-value store. Set writes all given keys in one
// step: either every value is visible afterwards or none is.
type KV interface {
	Get(key string) (string, error)
	Set(values map[string]string) error

	// Keys lists stored keys in sorted order
	Keys() ([]string, error)
}
