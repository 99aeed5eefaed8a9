// Package memory provides an in-process storage.KV, used for ephemeral
// sessions and in tests.
package memory

import (
	"sort"
	"sync"

	"github.com/felixgeelhaar/refacto/internal/storage"
)

// Store is a map-backed storage.KV
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	failOn map[string]error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range values {
		if err := s.failOn[k]; err != nil {
			return err
		}
	}
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *Store) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// FailWrites makes every Set touching key fail with err. Passing a nil err
// clears the failure.
func (s *Store) FailWrites(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failOn == nil {
		s.failOn = make(map[string]error)
	}
	if err == nil {
		delete(s.failOn, key)
		return
	}
	s.failOn[key] = err
}
