package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const fileName = "localstorage.json"

// Store provides thread-safe key-value storage persisted as a single JSON
// document, the file-backed equivalent of a browser's local storage
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates a new local JSON store under basePath
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{path: filepath.Join(basePath, fileName)}, nil
}

// Path returns the backing file location
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored under key
func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set merges values into the document and rewrites it atomically
func (s *Store) Set(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}
	return s.write(current)
}

// Keys returns all stored keys in sorted order
func (s *Store) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) read() (map[string]string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	values := map[string]string{}
	if err := json.NewDecoder(file).Decode(&values); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return values, nil
}

// write replaces the document via a temp file so readers never observe a
// partially written state
func (s *Store) write(values map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), fileName+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(values); err != nil {
		tmp.Close()
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
