// Package suggestion keeps the durable, append-only history of AI feedback
// together with the current score cell. The history is process-wide: it is
// not partitioned by task and the application never truncates it.
package suggestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/felixgeelhaar/refacto/internal/domain"
	"github.com/felixgeelhaar/refacto/internal/storage"
)

// Well-known keys in the durable store
const (
	KeyLog   = "arrayOfSuggestions"
	KeyScore = "score"
)

var ErrCorrupt = errors.New("suggestion log corrupt")

// Log is the suggestion history over a storage.KV. A single writer is
// assumed; the mutex only orders writers within this process.
type Log struct {
	kv storage.KV
	mu sync.Mutex
}

// NewLog creates a log over kv
func NewLog(kv storage.KV) *Log {
	return &Log{kv: kv}
}

// Append adds s to the end of the log and makes its score current. The log
// and the score are written together; on error neither changes.
func (l *Log) Append(s domain.Suggestion) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}

	if s.Hints == nil {
		s.Hints = []string{}
	}
	records = append(records, s)

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}

	if err := l.kv.Set(map[string]string{
		KeyLog:   string(data),
		KeyScore: strconv.Itoa(s.Score),
	}); err != nil {
		return fmt.Errorf("persist suggestion: %w", err)
	}
	return nil
}

// All returns every record in append order
func (l *Log) All() ([]domain.Suggestion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.load()
}

// Len returns the number of records
func (l *Log) Len() (int, error) {
	records, err := l.All()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// LatestScore returns the current score. ok is false when no suggestion has
// ever been recorded.
func (l *Log) LatestScore() (score int, ok bool, err error) {
	raw, err := l.kv.Get(KeyScore)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read score: %w", err)
	}

	score, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: score %q", ErrCorrupt, raw)
	}
	return score, true, nil
}

func (l *Log) load() ([]domain.Suggestion, error) {
	raw, err := l.kv.Get(KeyLog)
	if errors.Is(err, storage.ErrNotFound) {
		return []domain.Suggestion{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read suggestions: %w", err)
	}

	records := []domain.Suggestion{}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return records, nil
}
