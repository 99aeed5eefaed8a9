package challenge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
)

// ErrQueryClosed is returned by calls started after Close
var ErrQueryClosed = errors.New("query closed")

// Policy decides how overlapping calls of one query kind interact
type Policy string

const (
	// PolicyRace lets calls overlap; the last one to complete wins
	PolicyRace Policy = "race"

	// PolicySerialize runs one call at a time and queues the rest
	PolicySerialize Policy = "serialize"
)

// QueryOptions configures a Query
type QueryOptions struct {
	Policy       Policy
	MaxQueue     int
	QueueTimeout time.Duration
}

// QueryState is a snapshot of a query: whether calls are in flight, the
// last successful result and the error of the last completed call.
type QueryState[T any] struct {
	Pending   bool
	Result    T
	HasResult bool
	Err       error
}

// Query tracks an on-demand backend call whose result is shown until the
// next one replaces it. A failed call keeps the previous result visible.
type Query[T any] struct {
	name     string
	bulkhead bulkhead.Bulkhead[T]
	inflight sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	epoch   uint64
	pending int
	result  T
	has     bool
	err     error
}

// NewQuery creates a query named for logs
func NewQuery[T any](name string, opts QueryOptions) *Query[T] {
	q := &Query[T]{name: name}

	if opts.Policy == PolicySerialize {
		maxQueue := opts.MaxQueue
		if maxQueue <= 0 {
			maxQueue = 4
		}
		timeout := opts.QueueTimeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		q.bulkhead = bulkhead.New[T](bulkhead.Config{
			MaxConcurrent: 1,
			MaxQueue:      maxQueue,
			QueueTimeout:  timeout,
		})
	}

	return q
}

// Call is one started request
type Call[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Done is closed when the call completes
func (c *Call[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call completes or ctx ends. Abandoning the wait
// does not stop the call.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func failedCall[T any](err error) *Call[T] {
	c := &Call[T]{done: make(chan struct{}), err: err}
	close(c.done)
	return c
}

// Start runs fn in the background. fn does not inherit ctx cancellation;
// only its values.
func (q *Query[T]) Start(ctx context.Context, fn func(context.Context) (T, error)) *Call[T] {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return failedCall[T](fmt.Errorf("%s: %w", q.name, ErrQueryClosed))
	}
	q.pending++
	epoch := q.epoch
	q.inflight.Add(1)
	q.mu.Unlock()

	call := &Call[T]{done: make(chan struct{})}
	bg := context.WithoutCancel(ctx)

	go func() {
		defer q.inflight.Done()
		defer close(call.done)

		var (
			result T
			err    error
		)
		if q.bulkhead != nil {
			result, err = q.bulkhead.Execute(bg, fn)
		} else {
			result, err = fn(bg)
		}
		if err != nil {
			err = fmt.Errorf("%s: %w", q.name, err)
		}

		call.result, call.err = result, err
		q.complete(epoch, result, err)
	}()

	return call
}

func (q *Query[T]) complete(epoch uint64, result T, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if epoch != q.epoch {
		return
	}

	q.pending--
	q.err = err
	if err == nil {
		q.result = result
		q.has = true
	}
}

// State returns a snapshot
func (q *Query[T]) State() QueryState[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueryState[T]{
		Pending:   q.pending > 0,
		Result:    q.result,
		HasResult: q.has,
		Err:       q.err,
	}
}

// Reset clears the state. Calls still in flight complete but their results
// are discarded.
func (q *Query[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	q.epoch++
	q.pending = 0
	q.result = zero
	q.has = false
	q.err = nil
}

// Close refuses new calls, waits for the ones in flight and releases the
// serialize queue. It is safe to call more than once.
func (q *Query[T]) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.inflight.Wait()
	if q.bulkhead != nil {
		return q.bulkhead.Close()
	}
	return nil
}
