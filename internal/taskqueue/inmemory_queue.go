package taskqueue

import (
	"context"
	"sync"
	"time"
)

// InMemoryQueue is a Queue implementation backed by a mutex-guarded slice.
// It honors NotBefore the same way the SQLite queue does, but is non-durable
// and intended for tests and local development.
type InMemoryQueue struct {
	mu           sync.Mutex
	pending      []Continuation
	nextID       int64
	pollInterval time.Duration
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		pollInterval: 5 * time.Millisecond,
	}
}

// Ensure InMemoryQueue implements Queue.
var _ Queue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) Enqueue(ctx context.Context, c Continuation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	c.ID = q.nextID
	if c.EnqueuedAt.IsZero() {
		c.EnqueuedAt = time.Now()
	}
	if c.NotBefore.IsZero() {
		c.NotBefore = c.EnqueuedAt
	}
	q.pending = append(q.pending, c)
	return nil
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Continuation, error) {
	for {
		if c := q.takeDue(time.Now()); c != nil {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

// takeDue removes and returns the earliest due continuation, or nil if
// nothing is due yet.
func (q *InMemoryQueue) takeDue(now time.Time) *Continuation {
	q.mu.Lock()
	defer q.mu.Unlock()

	best := -1
	for i, c := range q.pending {
		if c.NotBefore.After(now) {
			continue
		}
		if best < 0 || c.NotBefore.Before(q.pending[best].NotBefore) ||
			(c.NotBefore.Equal(q.pending[best].NotBefore) && c.ID < q.pending[best].ID) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	c := q.pending[best]
	q.pending = append(q.pending[:best], q.pending[best+1:]...)
	return &c
}

func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
