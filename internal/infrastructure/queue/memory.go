// Package queue provides job trigger queues.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alchemorsel/dietgen/internal/ports/outbound"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("queue closed")

// MemoryQueue is a bounded in-process queue.
type MemoryQueue struct {
	items  chan string
	closed chan struct{}
	once   sync.Once
}

var _ outbound.JobQueue = (*MemoryQueue)(nil)

// NewMemoryQueue creates a queue holding up to capacity pending ids.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		items:  make(chan string, capacity),
		closed: make(chan struct{}),
	}
}

// Enqueue blocks while the queue is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.items <- jobID:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (string, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case id := <-q.items:
		return id, nil
	case <-q.closed:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", nil
	}
}

// Len reports pending ids.
func (q *MemoryQueue) Len() int {
	return len(q.items)
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
