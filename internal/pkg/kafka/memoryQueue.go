package kafka

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryQueue keeps jobs in process when no broker is reachable. It is both
// the Producer and the Consumer side.
type MemoryQueue struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan Delivery
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 100
	}
	return &MemoryQueue{tasks: make(chan Delivery, size)}
}

func (q *MemoryQueue) SendMessage(ctx context.Context, key string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.tasks <- Delivery{Key: []byte(key), Value: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Fetch(ctx context.Context) (Delivery, error) {
	select {
	case d, ok := <-q.tasks:
		if !ok {
			return Delivery{}, ErrClosed
		}
		return d, nil
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// Close is safe to call from both sides.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	return nil
}
