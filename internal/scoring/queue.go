package scoring

import (
	"context"
	"errors"
)

var ErrQueueFull = errors.New("scoring queue is full")

// Queue carries application ids to scoring workers with at-least-once
// delivery. Dequeued ids stay in flight until acknowledged.
type Queue interface {
	Enqueue(ctx context.Context, id int64) error
	Dequeue(ctx context.Context) (int64, error)
	Ack(ctx context.Context, id int64) error
	// Recover moves ids left in flight by a previous process back to the queue.
	Recover(ctx context.Context) (int, error)
}

// MemoryQueue is a process-local queue. Anything lost on restart is picked
// up again by the sweeper.
type MemoryQueue struct {
	items chan int64
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{items: make(chan int64, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, id int64) error {
	select {
	case q.items <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (int64, error) {
	select {
	case id := <-q.items:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(context.Context, int64) error {
	return nil
}

func (q *MemoryQueue) Recover(context.Context) (int, error) {
	return 0, nil
}

func (q *MemoryQueue) Len() int {
	return len(q.items)
}
