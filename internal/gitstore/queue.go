package gitstore

import (
	"context"
	"sync"
)

// KeyedQueue serializes work per key. Callers for the same key run one at a
// time in arrival order; callers for different keys never wait on each other.
//
// Each key maps to the completion channel of the last task queued for it. A
// new task records its own channel as the tail and waits for the previous
// one to close.
type KeyedQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func NewKeyedQueue() *KeyedQueue {
	return &KeyedQueue{tails: make(map[string]chan struct{})}
}

// Do runs fn once every earlier task for key has finished. The slot is
// released when fn returns or panics, and a panic propagates to the caller.
// If ctx is cancelled while waiting, Do returns ctx.Err() without running fn
// and later tasks still run in order.
func (q *KeyedQueue) Do(ctx context.Context, key string, fn func() error) error {
	done := make(chan struct{})

	q.mu.Lock()
	prev := q.tails[key]
	q.tails[key] = done
	q.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			go func() {
				<-prev
				q.release(key, done)
			}()
			return ctx.Err()
		}
	}
	defer q.release(key, done)
	return fn()
}

func (q *KeyedQueue) release(key string, done chan struct{}) {
	q.mu.Lock()
	if q.tails[key] == done {
		delete(q.tails, key)
	}
	q.mu.Unlock()
	close(done)
}

// Len reports how many keys currently have queued or running work.
func (q *KeyedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}
