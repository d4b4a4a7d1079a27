package gitstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeyedQueue_SerializesSameKey(t *testing.T) {
	q := NewKeyedQueue()
	ctx := context.Background()

	var mu sync.Mutex
	running, maxRunning := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(ctx, "store", func() error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", maxRunning)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after all tasks finished, want 0", q.Len())
	}
}

func TestKeyedQueue_FIFO(t *testing.T) {
	q := NewKeyedQueue()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Do(ctx, "store", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = q.Do(ctx, "store", func() error {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				return nil
			})
		}(i)
		// Let each goroutine enqueue before the next one.
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	wg.Wait()

	for i, n := range order {
		if n != i {
			t.Fatalf("execution order = %v, want ascending", order)
		}
	}
}

func TestKeyedQueue_DifferentKeysRunConcurrently(t *testing.T) {
	q := NewKeyedQueue()
	ctx := context.Background()

	aStarted := make(chan struct{})
	bDone := make(chan struct{})

	go func() {
		_ = q.Do(ctx, "a", func() error {
			close(aStarted)
			<-bDone
			return nil
		})
	}()
	<-aStarted

	err := q.Do(ctx, "b", func() error {
		close(bDone)
		return nil
	})
	if err != nil {
		t.Fatalf("Do(b) error = %v", err)
	}
}

func TestKeyedQueue_ReleasesOnError(t *testing.T) {
	q := NewKeyedQueue()
	ctx := context.Background()
	boom := errors.New("boom")

	if err := q.Do(ctx, "store", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Do() error = %v, want %v", err, boom)
	}

	ran := false
	if err := q.Do(ctx, "store", func() error { ran = true; return nil }); err != nil {
		t.Fatalf("Do() after error = %v", err)
	}
	if !ran {
		t.Error("task after failing task did not run")
	}
}

func TestKeyedQueue_ReleasesOnPanic(t *testing.T) {
	q := NewKeyedQueue()
	ctx := context.Background()

	func() {
		defer func() {
			if r := recover(); r != "bad" {
				t.Fatalf("recovered %v, want the task's panic", r)
			}
		}()
		_ = q.Do(ctx, "store", func() error { panic("bad") })
		t.Error("Do() returned, want panic")
	}()

	if err := q.Do(ctx, "store", func() error { return nil }); err != nil {
		t.Fatalf("Do() after panic = %v", err)
	}
}

func TestKeyedQueue_CancelledWaiterKeepsOrder(t *testing.T) {
	q := NewKeyedQueue()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), "store", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	waiterErr := make(chan error, 1)
	go func() {
		waiterErr <- q.Do(ctx, "store", func() error {
			t.Error("cancelled task ran")
			return nil
		})
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	if err := <-waiterErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled Do() error = %v, want context.Canceled", err)
	}

	lastRan := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), "store", func() error {
			close(lastRan)
			return nil
		})
	}()

	select {
	case <-lastRan:
		t.Fatal("task ran before the holder released")
	case <-time.After(10 * time.Millisecond):
	}

	close(release)
	select {
	case <-lastRan:
	case <-time.After(time.Second):
		t.Fatal("task queued behind a cancelled waiter never ran")
	}
}
