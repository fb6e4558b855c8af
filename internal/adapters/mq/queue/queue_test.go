package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type job struct {
	ID     string
	UserID string
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue[job](WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if !q.Enqueue(ctx, job{ID: "job1", UserID: "u1"}) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "job1" {
		t.Errorf("expected job1, got %v", got.ID)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue[job](WithCapacity(2), WithName("capacity-test"))
	ctx := context.Background()

	if !q.Enqueue(ctx, job{ID: "job1"}) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, job{ID: "job2"}) {
		t.Error("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, job{ID: "job3"}) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue[job](WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, job{ID: "job1"}) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
	if err := q.Put(ctx, job{ID: "job1"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_PutWaitsForRoom(t *testing.T) {
	q := NewInMemoryQueue[job](WithCapacity(1))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := q.Put(ctx, job{ID: "job1"}); err != nil {
		t.Fatalf("expected put to succeed, got %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.Put(ctx, job{ID: "job2"}) }()

	out := q.Dequeue(ctx)
	for _, want := range []string{"job1", "job2"} {
		select {
		case got := <-out:
			if got.ID != want {
				t.Errorf("expected %s, got %s", want, got.ID)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	if err := <-done; err != nil {
		t.Errorf("expected blocked put to succeed, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue[job](WithCapacity(100))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const producers, perProducer = 10, 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if err := q.Put(ctx, job{ID: fmt.Sprintf("job%d_%d", id, j)}); err != nil {
					t.Errorf("put failed: %v", err)
					return
				}
			}
		}(i)
	}
	go func() {
		wg.Wait()
		_ = q.Close()
	}()

	seen := make(map[string]struct{}, producers*perProducer)
	for j := range q.Dequeue(ctx) {
		seen[j.ID] = struct{}{}
	}
	if len(seen) != producers*perProducer {
		t.Errorf("expected %d distinct jobs, got %d", producers*perProducer, len(seen))
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue[job](WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, job{ID: "job1"}) {
		t.Error("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, job{ID: "job2"}) {
		t.Error("expected enqueue to fail after closing")
	}
	if err := q.Put(ctx, job{ID: "job2"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// queued jobs are still delivered, then the channel closes
	var drained []string
	timeout := time.After(time.Second)
	out := q.Dequeue(ctx)
	for {
		select {
		case j, ok := <-out:
			if !ok {
				if len(drained) != 1 || drained[0] != "job1" {
					t.Errorf("expected [job1] to drain, got %v", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained = append(drained, j.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
