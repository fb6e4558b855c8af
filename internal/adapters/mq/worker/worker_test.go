package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/internal/adapters/mq/worker"
	logging "github.com/okian/tally/pkg/logger"
)

type job struct {
	ID     string
	UserID string
}

// recorder is a Handler that remembers every job it saw.
type recorder struct {
	mu     sync.Mutex
	seen   map[string]int
	errors map[string]error
}

func newRecorder() *recorder {
	return &recorder{seen: make(map[string]int), errors: make(map[string]error)}
}

func (r *recorder) Handle(_ context.Context, j job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[j.ID]++
	return r.errors[j.ID]
}

func (r *recorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[id]
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.seen {
		n += c
	}
	return n
}

func init() {
	_ = logging.Init(logging.WithWriter(io.Discard))
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		q := queue.NewInMemoryQueue[job](queue.WithCapacity(10))
		h := newRecorder()
		w := worker.NewInMemoryWorker[job](q, h, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs are queued and the queue is closed", func() {
			convey.So(q.Enqueue(ctx, job{ID: "j1"}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, job{ID: "j2"}), convey.ShouldBeTrue)
			_ = q.Close()

			convey.Convey("Then every job is handled and the worker stops", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					t.Fatal("worker did not stop")
				}
				convey.So(h.count("j1"), convey.ShouldEqual, 1)
				convey.So(h.count("j2"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a job fails", func() {
			h.errors["bad"] = errors.New("boom")
			convey.So(q.Enqueue(ctx, job{ID: "bad"}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, job{ID: "good"}), convey.ShouldBeTrue)
			_ = q.Close()

			convey.Convey("Then the worker keeps going", func() {
				<-w.Done()
				convey.So(h.count("good"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it returns and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestHandlerFunc(t *testing.T) {
	convey.Convey("Given a handler function", t, func() {
		var got string
		h := worker.HandlerFunc[job](func(_ context.Context, j job) error {
			got = j.ID
			return nil
		})

		convey.Convey("Then it satisfies Handler", func() {
			convey.So(h.Handle(context.Background(), job{ID: "x"}), convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, "x")
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of four workers", t, func() {
		q := queue.NewInMemoryQueue[job](queue.WithCapacity(50), queue.WithName("pool-test"))
		h := newRecorder()
		p := worker.NewPool[job](4, q, h, worker.WithPool("pool-test"))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		convey.So(p.Size(), convey.ShouldEqual, 4)
		p.Start(ctx)

		convey.Convey("When many jobs are put and the queue is closed", func() {
			for i := 0; i < 200; i++ {
				convey.So(q.Put(ctx, job{ID: fmt.Sprintf("job-%d", i)}), convey.ShouldBeNil)
			}
			_ = q.Close()
			p.Wait()

			convey.Convey("Then every job is handled exactly once", func() {
				convey.So(h.total(), convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When the pool is shut down", func() {
			err := p.Shutdown(ctx)

			convey.Convey("Then the queue is closed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool without an explicit size", t, func() {
		q := queue.NewInMemoryQueue[job]()
		p := worker.NewPool[job](0, q, newRecorder())

		convey.Convey("Then it sizes itself from the CPU count", func() {
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
