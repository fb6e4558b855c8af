// Package worker runs pools of goroutines that drain a job queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Handler processes one job.
type Handler[T any] interface {
	Handle(ctx context.Context, job T) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T any] func(ctx context.Context, job T) error

// Handle calls f(ctx, job).
func (f HandlerFunc[T]) Handle(ctx context.Context, job T) error { return f(ctx, job) }

// Queue defines how workers receive jobs.
type Queue[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Worker drains a queue until it closes or is shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker[T any] struct {
	queue   Queue[T]
	handler Handler[T]
	name    string
	pool    string

	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker[T any](queue Queue[T], handler Handler[T], opts ...Option) *InMemoryWorker[T] {
	cfg := settings{name: "worker", pool: "default", logger: logger.Get()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryWorker[T]{
		queue:    queue,
		handler:  handler,
		name:     cfg.name,
		pool:     cfg.pool,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   cfg.logger.Named(cfg.name),
	}
}

// Run starts the worker loop.
func (w *InMemoryWorker[T]) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker[T]) Done() <-chan struct{} { return w.done }

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker[T]) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker[T]) process(ctx context.Context, job T) {
	start := time.Now()
	err := w.handler.Handle(ctx, job)
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		metrics.RecordJobProcessed(w.pool, "error", latency)
		metrics.RecordErrorByComponent("worker", "handler_error")
		w.logger.Debug(ctx, "job failed", logger.Error(err))
		return
	}
	metrics.RecordJobProcessed(w.pool, "ok", latency)
}

// Pool manages multiple workers over one queue.
type Pool[T any] struct {
	workers []*InMemoryWorker[T]
	queue   Queue[T]
	name    string
	wg      sync.WaitGroup

	logger logger.Logger
}

// NewPool creates a new worker pool. A workerCount below one uses twice the
// number of CPUs.
func NewPool[T any](workerCount int, queue Queue[T], handler Handler[T], opts ...Option) *Pool[T] {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	cfg := settings{pool: "default", logger: logger.Get()}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool[T]{
		workers: make([]*InMemoryWorker[T], workerCount),
		queue:   queue,
		name:    cfg.pool,
		logger:  cfg.logger.Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(queue, handler,
			WithName("worker-"+strconv.Itoa(i)),
			WithPool(cfg.pool),
			WithLogger(cfg.logger),
		)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool[T]) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool[T]) Start(ctx context.Context) {
	metrics.UpdateWorkersActive(p.name, len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker[T]) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned, which happens once the queue
// is closed and drained.
func (p *Pool[T]) Wait() {
	p.wg.Wait()
	metrics.UpdateWorkersActive(p.name, 0)
}

// Shutdown closes the queue when it can be closed and stops every worker.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkersActive(p.name, 0)
	return firstErr
}
