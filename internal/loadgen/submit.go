package loadgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/pkg/logger"
)

const (
	queueName         = "loadgen"
	queueMultiplier   = 2
	throttleBaseDelay = 20 * time.Millisecond
)

var errRetriesExhausted = errors.New("rate limited or still in flight")

// submitter is the worker Handler posting events. Throttled events and
// replays racing their original are retried with backoff.
type submitter struct {
	client  *HTTPClient
	stats   *Stats
	retries int
	log     logger.Logger
	verbose bool
}

func (s *submitter) Handle(ctx context.Context, e Event) error {
	for attempt := 0; ; attempt++ {
		res, err := s.client.submit(ctx, e)
		switch res {
		case submitAccepted:
			s.stats.EventsAccepted.Add(1)
			return nil
		case submitDuplicate:
			s.stats.EventsDuplicate.Add(1)
			return nil
		case submitThrottled, submitInFlight:
			if attempt >= s.retries {
				s.stats.EventsFailed.Add(1)
				return fmt.Errorf("event %s: %w after %d retries", e.EventID, errRetriesExhausted, attempt)
			}
			s.stats.EventsRetried.Add(1)
			select {
			case <-ctx.Done():
				s.stats.EventsFailed.Add(1)
				return ctx.Err()
			case <-time.After(throttleBaseDelay << min(attempt, 5)):
			}
		default:
			s.stats.EventsFailed.Add(1)
			if s.verbose {
				s.log.Warn(ctx, "event failed", logger.String("eventId", e.EventID), logger.Error(err))
			}
			return fmt.Errorf("event %s: %w", e.EventID, err)
		}
	}
}

// submitEvents pushes the plan through a bounded queue drained by a worker
// pool. Every DuplicateEvery-th event is queued a second time with the same
// id.
func submitEvents(ctx context.Context, cfg *Config, client *HTTPClient, plan *Plan, stats *Stats) error {
	log := logger.Get().Named("loadgen")
	log.Info(ctx, "submitting events", logger.Int("events", len(plan.Events)), logger.Int("workers", cfg.Workers))

	q := queue.NewInMemoryQueue[Event](queue.WithCapacity(cfg.Workers*queueMultiplier), queue.WithName(queueName))
	pool := worker.NewPool[Event](cfg.Workers, q, &submitter{
		client:  client,
		stats:   stats,
		retries: cfg.MaxRetries,
		log:     log,
		verbose: cfg.Verbose,
	}, worker.WithPool(queueName))
	pool.Start(ctx)

	var putErr error
	for i, e := range plan.Events {
		if putErr = q.Put(ctx, e); putErr != nil {
			break
		}
		stats.EventsSubmitted.Add(1)
		if cfg.DuplicateEvery > 0 && (i+1)%cfg.DuplicateEvery == 0 {
			if putErr = q.Put(ctx, e); putErr != nil {
				break
			}
			stats.EventsSubmitted.Add(1)
		}
	}
	_ = q.Close()
	pool.Wait()

	if putErr != nil {
		return fmt.Errorf("failed to queue events: %w", putErr)
	}
	log.Info(ctx, "event submission completed",
		logger.Int64("accepted", stats.EventsAccepted.Load()),
		logger.Int64("duplicate", stats.EventsDuplicate.Load()),
		logger.Int64("retried", stats.EventsRetried.Load()),
		logger.Int64("failed", stats.EventsFailed.Load()),
	)
	return nil
}
