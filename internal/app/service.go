// Package service provides the points engine that implements the dependencies
// required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/policy"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Store backends selectable through WithStoreKind.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

const (
	defaultDedupeSize       = 50000
	defaultMaxRetries       = 10
	defaultLeaderboardLimit = 1000
	defaultTop              = 10
	defaultPageLimit        = 100
	defaultPageSize         = 50
	defaultRecentActivities = 50
	defaultSQLitePath       = "data/tally.db"
)

// Service implements the API dependencies for the points engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	ownsStore  bool
	deduper    dedupe.Deduper
	tasks      *policy.TaskPolicy
	activities *policy.ActivityPolicy
	now        func() time.Time

	// Configuration
	storeKind        string
	sqlitePath       string
	maxRetries       int
	dedupeSize       int
	leaderboardLimit int
	defaultTop       int
	pageLimit        int
	recentActivities int

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a ready store. The service does not close injected stores.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreKind selects the backend opened by Start: StoreMemory or StoreSQLite.
func WithStoreKind(kind string) Option {
	return func(s *Service) {
		if kind != "" {
			s.storeKind = kind
		}
	}
}

// WithSQLitePath sets the database file used by the sqlite backend.
func WithSQLitePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.sqlitePath = path
		}
	}
}

// WithMaxRetries bounds the optimistic retries of one sqlite account update.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithDedupeSize sets the size of the idempotency key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for activity timestamps and timeframes.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithTaskPolicy replaces the default task points policy.
func WithTaskPolicy(p *policy.TaskPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.tasks = p
		}
	}
}

// WithActivityPolicy replaces the default activity points policy.
func WithActivityPolicy(p *policy.ActivityPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.activities = p
		}
	}
}

// WithLeaderboardLimit caps the size of one leaderboard request.
func WithLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leaderboardLimit = n
		}
	}
}

// WithDefaultTop sets how many top users the dashboard summaries include.
func WithDefaultTop(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultTop = n
		}
	}
}

// WithPageLimit caps the page size of activity listings.
func WithPageLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageLimit = n
		}
	}
}

// WithRecentActivityLimit sets how many records the activity dashboard returns.
func WithRecentActivityLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentActivities = n
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		tasks:            policy.NewTaskPolicy(),
		activities:       policy.NewActivityPolicy(),
		now:              time.Now,
		storeKind:        StoreMemory,
		sqlitePath:       defaultSQLitePath,
		maxRetries:       defaultMaxRetries,
		dedupeSize:       defaultDedupeSize,
		leaderboardLimit: defaultLeaderboardLimit,
		defaultTop:       defaultTop,
		pageLimit:        defaultPageLimit,
		recentActivities: defaultRecentActivities,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store and the idempotency cache. Calling Start on a started
// service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting points service...")

	if s.store == nil {
		store, err := s.openStore()
		if err != nil {
			s.logger.Error(ctx, "failed to open store", logger.String("store", s.storeKind), logger.Error(err))
			metrics.RecordErrorByComponent("service", "store_open")
			return fmt.Errorf("%w: open %s store: %w", ErrStorage, s.storeKind, err)
		}
		s.store = store
		s.ownsStore = true
		s.logger.Info(ctx, "store opened", logger.String("store", s.storeKind))
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)

	if n, err := s.store.CountAccounts(ctx); err == nil {
		metrics.UpdateTotalAccounts(n)
	}

	s.started = true
	s.logger.Info(ctx, "points service started",
		logger.String("store", s.storeKind),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int64("centuryThreshold", s.tasks.CenturyThreshold()),
	)

	return nil
}

func (s *Service) openStore() (repository.Store, error) {
	switch s.storeKind {
	case StoreMemory:
		return repository.NewMemoryStore(repository.WithMemoryClock(s.now)), nil
	case StoreSQLite:
		return repository.OpenSQLite(s.sqlitePath,
			repository.WithMaxRetries(s.maxRetries),
			repository.WithGormClock(s.now),
		)
	}
	return nil, fmt.Errorf("unknown store kind %q", s.storeKind)
}

// Stop closes the store if the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping points service...")

	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close store", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(context.Background(), "points service stopped")
}

// backend returns the store of a started service.
func (s *Service) backend() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// SeenAndRecord atomically checks if an idempotency key was seen and records
// it if not. Returns true if the key was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	d := s.keys()
	if d == nil {
		return false
	}
	seen := d.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an idempotency key so a failed event can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	if d := s.keys(); d != nil {
		d.Unrecord(ctx, id)
	}
}

func (s *Service) keys() dedupe.Deduper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deduper
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"store":      s.storeKind,
		"dedupeSize": s.dedupeSize,
	}

	if s.started {
		ctx := context.Background()
		stats["idempotencyKeys"] = s.deduper.Size()
		if n, err := s.store.CountAccounts(ctx); err == nil {
			stats["totalAccounts"] = n
			metrics.UpdateTotalAccounts(n)
		}
		if n, err := s.store.CountActivities(ctx, repository.ActivityQuery{}); err == nil {
			stats["totalActivities"] = n
		}
	}

	return stats
}

// Size returns the current number of idempotency keys held.
func (s *Service) Size() int64 {
	d := s.keys()
	if d == nil {
		return 0
	}
	return d.Size()
}

// DefaultTop returns the configured number of top users in summaries.
func (s *Service) DefaultTop() int { return s.defaultTop }
