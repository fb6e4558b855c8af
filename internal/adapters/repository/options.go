package repository

import "time"

const (
	defaultLockStripes = 256
	defaultMaxRetries  = 10
)

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock sets the clock used for account timestamps.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLockStripes sets the number of per-user lock stripes.
func WithLockStripes(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.stripes = n
		}
	}
}

// GormOption applies a configuration option to the GormStore.
type GormOption func(*GormStore)

// WithMaxRetries bounds the optimistic retries of one account update.
func WithMaxRetries(n int) GormOption {
	return func(s *GormStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithGormClock sets the clock used for account timestamps.
func WithGormClock(clock func() time.Time) GormOption {
	return func(s *GormStore) {
		if clock != nil {
			s.now = clock
		}
	}
}
