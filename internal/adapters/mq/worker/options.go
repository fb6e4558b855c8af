package worker

import (
	"github.com/okian/tally/pkg/logger"
)

type settings struct {
	name   string
	pool   string
	logger logger.Logger
}

// Option applies a configuration option to a worker or pool.
type Option func(*settings)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithPool sets the pool label used in metrics.
func WithPool(pool string) Option {
	return func(s *settings) {
		if pool != "" {
			s.pool = pool
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
