// Package loadgen drives concurrent task events against a running tally
// server and verifies the resulting totals and rankings.
package loadgen

import (
	"errors"
	"sync/atomic"
	"time"
)

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid load generator config")
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrVerification  = errors.New("verification failed")
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL        string        // Base URL of the service
	Users          int           // Number of distinct users
	EventsPerUser  int           // Task events per user
	Workers        int           // Concurrent submitters
	Timeout        time.Duration // HTTP request timeout
	TopN           int           // Leaderboard entries to check
	DuplicateEvery int           // Replay every Nth event id, 0 disables
	MaxRetries     int           // Retries of a rate limited event
	Seed           uint64        // Seed of the task type mix
	OutputFile     string        // Optional file receiving the generated events
	Verbose        bool
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is required"))
	case c.Users < 1:
		return errors.Join(ErrInvalidConfig, errors.New("users must be positive"))
	case c.EventsPerUser < 1:
		return errors.Join(ErrInvalidConfig, errors.New("events per user must be positive"))
	case c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	case c.TopN < 1:
		return errors.Join(ErrInvalidConfig, errors.New("top must be positive"))
	case c.DuplicateEvery < 0 || c.MaxRetries < 0:
		return errors.Join(ErrInvalidConfig, errors.New("duplicate interval and retries must not be negative"))
	}
	return nil
}

// Event is one task event submitted to /users/update.
type Event struct {
	EventID  string `json:"eventId"`
	UserID   string `json:"userId"`
	TaskType string `json:"taskType"`
}

// Stats holds run statistics. Counters are updated by concurrent workers.
type Stats struct {
	EventsGenerated int
	EventsSubmitted atomic.Int64
	EventsAccepted  atomic.Int64
	EventsDuplicate atomic.Int64
	EventsRetried   atomic.Int64
	EventsFailed    atomic.Int64
	UsersVerified   atomic.Int64
	UsersMismatched atomic.Int64
	LeaderboardSize int
	StartTime       time.Time
	Duration        time.Duration
}

// Report is a plain copy of Stats.
type Report struct {
	EventsGenerated int           `json:"eventsGenerated"`
	EventsSubmitted int64         `json:"eventsSubmitted"`
	EventsAccepted  int64         `json:"eventsAccepted"`
	EventsDuplicate int64         `json:"eventsDuplicate"`
	EventsRetried   int64         `json:"eventsRetried"`
	EventsFailed    int64         `json:"eventsFailed"`
	UsersVerified   int64         `json:"usersVerified"`
	UsersMismatched int64         `json:"usersMismatched"`
	LeaderboardSize int           `json:"leaderboardSize"`
	Duration        time.Duration `json:"duration"`
}

func (s *Stats) report() Report {
	return Report{
		EventsGenerated: s.EventsGenerated,
		EventsSubmitted: s.EventsSubmitted.Load(),
		EventsAccepted:  s.EventsAccepted.Load(),
		EventsDuplicate: s.EventsDuplicate.Load(),
		EventsRetried:   s.EventsRetried.Load(),
		EventsFailed:    s.EventsFailed.Load(),
		UsersVerified:   s.UsersVerified.Load(),
		UsersMismatched: s.UsersMismatched.Load(),
		LeaderboardSize: s.LeaderboardSize,
		Duration:        s.Duration,
	}
}
