// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
)

// TaskPoints overrides one row of the task points table.
type TaskPoints struct {
	Base     int64 `koanf:"base"`
	Interval int64 `koanf:"interval"`
	Bonus    int64 `koanf:"bonus"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the ledger backend: memory or sqlite.
	Store string `koanf:"store"`

	// SQLitePath is the database file of the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// MaxRetries bounds the optimistic retries of one sqlite account update.
	MaxRetries int `koanf:"max_retries"`

	// DedupeSize sets the size of the idempotency key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DefaultTop is the number of top users in the dashboard summaries.
	DefaultTop int `koanf:"default_top"`

	// MaxPageLimit caps GET /activities?limit.
	MaxPageLimit int `koanf:"max_page_limit"`

	// RecentActivityLimit is the number of records on the activity dashboard.
	RecentActivityLimit int `koanf:"recent_activity_limit"`

	// RateLimitRPS and RateLimitBurst shape the per-client write limiter.
	// A zero rate disables it.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// TrustedProxies lists the proxy addresses or CIDR blocks whose
	// X-Real-IP and X-Forwarded-For headers key the limiter. Empty means the
	// socket address is always used.
	TrustedProxies []string `koanf:"trusted_proxies"`

	// CenturyThreshold and CenturyBonus configure the one-time century bonus.
	CenturyThreshold int64 `koanf:"century_threshold"`
	CenturyBonus     int64 `koanf:"century_bonus"`

	// TaskPoints overrides rows of the task table, keyed by task type.
	TaskPoints map[string]TaskPoints `koanf:"task_points"`

	// ActivityPoints overrides cells of the activity table, keyed by activity
	// type and then difficulty.
	ActivityPoints map[string]map[string]int64 `koanf:"activity_points"`

	// StreakDays and StreakBonus pay StreakBonus per StreakDays distinct active days.
	StreakDays  int   `koanf:"streak_days"`
	StreakBonus int64 `koanf:"streak_bonus"`

	// MilestoneBonus is paid per milestone activity.
	MilestoneBonus int64 `koanf:"milestone_bonus"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Store:               "memory",
		SQLitePath:          "data/tally.db",
		MaxRetries:          10,
		DedupeSize:          50_000,
		MaxLeaderboardLimit: 1000,
		DefaultTop:          10,
		MaxPageLimit:        100,
		RecentActivityLimit: 50,
		RateLimitRPS:        50,
		RateLimitBurst:      100,
		CenturyThreshold:    100,
		CenturyBonus:        100,
		StreakDays:          7,
		StreakBonus:         50,
		MilestoneBonus:      100,
	}
	return c
}
