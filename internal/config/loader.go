package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "TALLY_"
	EnvConfigFile = "TALLY_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if TALLY_CONFIG is set
//  3. env (prefix TALLY_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// TALLY_MAX_PAGE_LIMIT -> max_page_limit; underscores are kept to match
	// the koanf tags, so the tables can only be overridden from the file.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != "memory" && c.Store != "sqlite":
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == "sqlite" && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	case c.MaxRetries < 1, c.DedupeSize < 1:
		return fmt.Errorf("%w: max_retries and dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1, c.DefaultTop < 1, c.MaxPageLimit < 1, c.RecentActivityLimit < 1:
		return fmt.Errorf("%w: limits must be positive", ErrInvalidConfig)
	case c.RateLimitRPS < 0 || c.RateLimitBurst < 0:
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	case c.RateLimitRPS > 0 && c.RateLimitBurst < 1:
		return fmt.Errorf("%w: rate_limit_burst must be positive when rate limiting", ErrInvalidConfig)
	case c.CenturyThreshold < 1 || c.CenturyBonus < 0:
		return fmt.Errorf("%w: century bonus settings out of range", ErrInvalidConfig)
	case c.StreakDays < 1 || c.StreakBonus < 0 || c.MilestoneBonus < 0:
		return fmt.Errorf("%w: activity bonus settings out of range", ErrInvalidConfig)
	}
	for _, p := range c.TrustedProxies {
		p = strings.TrimSpace(p)
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			return fmt.Errorf("%w: trusted_proxies: invalid address %q", ErrInvalidConfig, p)
		}
	}
	if _, err := c.TaskRules(); err != nil {
		return err
	}
	if _, err := c.ActivityTable(); err != nil {
		return err
	}
	return nil
}
