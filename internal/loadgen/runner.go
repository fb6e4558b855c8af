package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/tally/internal/domain/policy"
	"github.com/okian/tally/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
	percent             = 100
)

// Run executes a complete load run: health check, generation, submission and
// verification. tasks must match the server's task policy.
func Run(ctx context.Context, cfg *Config, tasks *policy.TaskPolicy) (Report, error) {
	if err := cfg.validate(); err != nil {
		return Report{}, err
	}
	if tasks == nil {
		tasks = policy.NewTaskPolicy()
	}
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("eventsPerUser", cfg.EventsPerUser),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := client.health(ctx); err != nil {
		return Report{}, errors.Join(ErrUnhealthy, err)
	}

	plan := generatePlan(ctx, cfg)
	stats.EventsGenerated = len(plan.Events)
	if cfg.OutputFile != "" {
		if err := saveEvents(cfg.OutputFile, plan.Events); err != nil {
			log.Warn(ctx, "failed to save events to file", logger.Error(err))
		}
	}

	if err := submitEvents(ctx, cfg, client, plan, stats); err != nil {
		return stats.finish(), fmt.Errorf("event submission failed: %w", err)
	}

	var failures []error
	for _, m := range verifyUsers(ctx, cfg, client, plan, tasks, stats) {
		failures = append(failures, fmt.Errorf("user %q: %s", m.UserID, m.Reason))
	}

	board, err := client.leaderboard(ctx, cfg.TopN)
	if err != nil {
		failures = append(failures, fmt.Errorf("leaderboard: %w", err))
	} else {
		stats.LeaderboardSize = len(board)
		if err := verifyLeaderboard(board); err != nil {
			failures = append(failures, fmt.Errorf("leaderboard: %w", err))
		}
	}

	report := stats.finish()
	logReport(ctx, log, report)
	if len(failures) > 0 {
		return report, errors.Join(append([]error{ErrVerification}, failures...)...)
	}
	log.Info(ctx, "load run passed")
	return report, nil
}

func (s *Stats) finish() Report {
	s.Duration = time.Since(s.StartTime)
	return s.report()
}

func logReport(ctx context.Context, log logger.Logger, r Report) {
	var acceptRate, eventsPerSecond float64
	if r.EventsSubmitted > 0 {
		acceptRate = float64(r.EventsAccepted) / float64(r.EventsSubmitted) * percent
	}
	if r.Duration > 0 {
		eventsPerSecond = float64(r.EventsSubmitted) / r.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("eventsGenerated", r.EventsGenerated),
		logger.Int64("eventsSubmitted", r.EventsSubmitted),
		logger.Int64("eventsAccepted", r.EventsAccepted),
		logger.Int64("eventsDuplicate", r.EventsDuplicate),
		logger.Int64("eventsRetried", r.EventsRetried),
		logger.Int64("eventsFailed", r.EventsFailed),
		logger.Int64("usersVerified", r.UsersVerified),
		logger.Int64("usersMismatched", r.UsersMismatched),
		logger.Int("leaderboardEntries", r.LeaderboardSize),
		logger.Duration("duration", r.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("eventsPerSecond", eventsPerSecond),
	)
}

// saveEvents writes the generated events as a JSON array.
func saveEvents(filename string, events []Event) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write events: %w", err)
	}
	return f.Close()
}
