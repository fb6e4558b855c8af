package loadgen

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/policy"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
)

// Mismatch describes one user whose server state differs from the plan.
type Mismatch struct {
	UserID string
	Reason string
}

// verifyUsers compares every user's summary with the totals projected by the
// task policy.
func verifyUsers(ctx context.Context, cfg *Config, client *HTTPClient, plan *Plan, tasks *policy.TaskPolicy, stats *Stats) []Mismatch {
	log := logger.Get().Named("loadgen")
	users := plan.Users()
	log.Info(ctx, "verifying users", logger.Int("users", len(users)))

	var (
		mu         sync.Mutex
		mismatches []Mismatch
	)
	check := worker.HandlerFunc[string](func(ctx context.Context, userID string) error {
		got, err := client.summary(ctx, userID)
		var reason string
		if err != nil {
			reason = err.Error()
		} else {
			reason = compareSummary(got, plan.Expected[userID], tasks)
		}
		stats.UsersVerified.Add(1)
		if reason == "" {
			return nil
		}
		stats.UsersMismatched.Add(1)
		mu.Lock()
		mismatches = append(mismatches, Mismatch{UserID: userID, Reason: reason})
		mu.Unlock()
		return fmt.Errorf("user %s: %s", userID, reason)
	})

	q := queue.NewInMemoryQueue[string](queue.WithCapacity(cfg.Workers*queueMultiplier), queue.WithName("loadgen-verify"))
	pool := worker.NewPool[string](cfg.Workers, q, check, worker.WithPool("loadgen-verify"))
	pool.Start(ctx)
	for _, u := range users {
		if err := q.Put(ctx, u); err != nil {
			break
		}
	}
	_ = q.Close()
	pool.Wait()

	if n := len(users) - int(stats.UsersVerified.Load()); n > 0 {
		mismatches = append(mismatches, Mismatch{Reason: fmt.Sprintf("%d users were not checked", n)})
	}
	return mismatches
}

// compareSummary returns an empty string when the summary matches the
// expected completions.
func compareSummary(got types.UserSummary, want map[model.TaskType]int64, tasks *policy.TaskPolicy) string {
	p := got.Progress
	switch {
	case p.TasksCompleted != want[model.TaskRegular]:
		return fmt.Sprintf("tasksCompleted %d, want %d", p.TasksCompleted, want[model.TaskRegular])
	case p.HighPriorityTasksCompleted != want[model.TaskHighPriority]:
		return fmt.Sprintf("highPriorityTasksCompleted %d, want %d", p.HighPriorityTasksCompleted, want[model.TaskHighPriority])
	case p.ActivitiesCompleted != want[model.TaskActivity]:
		return fmt.Sprintf("activitiesCompleted %d, want %d", p.ActivitiesCompleted, want[model.TaskActivity])
	}
	if total := tasks.ProjectTotal(want); got.TotalPoints != total {
		return fmt.Sprintf("totalPoints %d, want %d", got.TotalPoints, total)
	}
	return ""
}

// verifyLeaderboard checks the ordering and competition ranks of entries.
func verifyLeaderboard(entries []types.Entry) error {
	for i, e := range entries {
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("top entry has rank %d", e.Rank)
			}
			continue
		}
		prev := entries[i-1]
		switch {
		case e.TotalPoints > prev.TotalPoints:
			return fmt.Errorf("entry %d (%d points) is above entry %d (%d points)", i, e.TotalPoints, i-1, prev.TotalPoints)
		case e.TotalPoints == prev.TotalPoints && e.Rank != prev.Rank:
			return fmt.Errorf("tied entries %d and %d have ranks %d and %d", i-1, i, prev.Rank, e.Rank)
		case e.TotalPoints < prev.TotalPoints && e.Rank != i+1:
			return fmt.Errorf("entry %d has rank %d, want %d", i, e.Rank, i+1)
		}
	}
	return nil
}
