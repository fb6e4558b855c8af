package loadgen

import (
	"context"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// Task mix weights out of 10: regular, high priority, activity.
const (
	regularWeight      = 6
	highPriorityWeight = 3
)

// Plan is the generated workload together with the completions each user
// should end up with.
type Plan struct {
	Events   []Event
	Expected map[string]map[model.TaskType]int64
}

// Users returns the user ids of the plan in generation order.
func (p *Plan) Users() []string {
	seen := make(map[string]struct{}, len(p.Expected))
	out := make([]string, 0, len(p.Expected))
	for _, e := range p.Events {
		if _, ok := seen[e.UserID]; ok {
			continue
		}
		seen[e.UserID] = struct{}{}
		out = append(out, e.UserID)
	}
	return out
}

// generatePlan creates EventsPerUser events for Users fresh users. Events are
// interleaved across users so concurrent workers hit the same accounts.
func generatePlan(ctx context.Context, cfg *Config) *Plan {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // workload mix, not security

	users := make([]string, cfg.Users)
	for i := range users {
		users[i] = uuid.NewString()
	}

	plan := &Plan{
		Events:   make([]Event, 0, cfg.Users*cfg.EventsPerUser),
		Expected: make(map[string]map[model.TaskType]int64, cfg.Users),
	}
	for _, u := range users {
		plan.Expected[u] = make(map[model.TaskType]int64, len(model.TaskTypes))
	}

	for round := 0; round < cfg.EventsPerUser; round++ {
		for i, u := range users {
			t := pickTaskType(rng)
			plan.Expected[u][t]++
			plan.Events = append(plan.Events, Event{
				EventID:  "evt_" + strconv.Itoa(round) + "_" + strconv.Itoa(i) + "_" + uuid.NewString()[:8],
				UserID:   u,
				TaskType: string(t),
			})
		}
	}

	logger.Get().Info(ctx, "generated workload",
		logger.Int("users", cfg.Users),
		logger.Int("events", len(plan.Events)),
	)
	return plan
}

func pickTaskType(rng *rand.Rand) model.TaskType {
	switch n := rng.IntN(10); {
	case n < regularWeight:
		return model.TaskRegular
	case n < regularWeight+highPriorityWeight:
		return model.TaskHighPriority
	default:
		return model.TaskActivity
	}
}
