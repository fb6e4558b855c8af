package policy

import (
	"github.com/okian/tally/internal/domain/model"
)

// TaskOption applies a configuration option to a TaskPolicy.
type TaskOption func(*TaskPolicy)

// WithTaskRules replaces the rules of the listed task types. Rules with a
// negative field are ignored.
func WithTaskRules(rules map[model.TaskType]TaskRule) TaskOption {
	return func(p *TaskPolicy) {
		for t, r := range rules {
			if !t.Valid() || r.BasePoints < 0 || r.BonusInterval < 0 || r.BonusPoints < 0 {
				continue
			}
			p.rules[t] = r
		}
	}
}

// WithCenturyBonus sets the one-time bonus threshold and amount.
func WithCenturyBonus(threshold, points int64) TaskOption {
	return func(p *TaskPolicy) {
		if threshold > 0 {
			p.centuryThreshold = threshold
		}
		if points >= 0 {
			p.centuryPoints = points
		}
	}
}

// ActivityOption applies a configuration option to an ActivityPolicy.
type ActivityOption func(*ActivityPolicy)

// WithActivityPoints overrides cells of the type × difficulty table.
func WithActivityPoints(table map[model.ActivityType]map[model.Difficulty]int64) ActivityOption {
	return func(p *ActivityPolicy) {
		for a, row := range table {
			if !a.Valid() {
				continue
			}
			dst, ok := p.table[a]
			if !ok {
				dst = make(map[model.Difficulty]int64, len(row))
				p.table[a] = dst
			}
			for d, pts := range row {
				if d.Valid() && pts >= 0 {
					dst[d] = pts
				}
			}
		}
	}
}

// WithStreakBonus awards points for every full run of days distinct active days.
func WithStreakBonus(days int, points int64) ActivityOption {
	return func(p *ActivityPolicy) {
		if days > 0 {
			p.streakDays = days
		}
		if points >= 0 {
			p.streakPoints = points
		}
	}
}

// WithMilestoneBonus sets the bonus for each milestone-type record.
func WithMilestoneBonus(points int64) ActivityOption {
	return func(p *ActivityPolicy) {
		if points >= 0 {
			p.milestonePoints = points
		}
	}
}
