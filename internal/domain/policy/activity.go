package policy

import (
	"github.com/okian/tally/internal/domain/model"
)

// Default activity policy constants.
const (
	defaultStreakDays      = 7
	defaultStreakPoints    = 50
	defaultMilestonePoints = 100
)

// DefaultActivityPoints returns a fresh copy of the built-in type × difficulty table.
func DefaultActivityPoints() map[model.ActivityType]map[model.Difficulty]int64 {
	row := func(easy, medium, hard, expert int64) map[model.Difficulty]int64 {
		return map[model.Difficulty]int64{
			model.DifficultyEasy:   easy,
			model.DifficultyMedium: medium,
			model.DifficultyHard:   hard,
			model.DifficultyExpert: expert,
		}
	}
	return map[model.ActivityType]map[model.Difficulty]int64{
		model.ActivityLearning:      row(10, 25, 50, 100),
		model.ActivityProject:       row(20, 50, 100, 250),
		model.ActivityChallenge:     row(15, 40, 75, 150),
		model.ActivityCollaboration: row(5, 20, 45, 90),
		model.ActivityMilestone:     row(50, 100, 200, 500),
	}
}

// Bonus is the history-wide activity bonus of a user.
type Bonus struct {
	ActiveDays  int
	Streaks     int
	StreakBonus int64
	Milestones  int
	Milestone   int64
	Total       int64
}

// ActivityPolicy computes activity points.
type ActivityPolicy struct {
	table           map[model.ActivityType]map[model.Difficulty]int64
	streakDays      int
	streakPoints    int64
	milestonePoints int64
}

// NewActivityPolicy creates an activity policy with the default table and options applied.
func NewActivityPolicy(opts ...ActivityOption) *ActivityPolicy {
	p := &ActivityPolicy{
		table:           DefaultActivityPoints(),
		streakDays:      defaultStreakDays,
		streakPoints:    defaultStreakPoints,
		milestonePoints: defaultMilestonePoints,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BasePoints looks up the table. A combination without a cell yields 0.
func (p *ActivityPolicy) BasePoints(a model.ActivityType, d model.Difficulty) int64 {
	return p.table[a][d]
}

// CalculateBonus derives the streak and milestone bonus from a user's full
// activity history. Streaks count distinct UTC calendar days, not consecutive
// runs.
func (p *ActivityPolicy) CalculateBonus(records []model.ActivityRecord) Bonus {
	type day struct {
		year int
		yday int
	}
	days := make(map[day]struct{}, len(records))

	var b Bonus
	for i := range records {
		ts := records[i].Timestamp.UTC()
		days[day{year: ts.Year(), yday: ts.YearDay()}] = struct{}{}
		if records[i].ActivityType == model.ActivityMilestone {
			b.Milestones++
		}
	}

	b.ActiveDays = len(days)
	b.Streaks = b.ActiveDays / p.streakDays
	b.StreakBonus = int64(b.Streaks) * p.streakPoints
	b.Milestone = int64(b.Milestones) * p.milestonePoints
	b.Total = b.StreakBonus + b.Milestone
	return b
}
