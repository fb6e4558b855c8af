// Package policy turns ledger events into point deltas. Policies are built once
// and never mutated, so they are safe for concurrent use.
package policy

import (
	"errors"
	"fmt"

	"github.com/okian/tally/internal/domain/model"
)

// Default task policy constants.
const (
	defaultCenturyThreshold = 100
	defaultCenturyPoints    = 100
)

// ErrUnknownTaskType is returned for task types without a rule.
var ErrUnknownTaskType = errors.New("unknown task type")

// TaskRule describes the points of one task type. A zero BonusInterval disables
// the interval bonus.
type TaskRule struct {
	BasePoints    int64
	BonusInterval int64
	BonusPoints   int64
}

// DefaultTaskRules returns a fresh copy of the built-in task table.
func DefaultTaskRules() map[model.TaskType]TaskRule {
	return map[model.TaskType]TaskRule{
		model.TaskRegular:      {BasePoints: 10, BonusInterval: 5, BonusPoints: 50},
		model.TaskHighPriority: {BasePoints: 20, BonusInterval: 3, BonusPoints: 30},
		model.TaskActivity:     {BasePoints: 15},
	}
}

// Award is the outcome of one task event.
type Award struct {
	Base          int64
	IntervalBonus int64
	CenturyBonus  int64
	Total         int64
}

// Century reports whether the award carries the one-time century bonus.
func (a Award) Century() bool { return a.CenturyBonus > 0 }

// TaskPolicy computes task event points.
type TaskPolicy struct {
	rules            map[model.TaskType]TaskRule
	centuryThreshold int64
	centuryPoints    int64
}

// NewTaskPolicy creates a task policy with the default table and options applied.
func NewTaskPolicy(opts ...TaskOption) *TaskPolicy {
	p := &TaskPolicy{
		rules:            DefaultTaskRules(),
		centuryThreshold: defaultCenturyThreshold,
		centuryPoints:    defaultCenturyPoints,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rule returns the rule for t.
func (p *TaskPolicy) Rule(t model.TaskType) (TaskRule, bool) {
	r, ok := p.rules[t]
	return r, ok
}

// CenturyThreshold returns the total that triggers the century bonus.
func (p *TaskPolicy) CenturyThreshold() int64 { return p.centuryThreshold }

// CenturyPoints returns the one-time century bonus amount.
func (p *TaskPolicy) CenturyPoints() int64 { return p.centuryPoints }

// ComputePoints returns the points acc earns for one more completion of t.
// The interval bonus is checked against the counter before it is incremented,
// so the first completion already earns it.
func (p *TaskPolicy) ComputePoints(acc model.Account, t model.TaskType) (Award, error) {
	rule, ok := p.rules[t]
	if !ok {
		return Award{}, fmt.Errorf("%w: %q", ErrUnknownTaskType, t)
	}

	a := Award{Base: rule.BasePoints}
	if rule.BonusInterval > 0 && acc.Completed(t)%rule.BonusInterval == 0 {
		a.IntervalBonus = rule.BonusPoints
	}
	earned := a.Base + a.IntervalBonus
	if !acc.CenturyBonusGranted && acc.TotalPoints+earned >= p.centuryThreshold {
		a.CenturyBonus = p.centuryPoints
	}
	a.Total = earned + a.CenturyBonus
	return a, nil
}

// Apply computes the award for t and folds it into acc.
func (p *TaskPolicy) Apply(acc *model.Account, t model.TaskType) (Award, error) {
	a, err := p.ComputePoints(*acc, t)
	if err != nil {
		return Award{}, err
	}
	acc.TotalPoints += a.Total
	acc.IncrementCompleted(t)
	if a.Century() {
		acc.CenturyBonusGranted = true
	}
	return a, nil
}

// Earned splits the points of n completions of t into base points, the number
// of interval bonuses and their total.
func (p *TaskPolicy) Earned(t model.TaskType, n int64) (base, milestones, bonus int64) {
	rule, ok := p.rules[t]
	if !ok || n <= 0 {
		return 0, 0, 0
	}
	base = rule.BasePoints * n
	if rule.BonusInterval > 0 {
		// completions whose pre-increment counter is a multiple of the interval
		milestones = (n + rule.BonusInterval - 1) / rule.BonusInterval
		bonus = milestones * rule.BonusPoints
	}
	return base, milestones, bonus
}

// ProjectTotal returns the total of a fresh account after the given numbers of
// completions. The result does not depend on the order of the events.
func (p *TaskPolicy) ProjectTotal(counts map[model.TaskType]int64) int64 {
	var total int64
	for t, n := range counts {
		base, _, bonus := p.Earned(t, n)
		total += base + bonus
	}
	if total >= p.centuryThreshold {
		total += p.centuryPoints
	}
	return total
}
