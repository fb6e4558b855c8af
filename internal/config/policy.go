package config

import (
	"fmt"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/policy"
)

// TaskRules converts the task_points overrides.
func (c *Config) TaskRules() (map[model.TaskType]policy.TaskRule, error) {
	rules := make(map[model.TaskType]policy.TaskRule, len(c.TaskPoints))
	for name, tp := range c.TaskPoints {
		t, err := model.ParseTaskType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: task_points: %w", ErrInvalidConfig, err)
		}
		if tp.Base < 0 || tp.Interval < 0 || tp.Bonus < 0 {
			return nil, fmt.Errorf("%w: task_points.%s must not be negative", ErrInvalidConfig, name)
		}
		rules[t] = policy.TaskRule{BasePoints: tp.Base, BonusInterval: tp.Interval, BonusPoints: tp.Bonus}
	}
	return rules, nil
}

// ActivityTable converts the activity_points overrides.
func (c *Config) ActivityTable() (map[model.ActivityType]map[model.Difficulty]int64, error) {
	table := make(map[model.ActivityType]map[model.Difficulty]int64, len(c.ActivityPoints))
	for name, row := range c.ActivityPoints {
		a, err := model.ParseActivityType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: activity_points: %w", ErrInvalidConfig, err)
		}
		dst := make(map[model.Difficulty]int64, len(row))
		for level, pts := range row {
			d, err := model.ParseDifficulty(level)
			if err != nil || level == "" {
				return nil, fmt.Errorf("%w: activity_points.%s: unknown difficulty %q", ErrInvalidConfig, name, level)
			}
			if pts < 0 {
				return nil, fmt.Errorf("%w: activity_points.%s.%s must not be negative", ErrInvalidConfig, name, level)
			}
			dst[d] = pts
		}
		table[a] = dst
	}
	return table, nil
}

// TaskPolicy builds the task policy described by the configuration.
func (c *Config) TaskPolicy() (*policy.TaskPolicy, error) {
	rules, err := c.TaskRules()
	if err != nil {
		return nil, err
	}
	return policy.NewTaskPolicy(
		policy.WithTaskRules(rules),
		policy.WithCenturyBonus(c.CenturyThreshold, c.CenturyBonus),
	), nil
}

// ActivityPolicy builds the activity policy described by the configuration.
func (c *Config) ActivityPolicy() (*policy.ActivityPolicy, error) {
	table, err := c.ActivityTable()
	if err != nil {
		return nil, err
	}
	return policy.NewActivityPolicy(
		policy.WithActivityPoints(table),
		policy.WithStreakBonus(c.StreakDays, c.StreakBonus),
		policy.WithMilestoneBonus(c.MilestoneBonus),
	), nil
}
