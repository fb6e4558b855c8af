package model

import "time"

// Account is the per-user points ledger entry.
type Account struct {
	UserID                     string
	Username                   string
	Email                      string
	TotalPoints                int64
	TasksCompleted             int64
	HighPriorityTasksCompleted int64
	ActivitiesCompleted        int64
	CenturyBonusGranted        bool
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// Completed returns the completion counter for a task type.
func (a Account) Completed(t TaskType) int64 {
	switch t {
	case TaskRegular:
		return a.TasksCompleted
	case TaskHighPriority:
		return a.HighPriorityTasksCompleted
	case TaskActivity:
		return a.ActivitiesCompleted
	}
	return 0
}

// IncrementCompleted bumps the completion counter for a task type.
func (a *Account) IncrementCompleted(t TaskType) {
	switch t {
	case TaskRegular:
		a.TasksCompleted++
	case TaskHighPriority:
		a.HighPriorityTasksCompleted++
	case TaskActivity:
		a.ActivitiesCompleted++
	}
}

// NotDecreasedFrom reports whether every counter of a is at least the one of prev.
func (a Account) NotDecreasedFrom(prev Account) bool {
	return a.TotalPoints >= prev.TotalPoints &&
		a.TasksCompleted >= prev.TasksCompleted &&
		a.HighPriorityTasksCompleted >= prev.HighPriorityTasksCompleted &&
		a.ActivitiesCompleted >= prev.ActivitiesCompleted &&
		(a.CenturyBonusGranted || !prev.CenturyBonusGranted)
}
