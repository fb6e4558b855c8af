// Package model contains domain models passed between layers.
package model

import "strings"

// TaskType identifies the kind of completed task reported to the points ledger.
type TaskType string

const (
	TaskRegular      TaskType = "task"
	TaskHighPriority TaskType = "highPriorityTask"
	TaskActivity     TaskType = "activity"
)

// TaskTypes lists every task type in display order.
var TaskTypes = []TaskType{TaskRegular, TaskHighPriority, TaskActivity}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskRegular, TaskHighPriority, TaskActivity:
		return true
	}
	return false
}

// ParseTaskType accepts the wire names exactly as published.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", invalidf("unknown task type %q", s)
	}
	return t, nil
}

// ActivityType identifies the category of a recorded activity.
type ActivityType string

const (
	ActivityLearning      ActivityType = "learning"
	ActivityProject       ActivityType = "project"
	ActivityChallenge     ActivityType = "challenge"
	ActivityCollaboration ActivityType = "collaboration"
	ActivityMilestone     ActivityType = "milestone"
)

// ActivityTypes lists every activity type in display order.
var ActivityTypes = []ActivityType{
	ActivityLearning, ActivityProject, ActivityChallenge, ActivityCollaboration, ActivityMilestone,
}

// Valid reports whether a is a known activity type.
func (a ActivityType) Valid() bool {
	switch a {
	case ActivityLearning, ActivityProject, ActivityChallenge, ActivityCollaboration, ActivityMilestone:
		return true
	}
	return false
}

// ParseActivityType parses a case-insensitive activity type.
func ParseActivityType(s string) (ActivityType, error) {
	a := ActivityType(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", invalidf("unknown activity type %q", s)
	}
	return a, nil
}

// Difficulty grades an activity.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Difficulties lists every difficulty from easiest to hardest.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// ParseDifficulty parses a case-insensitive difficulty. Empty means easy.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DifficultyEasy, nil
	}
	d := Difficulty(s)
	if !d.Valid() {
		return "", invalidf("unknown difficulty level %q", s)
	}
	return d, nil
}
