// Package types contains the read-side shapes returned by the aggregation queries.
package types

import "time"

// Entry is a leaderboard row. Ranks use competition ranking: equal totals share
// a rank and the next distinct total skips ahead.
type Entry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	Username    string `json:"username,omitempty"`
	TotalPoints int64  `json:"totalPoints"`
}

// Progress holds the task completion counters of one account.
type Progress struct {
	TasksCompleted             int64 `json:"tasksCompleted"`
	HighPriorityTasksCompleted int64 `json:"highPriorityTasksCompleted"`
	ActivitiesCompleted        int64 `json:"activitiesCompleted"`
}

// UserSummary is the per-user dashboard view.
type UserSummary struct {
	UserID      string    `json:"userId"`
	Username    string    `json:"username,omitempty"`
	TotalPoints int64     `json:"totalPoints"`
	Progress    Progress  `json:"progress"`
	Ranking     int       `json:"ranking"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AggregateSummary covers every account.
type AggregateSummary struct {
	TotalUsers    int     `json:"totalUsers"`
	TotalPoints   int64   `json:"totalPoints"`
	AveragePoints float64 `json:"averagePoints"`
	TopUsers      []Entry `json:"topUsers"`
}

// TopUsersSummary is the default dashboard view.
type TopUsersSummary struct {
	TotalUsers int     `json:"totalUsers"`
	TopUsers   []Entry `json:"topUsers"`
}

// TaskBreakdown explains the points earned from one task type.
type TaskBreakdown struct {
	TaskType           string `json:"taskType"`
	Completed          int64  `json:"completed"`
	BasePoints         int64  `json:"basePoints"`
	MilestonesReached  int64  `json:"milestonesReached"`
	MilestoneBonus     int64  `json:"milestoneBonusPoints"`
	TotalEarnedPoints  int64  `json:"totalEarnedPoints"`
	MilestoneInterval  int64  `json:"milestoneInterval,omitempty"`
	PointsPerMilestone int64  `json:"pointsPerMilestone,omitempty"`
}

// UserDetails is the detailed per-user breakdown. CenturyBonusGranted is also
// set for accounts created at or above the threshold, which never receive it.
type UserDetails struct {
	UserSummary
	TaskTypes           []TaskBreakdown `json:"taskTypes"`
	CenturyBonusGranted bool            `json:"centuryBonusGranted"`
	CenturyBonusPoints  int64           `json:"centuryBonusPoints"`
}

// AggregateDetails totals the accounts created inside a window.
type AggregateDetails struct {
	TotalUsers      int        `json:"totalUsers"`
	TotalPoints     int64      `json:"totalPoints"`
	AveragePoints   float64    `json:"averagePoints"`
	ActivitySummary Progress   `json:"activitySummary"`
	From            *time.Time `json:"from,omitempty"`
	To              *time.Time `json:"to,omitempty"`
}

// ActivityProgress is one activity type's share of a user's activity points.
type ActivityProgress struct {
	ActivityType string  `json:"activityType"`
	Activities   int     `json:"activities"`
	Points       int64   `json:"points"`
	Percentage   float64 `json:"percentage"`
}

// ActivitySummary is the per-user activity dashboard summary.
type ActivitySummary struct {
	UserID           string             `json:"userId"`
	TotalPoints      int64              `json:"totalPoints"`
	TotalActivities  int                `json:"totalActivities"`
	ActivityProgress []ActivityProgress `json:"activityProgress"`
}

// Activity is the wire form of an activity record.
type Activity struct {
	ID              string         `json:"id"`
	UserID          string         `json:"userId"`
	ActivityType    string         `json:"activityType"`
	DifficultyLevel string         `json:"difficultyLevel"`
	Points          int64          `json:"points"`
	Description     string         `json:"description,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// DashboardStats breaks down the activities matched by a dashboard query.
type DashboardStats struct {
	TotalActivities       int              `json:"totalActivities"`
	TotalPoints           int64            `json:"totalPoints"`
	PointsByDifficulty    map[string]int64 `json:"pointsByDifficulty"`
	ActivityTypeBreakdown map[string]int   `json:"activityTypeBreakdown"`
	PointsByType          map[string]int64 `json:"pointsByType"`
}

// ActivityDashboard is the detailed activity dashboard.
type ActivityDashboard struct {
	UserID           string         `json:"userId"`
	From             *time.Time     `json:"from,omitempty"`
	To               *time.Time     `json:"to,omitempty"`
	RecentActivities []Activity     `json:"recentActivities"`
	Stats            DashboardStats `json:"stats"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage     int `json:"currentPage"`
	TotalPages      int `json:"totalPages"`
	TotalActivities int `json:"totalActivities"`
	Limit           int `json:"limit"`
}

// ActivityPage is one page of a user's activities.
type ActivityPage struct {
	Activities []Activity `json:"activities"`
	Pagination Pagination `json:"pagination"`
}

// TaskResult is the outcome of one task event.
type TaskResult struct {
	UserID        string   `json:"userId"`
	TaskType      string   `json:"taskType"`
	PointsEarned  int64    `json:"pointsEarned"`
	IntervalBonus int64    `json:"intervalBonus"`
	CenturyBonus  int64    `json:"centuryBonus"`
	TotalPoints   int64    `json:"totalPoints"`
	Progress      Progress `json:"progress"`
}

// ActivityResult is the outcome of one recorded activity. TotalPoints is
// call-scoped and is not stored anywhere.
type ActivityResult struct {
	Activity    Activity `json:"activity"`
	BasePoints  int64    `json:"basePoints"`
	BonusPoints int64    `json:"bonusPoints"`
	TotalPoints int64    `json:"totalPoints"`
}

// DeleteSummary reports a bulk delete.
type DeleteSummary struct {
	AccountsDeleted   int64 `json:"accountsDeleted"`
	ActivitiesDeleted int64 `json:"activitiesDeleted"`
}
