// Package repository holds the account and activity stores behind the points
// ledgers.
package repository

import (
	"context"
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// AccountFilter restricts account rollups to a creation window. Nil bounds are open.
type AccountFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// AccountTotals sums the counters of the accounts matched by a filter.
type AccountTotals struct {
	Accounts                   int
	TotalPoints                int64
	TasksCompleted             int64
	HighPriorityTasksCompleted int64
	ActivitiesCompleted        int64
}

// ActivityQuery selects activity records. Empty fields do not filter. Results
// are ordered by timestamp descending. Limit 0 means no limit.
type ActivityQuery struct {
	UserID          string
	ActivityType    model.ActivityType
	DifficultyLevel model.Difficulty
	From            *time.Time
	To              *time.Time
	Offset          int
	Limit           int
}

// ActivityGroup aggregates the records of one type and difficulty.
type ActivityGroup struct {
	ActivityType    model.ActivityType
	DifficultyLevel model.Difficulty
	Count           int
	Points          int64
}

// DeleteResult reports what a bulk delete removed.
type DeleteResult struct {
	Accounts   int64
	Activities int64
}

// UpdateFunc mutates the current state of an account. Returning an error
// aborts the update and leaves the account untouched.
type UpdateFunc func(acc *model.Account) error

// AccountStore persists points accounts.
type AccountStore interface {
	// UpdateAccount creates the account if missing and applies fn to its
	// current state atomically with respect to every other update of the same
	// user. Counters may not decrease.
	UpdateAccount(ctx context.Context, userID string, fn UpdateFunc) (model.Account, error)

	// CreateAccount inserts a new account. Returns ErrAlreadyExists when the
	// user id or the email is taken.
	CreateAccount(ctx context.Context, acc model.Account) (model.Account, error)

	// GetAccount returns ErrNotFound for unknown users.
	GetAccount(ctx context.Context, userID string) (model.Account, error)

	// CountAbove counts accounts with strictly more points.
	CountAbove(ctx context.Context, points int64) (int, error)

	// TopAccounts returns up to n accounts by points desc, then creation order.
	TopAccounts(ctx context.Context, n int) ([]model.Account, error)

	// SumAccounts rolls up the accounts matched by f.
	SumAccounts(ctx context.Context, f AccountFilter) (AccountTotals, error)

	// CountAccounts returns the number of accounts.
	CountAccounts(ctx context.Context) (int, error)
}

// ActivityStore persists the append-only activity log.
type ActivityStore interface {
	AppendActivity(ctx context.Context, rec model.ActivityRecord) error
	FindActivities(ctx context.Context, q ActivityQuery) ([]model.ActivityRecord, error)
	CountActivities(ctx context.Context, q ActivityQuery) (int, error)
	GroupActivities(ctx context.Context, q ActivityQuery) ([]ActivityGroup, error)
}

// Store combines both ledgers' storage.
type Store interface {
	AccountStore
	ActivityStore

	// DeleteAll removes every account and activity. It is not excluded
	// against concurrent writes.
	DeleteAll(ctx context.Context) (DeleteResult, error)

	Close() error
}
