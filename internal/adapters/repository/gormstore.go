package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

// GormStore keeps both ledgers in a relational database. Account updates use
// optimistic concurrency on a version column, so several processes may share
// one database.
type GormStore struct {
	db         *gorm.DB
	maxRetries int
	now        func() time.Time
}

// OpenSQLite opens (or creates) a SQLite database through the pure-Go driver
// and migrates it. ":memory:" and "file:" DSNs are passed through untouched.
func OpenSQLite(path string, opts ...GormOption) (*GormStore, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// a single writer connection keeps SQLite from reporting busy under load
	sqlDB.SetMaxOpenConns(1)

	return NewGormStore(db, opts...)
}

// NewGormStore wraps an open database and migrates the schema.
func NewGormStore(db *gorm.DB, opts ...GormOption) (*GormStore, error) {
	s := &GormStore{db: db, maxRetries: defaultMaxRetries, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.AutoMigrate(&accountRow{}, &activityRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// errStale aborts an update transaction whose version check failed.
var errStale = errors.New("stale account version")

// UpdateAccount implements AccountStore. Inside one transaction the account is
// upserted, read, and written back only if its version did not move; a stale
// write is retried up to maxRetries times before ErrConflict.
func (s *GormStore) UpdateAccount(ctx context.Context, userID string, fn UpdateFunc) (model.Account, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLedgerUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var (
			next    model.Account
			created bool
		)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.now().UTC()
			seed := accountRow{UserID: userID, CreatedAt: now, UpdatedAt: now}
			ins := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(&seed)
			if ins.Error != nil {
				return fmt.Errorf("upsert account %q: %w", userID, ins.Error)
			}
			created = ins.RowsAffected == 1

			var row accountRow
			if err := tx.Where("user_id = ?", userID).Take(&row).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errStale // bulk-deleted between upsert and read
				}
				return fmt.Errorf("load account %q: %w", userID, err)
			}

			cur := row.toModel()
			next = cur
			if err := fn(&next); err != nil {
				return err
			}
			if !next.NotDecreasedFrom(cur) {
				return ErrCounterDecrease
			}

			res := tx.Model(&accountRow{}).
				Where("id = ? AND version = ?", row.ID, row.Version).
				Updates(map[string]any{
					"total_points":                  next.TotalPoints,
					"tasks_completed":               next.TasksCompleted,
					"high_priority_tasks_completed": next.HighPriorityTasksCompleted,
					"activities_completed":          next.ActivitiesCompleted,
					"century_bonus_granted":         next.CenturyBonusGranted,
					"version":                       row.Version + 1,
					"updated_at":                    now,
				})
			if res.Error != nil {
				return fmt.Errorf("write account %q: %w", userID, res.Error)
			}
			if res.RowsAffected != 1 {
				return errStale
			}
			next.UserID, next.Username, next.Email, next.CreatedAt = cur.UserID, cur.Username, cur.Email, cur.CreatedAt
			next.UpdatedAt = now
			return nil
		})
		if errors.Is(err, errStale) {
			metrics.RecordLedgerConflict()
			continue
		}
		if err != nil {
			return model.Account{}, err
		}
		if created {
			s.refreshAccountGauge(ctx)
		}
		return next, nil
	}
	return model.Account{}, fmt.Errorf("%w: user %q after %d attempts", ErrConflict, userID, s.maxRetries)
}

// CreateAccount implements AccountStore.
func (s *GormStore) CreateAccount(ctx context.Context, acc model.Account) (model.Account, error) {
	now := s.now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = now

	row := accountRow{
		UserID:                     acc.UserID,
		Username:                   acc.Username,
		Email:                      acc.Email,
		TotalPoints:                acc.TotalPoints,
		TasksCompleted:             acc.TasksCompleted,
		HighPriorityTasksCompleted: acc.HighPriorityTasksCompleted,
		ActivitiesCompleted:        acc.ActivitiesCompleted,
		CenturyBonusGranted:        acc.CenturyBonusGranted,
		CreatedAt:                  acc.CreatedAt,
		UpdatedAt:                  acc.UpdatedAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if acc.Email != "" {
			var n int64
			if err := tx.Model(&accountRow{}).Where("LOWER(email) = ?", strings.ToLower(acc.Email)).Count(&n).Error; err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if n > 0 {
				return fmt.Errorf("%w: email %q", ErrAlreadyExists, acc.Email)
			}
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("insert account: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: user id %q", ErrAlreadyExists, acc.UserID)
		}
		return nil
	})
	if err != nil {
		return model.Account{}, err
	}
	s.refreshAccountGauge(ctx)
	return acc, nil
}

// GetAccount implements AccountStore.
func (s *GormStore) GetAccount(ctx context.Context, userID string) (model.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account %q: %w", userID, err)
	}
	return row.toModel(), nil
}

// CountAbove implements AccountStore.
func (s *GormStore) CountAbove(ctx context.Context, points int64) (int, error) {
	start := time.Now()
	defer observeQuery("count_above", start)

	var n int64
	if err := s.db.WithContext(ctx).Model(&accountRow{}).Where("total_points > ?", points).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count above %d: %w", points, err)
	}
	return int(n), nil
}

// TopAccounts implements AccountStore.
func (s *GormStore) TopAccounts(ctx context.Context, n int) ([]model.Account, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer observeQuery("top_accounts", start)

	var rows []accountRow
	err := s.db.WithContext(ctx).
		Order("total_points DESC").Order("created_at ASC").Order("id ASC").
		Limit(n).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top accounts: %w", err)
	}
	out := make([]model.Account, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

// SumAccounts implements AccountStore.
func (s *GormStore) SumAccounts(ctx context.Context, f AccountFilter) (AccountTotals, error) {
	start := time.Now()
	defer observeQuery("sum_accounts", start)

	q := s.db.WithContext(ctx).Model(&accountRow{}).Select(
		"COUNT(*) AS accounts, " +
			"COALESCE(SUM(total_points), 0) AS total_points, " +
			"COALESCE(SUM(tasks_completed), 0) AS tasks_completed, " +
			"COALESCE(SUM(high_priority_tasks_completed), 0) AS high_priority_tasks_completed, " +
			"COALESCE(SUM(activities_completed), 0) AS activities_completed")
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", f.CreatedFrom.UTC())
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", f.CreatedTo.UTC())
	}

	var t AccountTotals
	if err := q.Scan(&t).Error; err != nil {
		return AccountTotals{}, fmt.Errorf("sum accounts: %w", err)
	}
	return t, nil
}

// CountAccounts implements AccountStore.
func (s *GormStore) CountAccounts(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&accountRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return int(n), nil
}

func (s *GormStore) refreshAccountGauge(ctx context.Context) {
	if n, err := s.CountAccounts(ctx); err == nil {
		metrics.UpdateTotalAccounts(n)
	}
}

// AppendActivity implements ActivityStore.
func (s *GormStore) AppendActivity(ctx context.Context, rec model.ActivityRecord) error {
	row := newActivityRow(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append activity %s: %w", rec.ID, err)
	}
	return nil
}

func (s *GormStore) activityScope(ctx context.Context, q ActivityQuery) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&activityRow{})
	if q.UserID != "" {
		db = db.Where("user_id = ?", q.UserID)
	}
	if q.ActivityType != "" {
		db = db.Where("activity_type = ?", string(q.ActivityType))
	}
	if q.DifficultyLevel != "" {
		db = db.Where("difficulty_level = ?", string(q.DifficultyLevel))
	}
	if q.From != nil {
		db = db.Where("timestamp >= ?", q.From.UTC())
	}
	if q.To != nil {
		db = db.Where("timestamp <= ?", q.To.UTC())
	}
	return db
}

// FindActivities implements ActivityStore.
func (s *GormStore) FindActivities(ctx context.Context, q ActivityQuery) ([]model.ActivityRecord, error) {
	start := time.Now()
	defer observeQuery("find_activities", start)

	db := s.activityScope(ctx, q).Order("timestamp DESC").Order("id DESC")
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	var rows []activityRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find activities: %w", err)
	}
	out := make([]model.ActivityRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

// CountActivities implements ActivityStore.
func (s *GormStore) CountActivities(ctx context.Context, q ActivityQuery) (int, error) {
	var n int64
	if err := s.activityScope(ctx, q).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return int(n), nil
}

// GroupActivities implements ActivityStore.
func (s *GormStore) GroupActivities(ctx context.Context, q ActivityQuery) ([]ActivityGroup, error) {
	var rows []struct {
		ActivityType    string
		DifficultyLevel string
		Count           int
		Points          int64
	}
	err := s.activityScope(ctx, q).
		Select("activity_type, difficulty_level, COUNT(*) AS count, COALESCE(SUM(points), 0) AS points").
		Group("activity_type").Group("difficulty_level").
		Order("activity_type").Order("difficulty_level").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("group activities: %w", err)
	}
	out := make([]ActivityGroup, len(rows))
	for i, r := range rows {
		out[i] = ActivityGroup{
			ActivityType:    model.ActivityType(r.ActivityType),
			DifficultyLevel: model.Difficulty(r.DifficultyLevel),
			Count:           r.Count,
			Points:          r.Points,
		}
	}
	return out, nil
}

// DeleteAll implements Store.
func (s *GormStore) DeleteAll(ctx context.Context) (DeleteResult, error) {
	var res DeleteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		acts := all.Delete(&activityRow{})
		if acts.Error != nil {
			return fmt.Errorf("delete activities: %w", acts.Error)
		}
		accs := all.Delete(&accountRow{})
		if accs.Error != nil {
			return fmt.Errorf("delete accounts: %w", accs.Error)
		}
		res = DeleteResult{Accounts: accs.RowsAffected, Activities: acts.RowsAffected}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	metrics.UpdateTotalAccounts(0)
	return res, nil
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
