package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// ActivityInput is the input of RecordActivity. An empty difficulty means easy.
type ActivityInput struct {
	UserID          any
	ActivityType    string
	DifficultyLevel string
	Description     string
	Metadata        map[string]any
}

// DashboardQuery selects the records of the activity dashboard. An explicit
// range and a timeframe preset are mutually exclusive.
type DashboardQuery struct {
	UserID    any
	From      *time.Time
	To        *time.Time
	Timeframe string
}

// ListQuery selects one page of a user's activities. Zero Page and Limit take
// the defaults.
type ListQuery struct {
	UserID          any
	ActivityType    string
	DifficultyLevel string
	From            *time.Time
	To              *time.Time
	Page            int
	Limit           int
}

// RecordActivity appends an activity and reports its points together with the
// streak and milestone bonus of the user's whole history. The totals are not
// stored and the account ledger is not touched. A replayed request creates a
// second record.
func (s *Service) RecordActivity(ctx context.Context, in ActivityInput) (types.ActivityResult, error) {
	store, err := s.backend()
	if err != nil {
		return types.ActivityResult{}, err
	}
	id, err := model.NormalizeUserID(in.UserID)
	if err != nil {
		return types.ActivityResult{}, classify(err)
	}
	if strings.TrimSpace(in.ActivityType) == "" {
		return types.ActivityResult{}, invalid("activity type is required")
	}
	at, err := model.ParseActivityType(in.ActivityType)
	if err != nil {
		return types.ActivityResult{}, classify(err)
	}
	diff, err := model.ParseDifficulty(in.DifficultyLevel)
	if err != nil {
		return types.ActivityResult{}, classify(err)
	}

	rec := model.ActivityRecord{
		ID:              newActivityID(),
		UserID:          id,
		ActivityType:    at,
		DifficultyLevel: diff,
		Points:          s.activities.BasePoints(at, diff),
		Description:     strings.TrimSpace(in.Description),
		Timestamp:       s.now().UTC(),
		Metadata:        in.Metadata,
	}
	if err := store.AppendActivity(ctx, rec); err != nil {
		s.logger.Error(ctx, "failed to append activity", logger.String("userId", id), logger.Error(err))
		metrics.RecordErrorByComponent("ledger", "append_activity")
		return types.ActivityResult{}, classify(err)
	}

	// O(history): the bonus is derived from every record of the user
	history, err := store.FindActivities(ctx, repository.ActivityQuery{UserID: id})
	if err != nil {
		return types.ActivityResult{}, classify(err)
	}
	bonus := s.activities.CalculateBonus(history)

	metrics.RecordActivity(string(at), string(diff))
	metrics.RecordPointsAwarded("activity", rec.Points)
	s.logger.Info(ctx, "activity recorded",
		logger.String("userId", id),
		logger.String("activityType", string(at)),
		logger.String("difficulty", string(diff)),
		logger.Int64("basePoints", rec.Points),
		logger.Int64("bonusPoints", bonus.Total),
	)

	return types.ActivityResult{
		Activity:    toActivity(rec),
		BasePoints:  rec.Points,
		BonusPoints: bonus.Total,
		TotalPoints: rec.Points + bonus.Total,
	}, nil
}

// ActivitySummary reports every activity type's count, points and share of
// the user's activity points.
func (s *Service) ActivitySummary(ctx context.Context, userID any) (types.ActivitySummary, error) {
	store, err := s.backend()
	if err != nil {
		return types.ActivitySummary{}, err
	}
	id, err := model.NormalizeUserID(userID)
	if err != nil {
		return types.ActivitySummary{}, classify(err)
	}
	groups, err := store.GroupActivities(ctx, repository.ActivityQuery{UserID: id})
	if err != nil {
		return types.ActivitySummary{}, classify(err)
	}

	byType := make(map[model.ActivityType]*types.ActivityProgress, len(model.ActivityTypes))
	out := types.ActivitySummary{UserID: id, ActivityProgress: make([]types.ActivityProgress, len(model.ActivityTypes))}
	for i, at := range model.ActivityTypes {
		out.ActivityProgress[i].ActivityType = string(at)
		byType[at] = &out.ActivityProgress[i]
	}
	for _, g := range groups {
		out.TotalActivities += g.Count
		out.TotalPoints += g.Points
		if p, ok := byType[g.ActivityType]; ok {
			p.Activities += g.Count
			p.Points += g.Points
		}
	}
	for i := range out.ActivityProgress {
		out.ActivityProgress[i].Percentage = percentage(out.ActivityProgress[i].Points, out.TotalPoints)
	}
	return out, nil
}

// ActivityDashboard returns the most recent records in the selected window
// with their breakdowns by difficulty and type. The breakdowns cover the
// returned records, not the whole window.
func (s *Service) ActivityDashboard(ctx context.Context, q DashboardQuery) (types.ActivityDashboard, error) {
	store, err := s.backend()
	if err != nil {
		return types.ActivityDashboard{}, err
	}
	id, err := model.NormalizeUserID(q.UserID)
	if err != nil {
		return types.ActivityDashboard{}, classify(err)
	}
	from, to, err := window(q.From, q.To, q.Timeframe, s.now())
	if err != nil {
		return types.ActivityDashboard{}, err
	}

	aq := repository.ActivityQuery{UserID: id, From: from, To: to, Limit: s.recentActivities}
	recent, err := store.FindActivities(ctx, aq)
	if err != nil {
		return types.ActivityDashboard{}, classify(err)
	}

	stats := types.DashboardStats{
		PointsByDifficulty:    make(map[string]int64, len(model.Difficulties)),
		ActivityTypeBreakdown: make(map[string]int, len(model.ActivityTypes)),
		PointsByType:          make(map[string]int64, len(model.ActivityTypes)),
	}
	for _, d := range model.Difficulties {
		stats.PointsByDifficulty[string(d)] = 0
	}
	for _, at := range model.ActivityTypes {
		stats.ActivityTypeBreakdown[string(at)] = 0
		stats.PointsByType[string(at)] = 0
	}
	// The breakdowns describe the returned records only.
	for _, rec := range recent {
		stats.TotalActivities++
		stats.TotalPoints += rec.Points
		stats.PointsByDifficulty[string(rec.DifficultyLevel)] += rec.Points
		stats.ActivityTypeBreakdown[string(rec.ActivityType)]++
		stats.PointsByType[string(rec.ActivityType)] += rec.Points
	}

	return types.ActivityDashboard{
		UserID:           id,
		From:             from,
		To:               to,
		RecentActivities: toActivities(recent),
		Stats:            stats,
	}, nil
}

// ListActivities returns one page of a user's activities, newest first. A
// page without records is returned together with ErrNotFound.
func (s *Service) ListActivities(ctx context.Context, q ListQuery) (types.ActivityPage, error) {
	store, err := s.backend()
	if err != nil {
		return types.ActivityPage{}, err
	}
	id, err := model.NormalizeUserID(q.UserID)
	if err != nil {
		return types.ActivityPage{}, classify(err)
	}
	page, limit, err := s.paging(q.Page, q.Limit)
	if err != nil {
		return types.ActivityPage{}, err
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return types.ActivityPage{}, invalid("from must not be after to")
	}

	aq := repository.ActivityQuery{UserID: id, From: utcPtr(q.From), To: utcPtr(q.To)}
	if strings.TrimSpace(q.ActivityType) != "" {
		if aq.ActivityType, err = model.ParseActivityType(q.ActivityType); err != nil {
			return types.ActivityPage{}, classify(err)
		}
	}
	if strings.TrimSpace(q.DifficultyLevel) != "" {
		if aq.DifficultyLevel, err = model.ParseDifficulty(q.DifficultyLevel); err != nil {
			return types.ActivityPage{}, classify(err)
		}
	}

	total, err := store.CountActivities(ctx, aq)
	if err != nil {
		return types.ActivityPage{}, classify(err)
	}
	aq.Offset, aq.Limit = (page-1)*limit, limit
	recs, err := store.FindActivities(ctx, aq)
	if err != nil {
		return types.ActivityPage{}, classify(err)
	}

	out := types.ActivityPage{
		Activities: toActivities(recs),
		Pagination: types.Pagination{
			CurrentPage:     page,
			TotalPages:      (total + limit - 1) / limit,
			TotalActivities: total,
			Limit:           limit,
		},
	}
	if len(recs) == 0 {
		return out, fmt.Errorf("%w: no activities for user %q on page %d", ErrNotFound, id, page)
	}
	return out, nil
}

func (s *Service) paging(page, limit int) (int, int, error) {
	if page < 0 {
		return 0, 0, invalid("page must be positive")
	}
	if page == 0 {
		page = 1
	}
	if limit < 0 {
		return 0, 0, invalid("limit must be positive")
	}
	if limit == 0 {
		limit = min(defaultPageSize, s.pageLimit)
	}
	if limit > s.pageLimit {
		return 0, 0, invalid("limit must not exceed %d", s.pageLimit)
	}
	return page, limit, nil
}

func newActivityID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func toActivity(rec model.ActivityRecord) types.Activity {
	return types.Activity{
		ID:              rec.ID,
		UserID:          rec.UserID,
		ActivityType:    string(rec.ActivityType),
		DifficultyLevel: string(rec.DifficultyLevel),
		Points:          rec.Points,
		Description:     rec.Description,
		Timestamp:       rec.Timestamp,
		Metadata:        rec.Metadata,
	}
}

func toActivities(recs []model.ActivityRecord) []types.Activity {
	out := make([]types.Activity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toActivity(rec))
	}
	return out
}

// percentage returns part/total in percent rounded to two places, 0 for an
// empty total.
func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(total))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
