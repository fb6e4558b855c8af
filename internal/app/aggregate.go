package service

import (
	"context"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
)

// AccountWindow restricts account rollups to a creation window given either
// as an explicit range or a timeframe preset.
type AccountWindow struct {
	From      *time.Time
	To        *time.Time
	Timeframe string
}

// Leaderboard returns the top n accounts. Equal totals share a rank and the
// next distinct total skips ahead (50, 50, 30 rank 1, 1, 3).
func (s *Service) Leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	store, err := s.backend()
	if err != nil {
		return nil, err
	}
	if n < 1 || n > s.leaderboardLimit {
		return nil, invalid("limit must be between 1 and %d", s.leaderboardLimit)
	}
	accs, err := store.TopAccounts(ctx, n)
	if err != nil {
		return nil, classify(err)
	}
	return rankAccounts(accs), nil
}

// rankAccounts assigns competition ranks to accounts sorted from the top.
func rankAccounts(accs []model.Account) []types.Entry {
	out := make([]types.Entry, len(accs))
	for i, acc := range accs {
		rank := i + 1
		if i > 0 && acc.TotalPoints == accs[i-1].TotalPoints {
			rank = out[i-1].Rank
		}
		out[i] = types.Entry{Rank: rank, UserID: acc.UserID, Username: acc.Username, TotalPoints: acc.TotalPoints}
	}
	return out
}

// Rank returns the leaderboard entry of one user.
func (s *Service) Rank(ctx context.Context, userID any) (types.Entry, error) {
	sum, err := s.UserSummary(ctx, userID)
	if err != nil {
		return types.Entry{}, err
	}
	return types.Entry{Rank: sum.Ranking, UserID: sum.UserID, Username: sum.Username, TotalPoints: sum.TotalPoints}, nil
}

// UserSummary returns the totals, counters and ranking of one user.
func (s *Service) UserSummary(ctx context.Context, userID any) (types.UserSummary, error) {
	store, err := s.backend()
	if err != nil {
		return types.UserSummary{}, err
	}
	id, err := model.NormalizeUserID(userID)
	if err != nil {
		return types.UserSummary{}, classify(err)
	}
	acc, err := store.GetAccount(ctx, id)
	if err != nil {
		return types.UserSummary{}, classify(err)
	}
	return s.summaryOf(ctx, acc)
}

func (s *Service) summaryOf(ctx context.Context, acc model.Account) (types.UserSummary, error) {
	store, err := s.backend()
	if err != nil {
		return types.UserSummary{}, err
	}
	above, err := store.CountAbove(ctx, acc.TotalPoints)
	if err != nil {
		return types.UserSummary{}, classify(err)
	}
	return types.UserSummary{
		UserID:      acc.UserID,
		Username:    acc.Username,
		TotalPoints: acc.TotalPoints,
		Progress:    progressOf(acc),
		Ranking:     above + 1,
		CreatedAt:   acc.CreatedAt,
	}, nil
}

// UserDetails explains the points of one user per task type.
func (s *Service) UserDetails(ctx context.Context, userID any) (types.UserDetails, error) {
	sum, err := s.UserSummary(ctx, userID)
	if err != nil {
		return types.UserDetails{}, err
	}
	store, err := s.backend()
	if err != nil {
		return types.UserDetails{}, err
	}
	acc, err := store.GetAccount(ctx, sum.UserID)
	if err != nil {
		return types.UserDetails{}, classify(err)
	}

	out := types.UserDetails{
		UserSummary:         sum,
		TaskTypes:           make([]types.TaskBreakdown, 0, len(model.TaskTypes)),
		CenturyBonusGranted: acc.CenturyBonusGranted,
	}
	if acc.CenturyBonusGranted {
		out.CenturyBonusPoints = s.tasks.CenturyPoints()
	}
	for _, t := range model.TaskTypes {
		n := acc.Completed(t)
		base, milestones, bonus := s.tasks.Earned(t, n)
		rule, _ := s.tasks.Rule(t)
		out.TaskTypes = append(out.TaskTypes, types.TaskBreakdown{
			TaskType:           string(t),
			Completed:          n,
			BasePoints:         base,
			MilestonesReached:  milestones,
			MilestoneBonus:     bonus,
			TotalEarnedPoints:  base + bonus,
			MilestoneInterval:  rule.BonusInterval,
			PointsPerMilestone: rule.BonusPoints,
		})
	}
	return out, nil
}

// AggregateSummary totals every account and lists the top users. A non
// positive topN takes the configured default.
func (s *Service) AggregateSummary(ctx context.Context, topN int) (types.AggregateSummary, error) {
	store, err := s.backend()
	if err != nil {
		return types.AggregateSummary{}, err
	}
	totals, err := store.SumAccounts(ctx, repository.AccountFilter{})
	if err != nil {
		return types.AggregateSummary{}, classify(err)
	}
	top, err := s.topUsers(ctx, topN)
	if err != nil {
		return types.AggregateSummary{}, err
	}
	return types.AggregateSummary{
		TotalUsers:    totals.Accounts,
		TotalPoints:   totals.TotalPoints,
		AveragePoints: average(totals.TotalPoints, totals.Accounts),
		TopUsers:      top,
	}, nil
}

// TopUsersSummary returns the account count and the top users.
func (s *Service) TopUsersSummary(ctx context.Context, topN int) (types.TopUsersSummary, error) {
	store, err := s.backend()
	if err != nil {
		return types.TopUsersSummary{}, err
	}
	n, err := store.CountAccounts(ctx)
	if err != nil {
		return types.TopUsersSummary{}, classify(err)
	}
	top, err := s.topUsers(ctx, topN)
	if err != nil {
		return types.TopUsersSummary{}, err
	}
	return types.TopUsersSummary{TotalUsers: n, TopUsers: top}, nil
}

func (s *Service) topUsers(ctx context.Context, n int) ([]types.Entry, error) {
	if n <= 0 {
		n = s.defaultTop
	}
	return s.Leaderboard(ctx, min(n, s.leaderboardLimit))
}

// AggregateDetails totals the accounts created inside a window.
func (s *Service) AggregateDetails(ctx context.Context, w AccountWindow) (types.AggregateDetails, error) {
	store, err := s.backend()
	if err != nil {
		return types.AggregateDetails{}, err
	}
	from, to, err := window(w.From, w.To, w.Timeframe, s.now())
	if err != nil {
		return types.AggregateDetails{}, err
	}
	totals, err := store.SumAccounts(ctx, repository.AccountFilter{CreatedFrom: from, CreatedTo: to})
	if err != nil {
		return types.AggregateDetails{}, classify(err)
	}
	return types.AggregateDetails{
		TotalUsers:    totals.Accounts,
		TotalPoints:   totals.TotalPoints,
		AveragePoints: average(totals.TotalPoints, totals.Accounts),
		ActivitySummary: types.Progress{
			TasksCompleted:             totals.TasksCompleted,
			HighPriorityTasksCompleted: totals.HighPriorityTasksCompleted,
			ActivitiesCompleted:        totals.ActivitiesCompleted,
		},
		From: from,
		To:   to,
	}, nil
}

// DeleteAll wipes both ledgers and the idempotency keys. It is not excluded
// against concurrent writes: an event racing the delete may survive it or not.
func (s *Service) DeleteAll(ctx context.Context) (types.DeleteSummary, error) {
	store, err := s.backend()
	if err != nil {
		return types.DeleteSummary{}, err
	}
	res, err := store.DeleteAll(ctx)
	if err != nil {
		s.logger.Error(ctx, "bulk delete failed", logger.Error(err))
		return types.DeleteSummary{}, classify(err)
	}

	s.mu.Lock()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.mu.Unlock()

	s.logger.Warn(ctx, "all points data deleted",
		logger.Int64("accounts", res.Accounts),
		logger.Int64("activities", res.Activities),
	)
	return types.DeleteSummary{AccountsDeleted: res.Accounts, ActivitiesDeleted: res.Activities}, nil
}

func average(total int64, n int) float64 {
	if n == 0 {
		return 0
	}
	return round2(float64(total) / float64(n))
}
