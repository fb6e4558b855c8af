package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/policy"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NewUser is the input of CreateUser.
type NewUser struct {
	UserID        any
	Username      string
	Email         string
	InitialPoints int64
}

// RecordTaskEvent awards the points of one completed task. The account is
// created on the first event. Concurrent events of one user are applied one
// at a time by the store, so no increment is lost.
func (s *Service) RecordTaskEvent(ctx context.Context, userID any, taskType string) (types.TaskResult, error) {
	store, err := s.backend()
	if err != nil {
		return types.TaskResult{}, err
	}
	id, err := model.NormalizeUserID(userID)
	if err != nil {
		return types.TaskResult{}, classify(err)
	}
	t, err := model.ParseTaskType(taskType)
	if err != nil {
		return types.TaskResult{}, classify(err)
	}

	// the store may run fn more than once; only the committed run counts
	var award policy.Award
	acc, err := store.UpdateAccount(ctx, id, func(acc *model.Account) error {
		a, err := s.tasks.Apply(acc, t)
		if err != nil {
			return err
		}
		award = a
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "failed to record task event",
			logger.String("userId", id),
			logger.String("taskType", string(t)),
			logger.Error(err),
		)
		metrics.RecordErrorByComponent("ledger", "update_account")
		return types.TaskResult{}, classify(err)
	}

	metrics.RecordTaskEvent(string(t))
	metrics.RecordPointsAwarded("task", award.Total)
	if award.IntervalBonus > 0 {
		metrics.RecordBonus("interval")
	}
	if award.Century() {
		metrics.RecordBonus("century")
	}
	s.logger.Info(ctx, "points awarded",
		logger.String("userId", id),
		logger.String("taskType", string(t)),
		logger.Int64("pointsEarned", award.Total),
		logger.Int64("totalPoints", acc.TotalPoints),
	)

	return types.TaskResult{
		UserID:        id,
		TaskType:      string(t),
		PointsEarned:  award.Total,
		IntervalBonus: award.IntervalBonus,
		CenturyBonus:  award.CenturyBonus,
		TotalPoints:   acc.TotalPoints,
		Progress:      progressOf(acc),
	}, nil
}

// CreateUser registers an account explicitly. An account that starts at or
// above the century threshold never earns the century bonus.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (types.UserSummary, error) {
	store, err := s.backend()
	if err != nil {
		return types.UserSummary{}, err
	}
	id, err := model.NormalizeUserID(in.UserID)
	if err != nil {
		return types.UserSummary{}, classify(err)
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return types.UserSummary{}, invalid("username is required")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return types.UserSummary{}, invalid("email is required")
	}
	if !emailPattern.MatchString(email) {
		return types.UserSummary{}, invalid("malformed email %q", email)
	}
	if in.InitialPoints < 0 {
		return types.UserSummary{}, invalid("initial points must not be negative")
	}

	acc, err := store.CreateAccount(ctx, model.Account{
		UserID:              id,
		Username:            username,
		Email:               email,
		TotalPoints:         in.InitialPoints,
		CenturyBonusGranted: in.InitialPoints >= s.tasks.CenturyThreshold(),
	})
	if err != nil {
		return types.UserSummary{}, classify(err)
	}

	s.logger.Info(ctx, "user created",
		logger.String("userId", id),
		logger.String("username", username),
		logger.Int64("initialPoints", in.InitialPoints),
	)
	return s.summaryOf(ctx, acc)
}

func progressOf(acc model.Account) types.Progress {
	return types.Progress{
		TasksCompleted:             acc.TasksCompleted,
		HighPriorityTasksCompleted: acc.HighPriorityTasksCompleted,
		ActivitiesCompleted:        acc.ActivitiesCompleted,
	}
}
