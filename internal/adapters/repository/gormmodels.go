package repository

import (
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// accountRow is the accounts table. Version drives optimistic concurrency.
type accountRow struct {
	ID                         uint   `gorm:"primaryKey"`
	UserID                     string `gorm:"size:128;uniqueIndex;not null"`
	Username                   string `gorm:"size:128"`
	Email                      string `gorm:"size:256;index"`
	TotalPoints                int64  `gorm:"not null;default:0;index"`
	TasksCompleted             int64  `gorm:"not null;default:0"`
	HighPriorityTasksCompleted int64  `gorm:"not null;default:0"`
	ActivitiesCompleted        int64  `gorm:"not null;default:0"`
	CenturyBonusGranted        bool   `gorm:"not null;default:false"`
	Version                    int64  `gorm:"not null;default:0"`
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (accountRow) TableName() string { return "accounts" }

func (r accountRow) toModel() model.Account {
	return model.Account{
		UserID:                     r.UserID,
		Username:                   r.Username,
		Email:                      r.Email,
		TotalPoints:                r.TotalPoints,
		TasksCompleted:             r.TasksCompleted,
		HighPriorityTasksCompleted: r.HighPriorityTasksCompleted,
		ActivitiesCompleted:        r.ActivitiesCompleted,
		CenturyBonusGranted:        r.CenturyBonusGranted,
		CreatedAt:                  r.CreatedAt.UTC(),
		UpdatedAt:                  r.UpdatedAt.UTC(),
	}
}

// activityRow is the activities table.
type activityRow struct {
	ID              string         `gorm:"primaryKey;size:36"`
	UserID          string         `gorm:"size:128;not null;index:idx_activities_user_ts,priority:1"`
	ActivityType    string         `gorm:"size:32;not null;index"`
	DifficultyLevel string         `gorm:"size:16;not null;default:easy"`
	Points          int64          `gorm:"not null;default:0"`
	Description     string         `gorm:"size:1024"`
	Timestamp       time.Time      `gorm:"not null;index:idx_activities_user_ts,priority:2"`
	Metadata        map[string]any `gorm:"serializer:json"`
	CreatedAt       time.Time
}

func (activityRow) TableName() string { return "activities" }

func newActivityRow(rec model.ActivityRecord) activityRow {
	return activityRow{
		ID:              rec.ID,
		UserID:          rec.UserID,
		ActivityType:    string(rec.ActivityType),
		DifficultyLevel: string(rec.DifficultyLevel),
		Points:          rec.Points,
		Description:     rec.Description,
		Timestamp:       rec.Timestamp.UTC(),
		Metadata:        rec.Metadata,
	}
}

func (r activityRow) toModel() model.ActivityRecord {
	return model.ActivityRecord{
		ID:              r.ID,
		UserID:          r.UserID,
		ActivityType:    model.ActivityType(r.ActivityType),
		DifficultyLevel: model.Difficulty(r.DifficultyLevel),
		Points:          r.Points,
		Description:     r.Description,
		Timestamp:       r.Timestamp.UTC(),
		Metadata:        r.Metadata,
	}
}
