package model

import "time"

// ActivityRecord is one immutable entry of the activity ledger.
type ActivityRecord struct {
	ID              string
	UserID          string
	ActivityType    ActivityType
	DifficultyLevel Difficulty
	Points          int64
	Description     string
	Timestamp       time.Time
	Metadata        map[string]any
}
