package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// PersonalizationRecord is the derived per-user preference profile.
// It lags turn creation: the learning engine folds turns in asynchronously,
// so readers must tolerate stale values.
type PersonalizationRecord struct {
	UserID string `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`

	TopicCounts datatypes.JSON `gorm:"column:topic_counts;type:jsonb" json:"topic_counts"`
	TopTopics   pq.StringArray `gorm:"column:top_topics;type:text[]" json:"top_topics"`

	// EWMA of assistant reply lengths (runes)
	AvgResponseLen float64 `gorm:"column:avg_response_len" json:"avg_response_len"`

	ModelSuccess   datatypes.JSON `gorm:"column:model_success;type:jsonb" json:"model_success"`
	PreferredModel string         `gorm:"column:preferred_model;type:text" json:"preferred_model"`

	TurnsSeen int64     `gorm:"column:turns_seen" json:"turns_seen"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (PersonalizationRecord) TableName() string { return "personalization_records" }
