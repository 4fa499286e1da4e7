package models

import "time"

type Role string

const (
	RoleTurnUser      Role = "user"
	RoleTurnAssistant Role = "assistant"
	RoleTurnSystem    Role = "system"
)

// Turn is one message inside a session window. Immutable once appended.
type Turn struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID       string    `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	SessionID    string    `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	Role         Role      `gorm:"column:role;type:text" json:"role"`
	Text         string    `gorm:"column:text;type:text" json:"text"`
	Timestamp    time.Time `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
	TokenCount   int       `gorm:"column:token_count" json:"token_count"`
	ModelUsed    string    `gorm:"column:model_used;type:text" json:"model_used,omitempty"`
	CostEstimate float64   `gorm:"column:cost_estimate" json:"cost_estimate,omitempty"`
	Degraded     bool      `gorm:"column:degraded;default:false" json:"degraded"`
}

func (Turn) TableName() string { return "turns" }
