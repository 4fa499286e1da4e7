package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionArchive is the Mongo document written when an idle session is
// evicted from the in-memory context store. The turn sequence is the final
// window, in original order.
type SessionArchive struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	UserID    string             `bson:"user_id" json:"user_id"`

	Turns []ArchivedTurn `bson:"turns" json:"turns"`

	StartedAt  time.Time `bson:"started_at" json:"started_at"`
	LastActive time.Time `bson:"last_active" json:"last_active"`
	ArchivedAt time.Time `bson:"archived_at" json:"archived_at"`
	TurnCount  int       `bson:"turn_count" json:"turn_count"`
}

type ArchivedTurn struct {
	Role       Role      `bson:"role" json:"role"`
	Text       string    `bson:"text" json:"text"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	TokenCount int       `bson:"token_count" json:"token_count"`
	ModelUsed  string    `bson:"model_used,omitempty" json:"model_used,omitempty"`
	Degraded   bool      `bson:"degraded,omitempty" json:"degraded,omitempty"`
}
