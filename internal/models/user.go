package models

import (
	"time"

	"gorm.io/datatypes"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string         `gorm:"column:email;type:text;uniqueIndex" json:"email"`
	DisplayName  string         `gorm:"column:display_name;type:text" json:"display_name"`
	PasswordHash string         `gorm:"column:password_hash;type:text" json:"-"`
	Role         UserRole       `gorm:"column:role;type:text;default:user" json:"role"`
	Preferences  datatypes.JSON `gorm:"column:preferences;type:jsonb" json:"preferences"`

	// users are soft-retired, never hard-deleted
	Retired bool `gorm:"column:retired;default:false" json:"retired"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// UserPreferences is the decoded shape of User.Preferences.
type UserPreferences struct {
	Model    string `json:"model,omitempty"`
	Tone     string `json:"tone,omitempty"`
	Language string `json:"language,omitempty"`
}
