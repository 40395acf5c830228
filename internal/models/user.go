// Package models defines domain models for the donation platform.
package models

import (
	"time"
)

// User represents a platform user. The primary key is the subject string
// issued by the external auth provider; identity is always passed explicitly,
// never read from ambient state.
type User struct {
	ID        string    `gorm:"primaryKey;size:255" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email     string    `gorm:"size:255" json:"email"`
	AvatarURL string    `gorm:"type:text" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}
