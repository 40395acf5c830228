package models

import (
	"time"
)

// UserLevel is the per-user aggregate derived from points_history. TotalPoints
// is a cache over the ledger; level and progress are recomputed in the same
// transaction as every points mutation.
type UserLevel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"uniqueIndex;not null;size:255" json:"user_id"`
	Level       int       `gorm:"not null;default:1" json:"level"`
	TotalPoints int       `gorm:"not null;default:0" json:"total_points"`
	Progress    int       `gorm:"not null;default:0" json:"progress"`
	LastUpdated time.Time `json:"last_updated"`
}

// TableName specifies the table name for UserLevel model.
func (UserLevel) TableName() string {
	return "user_levels"
}

// PointsHistory is the append-only ledger of point deltas. SourceType and
// SourceID tie an entry back to the event that produced it so reconciliation
// can join donations against awarded points.
type PointsHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"not null;index;size:255" json:"user_id"`
	Category    string    `gorm:"not null;size:50;index" json:"category"`
	Points      int       `gorm:"not null" json:"points"`
	Description string    `gorm:"type:text" json:"description"`
	SourceType  string    `gorm:"size:50;index:idx_points_source" json:"source_type"`
	SourceID    string    `gorm:"size:255;index:idx_points_source" json:"source_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for PointsHistory model.
func (PointsHistory) TableName() string {
	return "points_history"
}

// Achievement represents a catalog entry. Icon is opaque display metadata the
// core never interprets.
type Achievement struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	Icon           string    `gorm:"size:50" json:"icon"`
	Category       string    `gorm:"not null;size:50;index" json:"category"`
	RequiredPoints int       `gorm:"not null" json:"required_points"`
	Secret         bool      `gorm:"not null;default:false" json:"secret"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for Achievement model.
func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement records one unlock. UNIQUE(user_id, achievement_id) makes a
// second unlock impossible regardless of evaluation interleaving.
type UserAchievement struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        string      `gorm:"not null;size:255;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID uint        `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	Achievement   Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	UnlockedAt    time.Time   `gorm:"not null" json:"unlocked_at"`
	Progress      int         `gorm:"not null;default:0" json:"progress"`
}

// TableName specifies the table name for UserAchievement model.
func (UserAchievement) TableName() string {
	return "user_achievements"
}

// Points categories.
const (
	CategoryDonation    = "donation"
	CategorySharing     = "sharing"
	CategoryEngagement  = "engagement"
	CategoryConsistency = "consistency"
	CategorySocial      = "social"
	CategorySpecial     = "special" // achievements only
)

// ValidCategory reports whether c is a known points category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryDonation, CategorySharing, CategoryEngagement, CategoryConsistency, CategorySocial:
		return true
	}
	return false
}
