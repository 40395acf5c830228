package models

import (
	"time"
)

// Campaign represents a fundraising campaign. All monetary values are in
// integer cents; RaisedCents is only ever mutated through atomic SQL
// increments in the donation flow.
type Campaign struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"not null;size:255" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Category    string     `gorm:"size:100;index" json:"category"`
	GoalCents   int64      `gorm:"not null" json:"goal_cents"`
	RaisedCents int64      `gorm:"not null;default:0" json:"raised_cents"`
	ImageURL    string     `gorm:"type:text" json:"image_url"`
	EndDate     *time.Time `json:"end_date"`
	UserID      string     `gorm:"not null;index;size:255" json:"user_id"`
	Owner       User       `gorm:"foreignKey:UserID" json:"owner,omitempty"`
	Status      string     `gorm:"size:50;index;default:active" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Campaign model.
func (Campaign) TableName() string {
	return "campaigns"
}

// Donation represents a single completed contribution. Rows are immutable and
// unique per payment intent so a retried registration can never double-record.
type Donation struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AmountCents     int64     `gorm:"not null" json:"amount_cents"`
	CampaignID      uint      `gorm:"not null;index" json:"campaign_id"`
	Campaign        Campaign  `gorm:"foreignKey:CampaignID" json:"campaign,omitempty"`
	UserID          *string   `gorm:"index;size:255" json:"user_id"`
	Anonymous       bool      `gorm:"not null;default:false" json:"anonymous"`
	PaymentIntentID string    `gorm:"uniqueIndex;not null;size:255" json:"payment_intent_id"`
	PaymentStatus   string    `gorm:"size:50" json:"payment_status"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for Donation model.
func (Donation) TableName() string {
	return "donations"
}

// Stored campaign status constants. "expired" is a read-side derivation and is
// never written to the status column.
const (
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
	CampaignStatusCanceled  = "canceled"
	CampaignStatusExpired   = "expired"
)
