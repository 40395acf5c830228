package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/doefacil/doefacil-api/internal/models"
)

// CampaignRepository handles campaign-related database operations.
type CampaignRepository struct {
	db *DB
}

// NewCampaignRepository creates a new campaign repository.
func NewCampaignRepository(db *DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign.
func (r *CampaignRepository) Create(campaign *models.Campaign) error {
	if err := r.db.Create(campaign).Error; err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID retrieves a campaign by its ID.
func (r *CampaignRepository) GetByID(id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.Preload("Owner").First(&campaign, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get campaign %d: %w", id, err)
	}
	return &campaign, nil
}

// List retrieves campaigns with optional category and status filters.
func (r *CampaignRepository) List(category, status string) ([]models.Campaign, error) {
	query := r.db.Model(&models.Campaign{})

	if category != "" {
		query = query.Where("category = ?", category)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var campaigns []models.Campaign
	if err := query.Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// ListByOwner retrieves all campaigns owned by a user.
func (r *CampaignRepository) ListByOwner(userID string) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns for owner %s: %w", userID, err)
	}
	return campaigns, nil
}

// AddToRaised increments a campaign's raised total by amountCents as a single
// SQL update. Reading the current value into memory and writing back would
// lose concurrent donations.
func (r *CampaignRepository) AddToRaised(id uint, amountCents int64) error {
	result := r.db.Model(&models.Campaign{}).
		Where("id = ?", id).
		UpdateColumn("raised_cents", gorm.Expr("raised_cents + ?", amountCents))
	if result.Error != nil {
		return fmt.Errorf("failed to increment raised for campaign %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to increment raised: campaign %d not found", id)
	}
	return nil
}

// UpdateStatus sets the stored status of a campaign.
func (r *CampaignRepository) UpdateStatus(id uint, status string) error {
	err := r.db.Model(&models.Campaign{}).Where("id = ?", id).Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to update status for campaign %d: %w", id, err)
	}
	return nil
}

// ListFunded retrieves active campaigns whose raised total has reached the
// goal. Used by the scheduler to transition stored status to completed.
func (r *CampaignRepository) ListFunded() ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := r.db.Where("status = ? AND raised_cents >= goal_cents", models.CampaignStatusActive).
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list funded campaigns: %w", err)
	}
	return campaigns, nil
}
