package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doefacil/doefacil-api/internal/models"
)

// ErrDuplicateDonation is returned when a donation with the same payment
// intent has already been recorded. Callers treat this as an idempotent
// replay, not a failure.
var ErrDuplicateDonation = errors.New("donation already recorded for payment intent")

// DonationRepository handles donation-related database operations.
type DonationRepository struct {
	db *DB
}

// NewDonationRepository creates a new donation repository.
func NewDonationRepository(db *DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// Create inserts a donation row. The unique index on payment_intent_id is the
// dedup guard: a retried registration surfaces as ErrDuplicateDonation.
func (r *DonationRepository) Create(donation *models.Donation) error {
	err := r.db.Create(donation).Error
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateDonation
		}
		return fmt.Errorf("failed to create donation: %w", err)
	}
	return nil
}

// GetByPaymentIntentID retrieves a donation by the payment provider's intent ID.
func (r *DonationRepository) GetByPaymentIntentID(intentID string) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.Where("payment_intent_id = ?", intentID).First(&donation).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get donation for intent %s: %w", intentID, err)
	}
	return &donation, nil
}

// ListByCampaign retrieves donations for a campaign, newest first.
func (r *DonationRepository) ListByCampaign(campaignID uint) ([]models.Donation, error) {
	var donations []models.Donation
	err := r.db.Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&donations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list donations for campaign %d: %w", campaignID, err)
	}
	return donations, nil
}

// ListByUser retrieves a user's donations, newest first.
func (r *DonationRepository) ListByUser(userID string) ([]models.Donation, error) {
	var donations []models.Donation
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&donations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list donations for user %s: %w", userID, err)
	}
	return donations, nil
}

// ListUnawarded retrieves donations missing a points entry for the donor or
// for the campaign owner. This is the reconciliation query: a donation row
// exists before points are awarded, so rows surfacing here mark awards that
// were lost to a storage failure. Anonymous donations carry no donor award but
// still owe the owner one; self-donations owe the donor award only.
func (r *DonationRepository) ListUnawarded(olderThan time.Time) ([]models.Donation, error) {
	missingDonorAward := "donations.user_id IS NOT NULL" +
		" AND NOT EXISTS (SELECT 1 FROM points_history" +
		" WHERE points_history.source_type = ?" +
		" AND points_history.source_id = donations.payment_intent_id" +
		" AND points_history.user_id = donations.user_id)"
	missingOwnerAward := "(donations.user_id IS NULL OR donations.user_id <> campaigns.user_id)" +
		" AND NOT EXISTS (SELECT 1 FROM points_history" +
		" WHERE points_history.source_type = ?" +
		" AND points_history.source_id = donations.payment_intent_id" +
		" AND points_history.user_id = campaigns.user_id)"

	var donations []models.Donation
	err := r.db.Model(&models.Donation{}).
		Select("donations.*").
		Joins("JOIN campaigns ON campaigns.id = donations.campaign_id").
		Where("donations.created_at < ?", olderThan).
		Where("("+missingDonorAward+") OR ("+missingOwnerAward+")", "donation", "donation").
		Find(&donations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unawarded donations: %w", err)
	}
	return donations, nil
}

// CountByUser returns the number of donations made by a user.
func (r *DonationRepository) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Donation{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count donations for user %s: %w", userID, err)
	}
	return count, nil
}

// isUniqueViolation matches unique constraint errors from both Postgres and
// the SQLite test driver.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
