// Package campaigns provides campaign management and the derived aggregate
// view (progress, days left, effective status).
package campaigns

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/doefacil/doefacil-api/internal/cache"
	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/internal/repository"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

const viewCacheTTL = 30 * time.Second

// CampaignRepository interface for campaign operations.
type CampaignRepository interface {
	Create(campaign *models.Campaign) error
	GetByID(id uint) (*models.Campaign, error)
	List(category, status string) ([]models.Campaign, error)
	ListByOwner(userID string) ([]models.Campaign, error)
	UpdateStatus(id uint, status string) error
}

// Service handles campaign operations.
type Service struct {
	campaignRepo CampaignRepository
	cache        cache.Cache
	log          *logger.Logger
}

// NewService creates a new campaigns service.
func NewService(campaignRepo *repository.CampaignRepository, c cache.Cache, log *logger.Logger) *Service {
	return &Service{campaignRepo: campaignRepo, cache: c, log: log}
}

// NewServiceWithInterfaces creates a new campaigns service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(campaignRepo CampaignRepository, c cache.Cache, log *logger.Logger) *Service {
	return &Service{campaignRepo: campaignRepo, cache: c, log: log}
}

// View is the campaign read model with derived fields.
type View struct {
	models.Campaign
	Progress        int    `json:"progress"`
	DaysLeft        *int   `json:"days_left,omitempty"`
	EffectiveStatus string `json:"effective_status"`
}

// Progress returns the funding percentage, clamped to [0,100]. A non-positive
// goal reports 0 rather than dividing by it.
func Progress(c *models.Campaign) int {
	if c.GoalCents <= 0 {
		return 0
	}
	progress := int(math.Round(100 * float64(c.RaisedCents) / float64(c.GoalCents)))
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// DaysLeft returns the whole days remaining until the end date, rounded up
// and floored at 0. Campaigns without an end date return nil.
func DaysLeft(c *models.Campaign, now time.Time) *int {
	if c.EndDate == nil {
		return nil
	}
	days := int(math.Ceil(c.EndDate.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return &days
}

// EffectiveStatus derives the status clients see. Canceled wins over
// everything, a fully funded campaign reads completed, a past end date reads
// expired. Expired is never written to storage.
func EffectiveStatus(c *models.Campaign, now time.Time) string {
	if c.Status == models.CampaignStatusCanceled {
		return models.CampaignStatusCanceled
	}
	if c.Status == models.CampaignStatusCompleted || Progress(c) >= 100 {
		return models.CampaignStatusCompleted
	}
	if c.EndDate != nil && c.EndDate.Before(now) {
		return models.CampaignStatusExpired
	}
	return models.CampaignStatusActive
}

// CreateInput holds the fields for a new campaign. OwnerID is the caller's
// auth subject, passed explicitly.
type CreateInput struct {
	Title       string
	Description string
	Category    string
	GoalCents   int64
	ImageURL    string
	EndDate     *time.Time
	OwnerID     string
}

// Create creates a campaign.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Campaign, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("campaign title is required")
	}
	if input.GoalCents <= 0 {
		return nil, fmt.Errorf("campaign goal must be positive, got %d", input.GoalCents)
	}
	if input.OwnerID == "" {
		return nil, fmt.Errorf("campaign owner is required")
	}

	campaign := &models.Campaign{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		GoalCents:   input.GoalCents,
		ImageURL:    input.ImageURL,
		EndDate:     input.EndDate,
		UserID:      input.OwnerID,
		Status:      models.CampaignStatusActive,
	}

	if err := s.campaignRepo.Create(campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.log.Info().
		Uint("campaign_id", campaign.ID).
		Str("owner", campaign.UserID).
		Int64("goal_cents", campaign.GoalCents).
		Msg("Campaign created")

	return campaign, nil
}

// GetView returns a campaign with derived fields, served from cache when a
// fresh copy exists.
func (s *Service) GetView(ctx context.Context, id uint) (*View, error) {
	key := fmt.Sprintf("campaign:%d:view", id)

	if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
		var view View
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			return &view, nil
		}
	}

	campaign, err := s.campaignRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign %d: %w", id, err)
	}

	view := s.buildView(campaign, time.Now())

	if payload, err := json.Marshal(view); err == nil {
		if err := s.cache.Set(ctx, key, string(payload), viewCacheTTL); err != nil {
			s.log.Warn().Err(err).Uint("campaign_id", id).Msg("Failed to cache campaign view")
		}
	}

	return view, nil
}

// InvalidateView drops a campaign's cached view. Called after donations.
func (s *Service) InvalidateView(ctx context.Context, id uint) {
	if err := s.cache.Del(ctx, fmt.Sprintf("campaign:%d:view", id)); err != nil {
		s.log.Warn().Err(err).Uint("campaign_id", id).Msg("Failed to invalidate campaign view")
	}
}

// List returns campaign views with optional category and effective status
// filters. The expired filter cannot be pushed to the store because expired
// is derived, so it is applied after the read.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) List(ctx context.Context, category, status string) ([]View, error) {
	storedStatus := status
	if status == models.CampaignStatusExpired || status == models.CampaignStatusCompleted {
		storedStatus = ""
	}

	campaignList, err := s.campaignRepo.List(category, storedStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	now := time.Now()
	views := make([]View, 0, len(campaignList))
	for i := range campaignList {
		view := s.buildView(&campaignList[i], now)
		if status != "" && view.EffectiveStatus != status {
			continue
		}
		views = append(views, *view)
	}

	return views, nil
}

// Cancel sets a campaign to canceled. Only the owner may cancel.
func (s *Service) Cancel(ctx context.Context, id uint, callerID string) error {
	campaign, err := s.campaignRepo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to get campaign %d: %w", id, err)
	}

	if campaign.UserID != callerID {
		return fmt.Errorf("user %s is not the owner of campaign %d", callerID, id)
	}
	if campaign.Status == models.CampaignStatusCanceled {
		return nil
	}

	if err := s.campaignRepo.UpdateStatus(id, models.CampaignStatusCanceled); err != nil {
		return fmt.Errorf("failed to cancel campaign %d: %w", id, err)
	}

	s.InvalidateView(ctx, id)

	s.log.Info().
		Uint("campaign_id", id).
		Str("owner", callerID).
		Msg("Campaign canceled")

	return nil
}

func (s *Service) buildView(c *models.Campaign, now time.Time) *View {
	return &View{
		Campaign:        *c,
		Progress:        Progress(c),
		DaysLeft:        DaysLeft(c, now),
		EffectiveStatus: EffectiveStatus(c, now),
	}
}
