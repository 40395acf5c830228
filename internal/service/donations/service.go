// Package donations implements the donation flow: payment intent brokering,
// donation recording, campaign aggregation and point awards.
package donations

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	prommetrics "github.com/doefacil/doefacil-api/internal/metrics"
	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/internal/payments"
	"github.com/doefacil/doefacil-api/internal/repository"
	"github.com/doefacil/doefacil-api/internal/service/campaigns"
	"github.com/doefacil/doefacil-api/internal/service/points"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

// MinDonationCents is the smallest accepted donation (R$1).
const MinDonationCents = 100

// donationSource tags points_history entries produced by donations; the
// reconciliation job joins on it.
const donationSource = "donation"

// Sentinel errors surfaced to handlers.
var (
	ErrInvalidAmount       = errors.New("donation amount is below the minimum")
	ErrPaymentNotConfirmed = errors.New("payment has not succeeded")
	ErrCampaignNotOpen     = errors.New("campaign is not accepting donations")
)

// RecordingFailedError means the payment succeeded but no donation row could
// be written. Money has moved and the ledger has no trace of it, so this is
// never retried silently; an ops alert fires and a human reconciles.
type RecordingFailedError struct {
	PaymentIntentID string
	Err             error
}

func (e *RecordingFailedError) Error() string {
	return fmt.Sprintf("failed to record donation for payment %s: %v", e.PaymentIntentID, e.Err)
}

func (e *RecordingFailedError) Unwrap() error {
	return e.Err
}

// DonationRepository interface for donation operations.
type DonationRepository interface {
	Create(donation *models.Donation) error
	GetByPaymentIntentID(intentID string) (*models.Donation, error)
}

// CampaignRepository interface for campaign operations.
type CampaignRepository interface {
	GetByID(id uint) (*models.Campaign, error)
	AddToRaised(id uint, amountCents int64) error
}

// PointsService interface for awarding points.
type PointsService interface {
	Award(ctx context.Context, userID, category string, pts int, description, sourceType, sourceID string) (*models.UserLevel, error)
}

// AchievementsService interface for post-award evaluation.
type AchievementsService interface {
	EvaluateUser(ctx context.Context, userID string) ([]models.Achievement, error)
}

// CampaignViewInvalidator drops cached campaign views after a donation.
type CampaignViewInvalidator interface {
	InvalidateView(ctx context.Context, id uint)
}

// Alerter sends ops alerts.
type Alerter interface {
	SendRecordingFailure(paymentIntentID string, campaignID uint, amountCents int64, cause error) error
	SendSimpleMessage(text string) error
}

// Service handles the donation flow.
type Service struct {
	donationRepo DonationRepository
	campaignRepo CampaignRepository
	points       PointsService
	achievements AchievementsService
	views        CampaignViewInvalidator
	provider     payments.Provider
	alerts       Alerter
	currency     string
	log          *logger.Logger
}

// NewService creates a new donations service.
func NewService(
	donationRepo *repository.DonationRepository,
	campaignRepo *repository.CampaignRepository,
	pointsSvc *points.Service,
	achievementsSvc AchievementsService,
	views *campaigns.Service,
	provider payments.Provider,
	alerts Alerter,
	currency string,
	log *logger.Logger,
) *Service {
	return &Service{
		donationRepo: donationRepo,
		campaignRepo: campaignRepo,
		points:       pointsSvc,
		achievements: achievementsSvc,
		views:        views,
		provider:     provider,
		alerts:       alerts,
		currency:     currency,
		log:          log,
	}
}

// NewServiceWithInterfaces creates a new donations service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	donationRepo DonationRepository,
	campaignRepo CampaignRepository,
	pointsSvc PointsService,
	achievementsSvc AchievementsService,
	views CampaignViewInvalidator,
	provider payments.Provider,
	alerts Alerter,
	currency string,
	log *logger.Logger,
) *Service {
	return &Service{
		donationRepo: donationRepo,
		campaignRepo: campaignRepo,
		points:       pointsSvc,
		achievements: achievementsSvc,
		views:        views,
		provider:     provider,
		alerts:       alerts,
		currency:     currency,
		log:          log,
	}
}

// CreateIntent validates the donation and creates a payment intent. All
// validation happens before the provider call so an invalid request never
// reaches Stripe.
func (s *Service) CreateIntent(ctx context.Context, campaignID uint, amountCents int64) (*payments.Intent, error) {
	if amountCents < MinDonationCents {
		return nil, fmt.Errorf("%w: got %d cents", ErrInvalidAmount, amountCents)
	}

	campaign, err := s.campaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %d: %w", campaignID, err)
	}
	if campaigns.EffectiveStatus(campaign, time.Now()) != models.CampaignStatusActive {
		return nil, fmt.Errorf("%w: campaign %d", ErrCampaignNotOpen, campaignID)
	}

	intent, err := s.provider.CreateIntent(ctx, amountCents, s.currency, map[string]string{
		"campaign_id": fmt.Sprintf("%d", campaignID),
	})
	if err != nil {
		prommetrics.RecordPaymentIntentCreated("error")
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	prommetrics.RecordPaymentIntentCreated("success")

	s.log.Info().
		Str("intent_id", intent.ID).
		Uint("campaign_id", campaignID).
		Int64("amount_cents", amountCents).
		Msg("Payment intent created")

	return intent, nil
}

// RegisterInput describes a donation registration. DonorID is the caller's
// auth subject; nil means anonymous.
type RegisterInput struct {
	PaymentIntentID string
	CampaignID      uint
	DonorID         *string
	Anonymous       bool
}

// Result is the outcome of a registration.
type Result struct {
	Donation        *models.Donation     `json:"donation"`
	RaisedCents     int64                `json:"raised_cents"`
	PointsAwarded   int                  `json:"points_awarded"`
	DonorLevel      *models.UserLevel    `json:"donor_level,omitempty"`
	NewAchievements []models.Achievement `json:"new_achievements,omitempty"`
	PointsPending   bool                 `json:"points_pending"`
	Duplicate       bool                 `json:"duplicate"`
}

// Register records a confirmed donation. The order is fixed: verify with the
// provider, insert the donation row, increment the campaign total, award
// points. A duplicate payment intent returns the already-recorded donation
// without a second award. A points failure never rolls back the donation; the
// result reports the award as pending and reconciliation retries it.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	if input.PaymentIntentID == "" {
		return nil, fmt.Errorf("payment intent id is required")
	}
	if input.CampaignID == 0 {
		return nil, fmt.Errorf("campaign id is required")
	}

	intent, err := s.provider.GetIntent(ctx, input.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment %s: %w", input.PaymentIntentID, err)
	}
	if intent.Status != payments.IntentStatusSucceeded {
		return nil, fmt.Errorf("%w: intent %s is %s", ErrPaymentNotConfirmed, intent.ID, intent.Status)
	}

	campaign, err := s.campaignRepo.GetByID(input.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %d: %w", input.CampaignID, err)
	}

	donorID := input.DonorID
	if input.Anonymous {
		donorID = nil
	}

	donation := &models.Donation{
		AmountCents:     intent.AmountCents,
		CampaignID:      campaign.ID,
		UserID:          donorID,
		Anonymous:       donorID == nil,
		PaymentIntentID: intent.ID,
		PaymentStatus:   intent.Status,
	}

	if err := s.donationRepo.Create(donation); err != nil {
		if errors.Is(err, repository.ErrDuplicateDonation) {
			return s.replay(intent.ID, campaign)
		}

		prommetrics.RecordDonationRegistered("failed")
		if alertErr := s.alerts.SendRecordingFailure(intent.ID, campaign.ID, intent.AmountCents, err); alertErr != nil {
			s.log.Error().Err(alertErr).Msg("Failed to send recording failure alert")
		}
		s.log.Error().
			Err(err).
			Str("intent_id", intent.ID).
			Uint("campaign_id", campaign.ID).
			Msg("Donation recording failed after confirmed payment")
		return nil, &RecordingFailedError{PaymentIntentID: intent.ID, Err: err}
	}

	result := &Result{
		Donation:    donation,
		RaisedCents: campaign.RaisedCents,
	}

	if err := s.campaignRepo.AddToRaised(campaign.ID, donation.AmountCents); err != nil {
		s.log.Error().
			Err(err).
			Uint("campaign_id", campaign.ID).
			Msg("Failed to increment campaign raised total")
		if alertErr := s.alerts.SendSimpleMessage(fmt.Sprintf(
			"⚠️ Donation %s recorded but campaign %d raised total was not incremented.",
			intent.ID, campaign.ID)); alertErr != nil {
			s.log.Error().Err(alertErr).Msg("Failed to send aggregate alert")
		}
	} else {
		result.RaisedCents = campaign.RaisedCents + donation.AmountCents
	}

	s.award(ctx, donation, campaign, result)

	s.views.InvalidateView(ctx, campaign.ID)

	prommetrics.RecordDonationRegistered("recorded")
	prommetrics.ObserveDonationAmount(campaign.Category, donation.AmountCents)

	s.log.Info().
		Str("intent_id", intent.ID).
		Uint("campaign_id", campaign.ID).
		Int64("amount_cents", donation.AmountCents).
		Bool("anonymous", donation.Anonymous).
		Bool("points_pending", result.PointsPending).
		Msg("Donation registered")

	return result, nil
}

// replay returns the result of an earlier registration of the same payment
// intent. No increments and no awards happen again.
func (s *Service) replay(intentID string, campaign *models.Campaign) (*Result, error) {
	existing, err := s.donationRepo.GetByPaymentIntentID(intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recorded donation for %s: %w", intentID, err)
	}

	prommetrics.RecordDonationRegistered("duplicate")

	s.log.Info().
		Str("intent_id", intentID).
		Msg("Duplicate donation registration, replaying recorded result")

	return &Result{
		Donation:    existing,
		RaisedCents: campaign.RaisedCents,
		Duplicate:   true,
	}, nil
}

// award grants donor and owner points and runs achievement evaluation. Any
// failure degrades to points_pending instead of failing the donation.
func (s *Service) award(ctx context.Context, donation *models.Donation, campaign *models.Campaign, result *Result) {
	if donation.UserID != nil {
		donorID := *donation.UserID

		level, err := s.points.Award(ctx, donorID, models.CategoryDonation, points.DonationDonorPoints,
			fmt.Sprintf("Donation to %q", campaign.Title), donationSource, donation.PaymentIntentID)
		if err != nil {
			result.PointsPending = true
			s.log.Warn().
				Err(err).
				Str("user_id", donorID).
				Str("intent_id", donation.PaymentIntentID).
				Msg("Donor points pending, reconciliation will retry")
		} else {
			result.DonorLevel = level
			result.PointsAwarded += points.DonationDonorPoints

			if unlocked, err := s.achievements.EvaluateUser(ctx, donorID); err != nil {
				s.log.Error().Err(err).Str("user_id", donorID).Msg("Achievement evaluation failed")
			} else {
				result.NewAchievements = unlocked
			}
		}

		// Self-donations earn donor points only.
		if donorID == campaign.UserID {
			return
		}
	}

	_, err := s.points.Award(ctx, campaign.UserID, models.CategoryDonation, points.DonationOwnerPoints,
		fmt.Sprintf("Donation received on %q", campaign.Title), donationSource, donation.PaymentIntentID)
	if err != nil {
		result.PointsPending = true
		s.log.Warn().
			Err(err).
			Str("user_id", campaign.UserID).
			Str("intent_id", donation.PaymentIntentID).
			Msg("Owner points pending, reconciliation will retry")
		return
	}
	result.PointsAwarded += points.DonationOwnerPoints

	if _, err := s.achievements.EvaluateUser(ctx, campaign.UserID); err != nil {
		s.log.Error().Err(err).Str("user_id", campaign.UserID).Msg("Achievement evaluation failed")
	}
}

// VerifyPayment mirrors the provider's view of a payment intent. Clients call
// this after a timeout instead of assuming failure.
func (s *Service) VerifyPayment(ctx context.Context, intentID string) (*payments.Intent, error) {
	if intentID == "" {
		return nil, fmt.Errorf("payment intent id is required")
	}

	intent, err := s.provider.GetIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment %s: %w", intentID, err)
	}
	return intent, nil
}

// ParseWebhook verifies and decodes a provider webhook payload.
func (s *Service) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	return s.provider.ParseWebhook(payload, signature)
}

// HandleWebhookEvent processes a verified webhook event. Failures are logged
// and left to reconciliation; the webhook endpoint acknowledges regardless so
// the provider does not retry forever.
func (s *Service) HandleWebhookEvent(ctx context.Context, event *payments.WebhookEvent) {
	prommetrics.RecordWebhookEvent(event.Type, event.Status)

	if event.IntentID == "" {
		s.log.Debug().Str("type", event.Type).Msg("Ignoring webhook event type")
		return
	}

	s.log.Info().
		Str("type", event.Type).
		Str("intent_id", event.IntentID).
		Str("status", event.Status).
		Msg("Webhook event received")

	if event.Status != payments.IntentStatusSucceeded {
		return
	}

	// The client normally registers the donation itself; the webhook is the
	// fallback when it never came back. Without campaign metadata there is
	// nothing to record against.
	campaignID := parseUint(event.Metadata["campaign_id"])
	if campaignID == 0 {
		s.log.Warn().
			Str("intent_id", event.IntentID).
			Msg("Webhook event has no campaign metadata, skipping registration")
		return
	}

	var donorID *string
	if id := event.Metadata["user_id"]; id != "" {
		donorID = &id
	}

	if _, err := s.Register(ctx, RegisterInput{
		PaymentIntentID: event.IntentID,
		CampaignID:      campaignID,
		DonorID:         donorID,
		Anonymous:       donorID == nil,
	}); err != nil {
		s.log.Error().
			Err(err).
			Str("intent_id", event.IntentID).
			Msg("Webhook-driven registration failed")
	}
}

func parseUint(s string) uint {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}
