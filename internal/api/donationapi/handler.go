// Package donationapi provides REST API handlers for the donation flow:
// payment intent creation, donation registration, payment verification and
// the provider webhook.
package donationapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/doefacil/doefacil-api/internal/payments"
	"github.com/doefacil/doefacil-api/internal/service/donations"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

// DonationService interface for donation flow operations.
type DonationService interface {
	CreateIntent(ctx context.Context, campaignID uint, amountCents int64) (*payments.Intent, error)
	Register(ctx context.Context, input donations.RegisterInput) (*donations.Result, error)
	VerifyPayment(ctx context.Context, intentID string) (*payments.Intent, error)
	ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error)
	HandleWebhookEvent(ctx context.Context, event *payments.WebhookEvent)
}

// Handler handles donation API requests.
type Handler struct {
	donationService DonationService
	log             *logger.Logger
}

// NewHandler creates a new donation handler.
func NewHandler(donationService *donations.Service, log *logger.Logger) *Handler {
	return &Handler{
		donationService: donationService,
		log:             log,
	}
}

// NewHandlerWithInterfaces creates a new donation handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(donationService DonationService, log *logger.Logger) *Handler {
	return &Handler{
		donationService: donationService,
		log:             log,
	}
}

// createIntentRequest is the payload for POST /api/create-payment-intent.
type createIntentRequest struct {
	Amount     int64 `json:"amount" binding:"required"`
	CampaignID uint  `json:"campaignId" binding:"required"`
}

// CreatePaymentIntent creates a payment intent for a donation.
// POST /api/create-payment-intent.
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "amount and campaignId are required")
		return
	}

	intent, err := h.donationService.CreateIntent(c.Request.Context(), req.CampaignID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, donations.ErrInvalidAmount), errors.Is(err, donations.ErrCampaignNotOpen):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		default:
			h.log.Error().Err(err).Uint("campaign_id", req.CampaignID).Msg("Failed to create payment intent")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to create payment intent")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
		"amount":          intent.AmountCents,
		"currency":        intent.Currency,
		"generated_at":    time.Now().UTC(),
	})
}

// registerDonationRequest is the payload for POST /api/register-donation.
// UserID is the auth provider subject forwarded by the gateway; empty means
// anonymous.
type registerDonationRequest struct {
	PaymentIntentID string `json:"paymentIntentId" binding:"required"`
	CampaignID      uint   `json:"campaignId" binding:"required"`
	UserID          string `json:"userId"`
	Anonymous       bool   `json:"anonymous"`
}

// RegisterDonation records a confirmed donation and triggers awards.
// POST /api/register-donation.
func (h *Handler) RegisterDonation(c *gin.Context) {
	var req registerDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "paymentIntentId and campaignId are required")
		return
	}

	input := donations.RegisterInput{
		PaymentIntentID: req.PaymentIntentID,
		CampaignID:      req.CampaignID,
		Anonymous:       req.Anonymous,
	}
	if req.UserID != "" {
		input.DonorID = &req.UserID
	}

	result, err := h.donationService.Register(c.Request.Context(), input)
	if err != nil {
		var recordingErr *donations.RecordingFailedError
		switch {
		case errors.Is(err, donations.ErrPaymentNotConfirmed):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.As(err, &recordingErr):
			h.log.Error().Err(err).Str("intent_id", req.PaymentIntentID).Msg("Donation recording failed")
			h.errorResponse(c, http.StatusInternalServerError, "Payment succeeded but the donation could not be recorded")
		default:
			h.log.Error().Err(err).Str("intent_id", req.PaymentIntentID).Msg("Failed to register donation")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to register donation")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"donation":         result.Donation,
		"raised_cents":     result.RaisedCents,
		"points_awarded":   result.PointsAwarded,
		"points_pending":   result.PointsPending,
		"duplicate":        result.Duplicate,
		"donor_level":      result.DonorLevel,
		"new_achievements": result.NewAchievements,
		"generated_at":     time.Now().UTC(),
	})
}

// verifyPaymentRequest is the payload for POST /api/verify-payment.
type verifyPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" binding:"required"`
}

// VerifyPayment mirrors the provider's view of a payment intent.
// POST /api/verify-payment.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "paymentIntentId is required")
		return
	}

	intent, err := h.donationService.VerifyPayment(c.Request.Context(), req.PaymentIntentID)
	if err != nil {
		h.log.Error().Err(err).Str("intent_id", req.PaymentIntentID).Msg("Failed to verify payment")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to verify payment")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"paymentIntentId": intent.ID,
		"status":          intent.Status,
		"amount":          intent.AmountCents,
		"currency":        intent.Currency,
		"generated_at":    time.Now().UTC(),
	})
}

// Webhook receives provider events. A bad signature is rejected; anything
// after that is acknowledged with 200 so the provider stops retrying, and
// processing failures are left to reconciliation.
// POST /api/webhook.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "failed to read payload")
		return
	}

	event, err := h.donationService.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log.Warn().Err(err).Msg("Rejected webhook with invalid signature")
		h.errorResponse(c, http.StatusBadRequest, "invalid signature")
		return
	}

	h.donationService.HandleWebhookEvent(c.Request.Context(), event)

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
