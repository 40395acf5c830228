// Package payments brokers the payment provider. Services and handlers only
// see the Provider interface, never Stripe types.
package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/doefacil/doefacil-api/internal/config"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

// Intent statuses surfaced to the rest of the system.
const (
	IntentStatusSucceeded = "succeeded"
	IntentStatusCanceled  = "canceled"
	IntentStatusFailed    = "failed"
	IntentStatusPending   = "pending"
)

// Intent is the provider-neutral view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Currency     string
	Metadata     map[string]string
}

// WebhookEvent is the provider-neutral view of a webhook notification.
type WebhookEvent struct {
	Type        string
	IntentID    string
	Status      string
	AmountCents int64
	Metadata    map[string]string
}

// Provider abstracts the payment provider.
type Provider interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// StripeProvider implements Provider on the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	log           *logger.Logger
}

// NewStripeProvider creates a Stripe-backed provider.
func NewStripeProvider(cfg *config.StripeConfig, log *logger.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}
}

// CreateIntent creates a payment intent for the given amount.
func (p *StripeProvider) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	p.log.Debug().
		Str("intent_id", pi.ID).
		Int64("amount_cents", amountCents).
		Msg("Created payment intent")

	return fromStripeIntent(pi), nil
}

// GetIntent retrieves a payment intent by ID.
func (p *StripeProvider) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent %s: %w", id, err)
	}

	return fromStripeIntent(pi), nil
}

// ParseWebhook verifies the webhook signature and extracts the event. An
// invalid signature is an error; event types we do not care about come back
// with an empty IntentID.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	result := &WebhookEvent{Type: string(event.Type)}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to parse webhook payment intent: %w", err)
		}
		result.IntentID = pi.ID
		result.Status = mapStatus(pi.Status)
		result.AmountCents = pi.Amount
		result.Metadata = pi.Metadata

		// A failed attempt leaves the intent in requires_payment_method, so
		// the event type is the failure signal, not the intent status.
		if event.Type == "payment_intent.payment_failed" {
			result.Status = IntentStatusFailed
		}
	}

	return result, nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       mapStatus(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

func mapStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return IntentStatusCanceled
	default:
		return IntentStatusPending
	}
}
