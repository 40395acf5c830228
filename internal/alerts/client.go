// Package alerts provides a webhook client for sending operational alerts.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/doefacil/doefacil-api/internal/config"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

// Client sends alerts to an ops chat webhook.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	log        *logger.Logger
}

// NewClient creates a new alerts client.
func NewClient(cfg *config.AlertsConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		log:        log,
	}
}

// Message represents a webhook message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to the ops webhook.
func (c *Client) SendMessage(msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Alerts are disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent alert")

	return nil
}

// SendSimpleMessage sends a plain text alert.
func (c *Client) SendSimpleMessage(text string) error {
	return c.SendMessage(&Message{
		Text: text,
	})
}

// SendRecordingFailure alerts that a confirmed payment could not be recorded.
// Money has moved but the database has no donation row, so a human must
// reconcile against the payment provider dashboard.
func (c *Client) SendRecordingFailure(paymentIntentID string, campaignID uint, amountCents int64, cause error) error {
	return c.SendMessage(&Message{
		Username: "DoeFácil Alerts",
		Text:     "🚨 **Donation recording failed**\n\nA confirmed payment has no donation record. Manual reconciliation required.",
		Attachments: []Attachment{
			{
				Color: "#d62728",
				Fields: []Field{
					{Short: true, Title: "Payment Intent", Value: paymentIntentID},
					{Short: true, Title: "Campaign", Value: fmt.Sprintf("%d", campaignID)},
					{Short: true, Title: "Amount", Value: fmt.Sprintf("R$ %.2f", float64(amountCents)/100)},
					{Short: false, Title: "Error", Value: cause.Error()},
				},
			},
		},
	})
}

// SendReconciliationSummary reports the outcome of a reconciliation run that
// recovered lost point awards.
func (c *Client) SendReconciliationSummary(recovered, failed int) error {
	if recovered == 0 && failed == 0 {
		c.log.Debug().Msg("Nothing reconciled, skipping summary")
		return nil
	}

	color := "#2ca02c"
	if failed > 0 {
		color = "#ff7f0e"
	}

	return c.SendMessage(&Message{
		Username: "DoeFácil Alerts",
		Attachments: []Attachment{
			{
				Color: color,
				Title: "Points reconciliation",
				Text:  fmt.Sprintf("Recovered **%d** pending awards, **%d** still failing.", recovered, failed),
			},
		},
	})
}
