package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/doefacil/doefacil-api/internal/payments"
)

// MockProvider is an in-memory mock implementation of the payments.Provider
// interface. Created intents start pending; tests move them with SetStatus.
type MockProvider struct {
	intents map[string]*payments.Intent
	nextID  int
	// CreateErr and GetErr force the next call to fail when set
	CreateErr error
	GetErr    error
	mu        sync.Mutex
}

// NewMockProvider creates a new mock payment provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		intents: make(map[string]*payments.Intent),
	}
}

// CreateIntent creates a pending intent with a deterministic ID
func (m *MockProvider) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*payments.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	m.nextID++
	intent := &payments.Intent{
		ID:           fmt.Sprintf("pi_mock_%d", m.nextID),
		ClientSecret: fmt.Sprintf("pi_mock_%d_secret", m.nextID),
		Status:       payments.IntentStatusPending,
		AmountCents:  amountCents,
		Currency:     currency,
		Metadata:     metadata,
	}
	m.intents[intent.ID] = intent
	return intent, nil
}

// GetIntent retrieves an intent by ID
func (m *MockProvider) GetIntent(ctx context.Context, id string) (*payments.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	intent, exists := m.intents[id]
	if !exists {
		return nil, fmt.Errorf("no such payment intent: %s", id)
	}
	copied := *intent
	return &copied, nil
}

// ParseWebhook is not signature-checked in the mock
func (m *MockProvider) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	return &payments.WebhookEvent{}, nil
}

// AddIntent registers an intent directly (useful for register tests)
func (m *MockProvider) AddIntent(intent *payments.Intent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.intents[intent.ID] = intent
}

// SetStatus moves an existing intent to the given status
func (m *MockProvider) SetStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if intent, exists := m.intents[id]; exists {
		intent.Status = status
	}
}
