package campaigns

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/pkg/logger"
	"github.com/doefacil/doefacil-api/test/mocks"
)

func testLogger() *logger.Logger {
	return logger.New("error", "json", "stdout")
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name   string
		goal   int64
		raised int64
		want   int
	}{
		{"zero raised", 10000, 0, 0},
		{"half", 10000, 5000, 50},
		{"rounded", 10000, 3333, 33},
		{"exact goal", 10000, 10000, 100},
		{"over goal clamps", 10000, 15000, 100},
		{"zero goal guard", 0, 5000, 0},
		{"negative goal guard", -100, 5000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &models.Campaign{GoalCents: tt.goal, RaisedCents: tt.raised}
			if got := Progress(c); got != tt.want {
				t.Errorf("Progress() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("no end date", func(t *testing.T) {
		c := &models.Campaign{}
		if got := DaysLeft(c, now); got != nil {
			t.Errorf("Expected nil for missing end date, got %d", *got)
		}
	})

	t.Run("rounds up partial days", func(t *testing.T) {
		end := now.Add(36 * time.Hour)
		c := &models.Campaign{EndDate: &end}
		got := DaysLeft(c, now)
		if got == nil || *got != 2 {
			t.Errorf("Expected 2 days, got %v", got)
		}
	})

	t.Run("past end date floors at zero", func(t *testing.T) {
		end := now.Add(-48 * time.Hour)
		c := &models.Campaign{EndDate: &end}
		got := DaysLeft(c, now)
		if got == nil || *got != 0 {
			t.Errorf("Expected 0 days, got %v", got)
		}
	})
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		campaign models.Campaign
		want     string
	}{
		{
			"active",
			models.Campaign{Status: models.CampaignStatusActive, GoalCents: 10000, RaisedCents: 500, EndDate: &future},
			models.CampaignStatusActive,
		},
		{
			"canceled wins over funded",
			models.Campaign{Status: models.CampaignStatusCanceled, GoalCents: 10000, RaisedCents: 20000},
			models.CampaignStatusCanceled,
		},
		{
			"canceled wins over expired",
			models.Campaign{Status: models.CampaignStatusCanceled, GoalCents: 10000, EndDate: &past},
			models.CampaignStatusCanceled,
		},
		{
			"funded reads completed without stored transition",
			models.Campaign{Status: models.CampaignStatusActive, GoalCents: 10000, RaisedCents: 10000},
			models.CampaignStatusCompleted,
		},
		{
			"completed wins over expired",
			models.Campaign{Status: models.CampaignStatusActive, GoalCents: 10000, RaisedCents: 12000, EndDate: &past},
			models.CampaignStatusCompleted,
		},
		{
			"stored completed",
			models.Campaign{Status: models.CampaignStatusCompleted, GoalCents: 10000, RaisedCents: 2000},
			models.CampaignStatusCompleted,
		},
		{
			"past end date derives expired",
			models.Campaign{Status: models.CampaignStatusActive, GoalCents: 10000, RaisedCents: 500, EndDate: &past},
			models.CampaignStatusExpired,
		},
		{
			"no end date never expires",
			models.Campaign{Status: models.CampaignStatusActive, GoalCents: 10000, RaisedCents: 500},
			models.CampaignStatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveStatus(&tt.campaign, now); got != tt.want {
				t.Errorf("EffectiveStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

// mockCampaignRepo is an in-memory CampaignRepository.
type mockCampaignRepo struct {
	campaigns map[uint]*models.Campaign
	nextID    uint
}

func newMockCampaignRepo() *mockCampaignRepo {
	return &mockCampaignRepo{campaigns: make(map[uint]*models.Campaign)}
}

func (m *mockCampaignRepo) Create(campaign *models.Campaign) error {
	m.nextID++
	campaign.ID = m.nextID
	m.campaigns[campaign.ID] = campaign
	return nil
}

func (m *mockCampaignRepo) GetByID(id uint) (*models.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %d not found", id)
	}
	copied := *c
	return &copied, nil
}

func (m *mockCampaignRepo) List(category, status string) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range m.campaigns {
		if category != "" && c.Category != category {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCampaignRepo) ListByOwner(userID string) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range m.campaigns {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCampaignRepo) UpdateStatus(id uint, status string) error {
	c, ok := m.campaigns[id]
	if !ok {
		return fmt.Errorf("campaign %d not found", id)
	}
	c.Status = status
	return nil
}

func TestService_Create_Validation(t *testing.T) {
	svc := NewServiceWithInterfaces(newMockCampaignRepo(), mocks.NewMockCache(), testLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Title: "", GoalCents: 1000, OwnerID: "auth0|alice"})
	if err == nil {
		t.Error("Expected error for empty title")
	}

	_, err = svc.Create(ctx, CreateInput{Title: "X", GoalCents: 0, OwnerID: "auth0|alice"})
	if err == nil {
		t.Error("Expected error for non-positive goal")
	}

	_, err = svc.Create(ctx, CreateInput{Title: "X", GoalCents: 1000, OwnerID: ""})
	if err == nil {
		t.Error("Expected error for missing owner")
	}

	campaign, err := svc.Create(ctx, CreateInput{Title: "X", GoalCents: 1000, OwnerID: "auth0|alice"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if campaign.Status != models.CampaignStatusActive {
		t.Errorf("Expected new campaign to be active, got %q", campaign.Status)
	}
}

func TestService_Cancel_OwnerOnly(t *testing.T) {
	repo := newMockCampaignRepo()
	svc := NewServiceWithInterfaces(repo, mocks.NewMockCache(), testLogger())
	ctx := context.Background()

	campaign, err := svc.Create(ctx, CreateInput{Title: "X", GoalCents: 1000, OwnerID: "auth0|alice"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if err := svc.Cancel(ctx, campaign.ID, "auth0|mallory"); err == nil {
		t.Error("Expected error when a non-owner cancels")
	}

	if err := svc.Cancel(ctx, campaign.ID, "auth0|alice"); err != nil {
		t.Fatalf("Cancel() by owner failed: %v", err)
	}

	stored, _ := repo.GetByID(campaign.ID)
	if stored.Status != models.CampaignStatusCanceled {
		t.Errorf("Expected canceled status, got %q", stored.Status)
	}

	// Cancel is idempotent
	if err := svc.Cancel(ctx, campaign.ID, "auth0|alice"); err != nil {
		t.Errorf("Second Cancel() failed: %v", err)
	}
}

func TestService_List_EffectiveStatusFilter(t *testing.T) {
	repo := newMockCampaignRepo()
	svc := NewServiceWithInterfaces(repo, mocks.NewMockCache(), testLogger())
	ctx := context.Background()

	// Fully funded but still stored active
	funded := &models.Campaign{Title: "Funded", GoalCents: 1000, RaisedCents: 1500, UserID: "auth0|alice", Status: models.CampaignStatusActive}
	_ = repo.Create(funded)
	underway := &models.Campaign{Title: "Underway", GoalCents: 1000, RaisedCents: 100, UserID: "auth0|alice", Status: models.CampaignStatusActive}
	_ = repo.Create(underway)

	completedViews, err := svc.List(ctx, "", models.CampaignStatusCompleted)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(completedViews) != 1 || completedViews[0].Title != "Funded" {
		t.Errorf("Expected only the funded campaign to read completed, got %d results", len(completedViews))
	}

	activeViews, err := svc.List(ctx, "", models.CampaignStatusActive)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(activeViews) != 1 || activeViews[0].Title != "Underway" {
		t.Errorf("Expected only the underway campaign to read active, got %d results", len(activeViews))
	}
}

func TestService_GetView_Caches(t *testing.T) {
	repo := newMockCampaignRepo()
	c := mocks.NewMockCache()
	svc := NewServiceWithInterfaces(repo, c, testLogger())
	ctx := context.Background()

	campaign := &models.Campaign{Title: "X", GoalCents: 1000, RaisedCents: 500, UserID: "auth0|alice", Status: models.CampaignStatusActive}
	_ = repo.Create(campaign)

	view, err := svc.GetView(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("GetView() failed: %v", err)
	}
	if view.Progress != 50 {
		t.Errorf("Expected progress 50, got %d", view.Progress)
	}

	// Mutate the store; the cached view still serves the old value
	campaign.RaisedCents = 1000
	view, err = svc.GetView(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("Second GetView() failed: %v", err)
	}
	if view.Progress != 50 {
		t.Errorf("Expected cached progress 50, got %d", view.Progress)
	}

	// Invalidation picks up the fresh value
	svc.InvalidateView(ctx, campaign.ID)
	view, err = svc.GetView(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("Third GetView() failed: %v", err)
	}
	if view.Progress != 100 {
		t.Errorf("Expected fresh progress 100, got %d", view.Progress)
	}
}
