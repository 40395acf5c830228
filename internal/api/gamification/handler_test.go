//nolint:noctx // Test file uses http.NewRequest for simplicity
package gamification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/internal/service/achievements"
	"github.com/doefacil/doefacil-api/internal/service/campaigns"
	"github.com/doefacil/doefacil-api/internal/service/leaderboard"
	"github.com/doefacil/doefacil-api/internal/service/points"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

// Mock Campaign Service
type mockCampaignService struct {
	views  map[uint]*campaigns.View
	nextID uint
}

func newMockCampaignService() *mockCampaignService {
	return &mockCampaignService{views: make(map[uint]*campaigns.View)}
}

func (m *mockCampaignService) Create(ctx context.Context, input campaigns.CreateInput) (*models.Campaign, error) {
	if input.Title == "" || input.GoalCents <= 0 || input.OwnerID == "" {
		return nil, fmt.Errorf("invalid campaign input")
	}
	m.nextID++
	campaign := &models.Campaign{
		ID:        m.nextID,
		Title:     input.Title,
		Category:  input.Category,
		GoalCents: input.GoalCents,
		UserID:    input.OwnerID,
		Status:    models.CampaignStatusActive,
	}
	m.views[campaign.ID] = &campaigns.View{
		Campaign:        *campaign,
		EffectiveStatus: models.CampaignStatusActive,
	}
	return campaign, nil
}

func (m *mockCampaignService) GetView(ctx context.Context, id uint) (*campaigns.View, error) {
	view, exists := m.views[id]
	if !exists {
		return nil, fmt.Errorf("failed to get campaign %d: %w", id, gorm.ErrRecordNotFound)
	}
	return view, nil
}

func (m *mockCampaignService) List(ctx context.Context, category, status string) ([]campaigns.View, error) {
	var out []campaigns.View
	for _, view := range m.views {
		if category != "" && view.Category != category {
			continue
		}
		if status != "" && view.EffectiveStatus != status {
			continue
		}
		out = append(out, *view)
	}
	return out, nil
}

func (m *mockCampaignService) Cancel(ctx context.Context, id uint, callerID string) error {
	view, exists := m.views[id]
	if !exists {
		return fmt.Errorf("failed to get campaign %d: %w", id, gorm.ErrRecordNotFound)
	}
	if view.UserID != callerID {
		return fmt.Errorf("user %s is not the owner of campaign %d", callerID, id)
	}
	view.Status = models.CampaignStatusCanceled
	view.EffectiveStatus = models.CampaignStatusCanceled
	return nil
}

// Mock Points Service
type mockPointsService struct {
	levels  map[string]*points.LevelInfo
	history map[string][]models.PointsHistory
}

func newMockPointsService() *mockPointsService {
	return &mockPointsService{
		levels:  make(map[string]*points.LevelInfo),
		history: make(map[string][]models.PointsHistory),
	}
}

func (m *mockPointsService) GetLevelInfo(ctx context.Context, userID string) (*points.LevelInfo, error) {
	if info, exists := m.levels[userID]; exists {
		return info, nil
	}
	return &points.LevelInfo{UserID: userID, Level: 1, Title: "Newcomer", PointsToNext: 100}, nil
}

func (m *mockPointsService) GetHistory(ctx context.Context, userID string, limit int) ([]models.PointsHistory, error) {
	entries := m.history[userID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *mockPointsService) SumByCategory(ctx context.Context, userID string) (map[string]int, error) {
	sums := make(map[string]int)
	for _, e := range m.history[userID] {
		sums[e.Category] += e.Points
	}
	return sums, nil
}

// Mock Achievement Service
type mockAchievementService struct {
	grids map[string][]achievements.GridItem
}

func newMockAchievementService() *mockAchievementService {
	return &mockAchievementService{grids: make(map[string][]achievements.GridItem)}
}

func (m *mockAchievementService) DisplayGrid(ctx context.Context, userID string, opts achievements.GridOptions) ([]achievements.GridItem, error) {
	var out []achievements.GridItem
	for _, item := range m.grids[userID] {
		if opts.Category != "" && item.Category != opts.Category {
			continue
		}
		if !item.Unlocked && !opts.ShowLocked {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *mockAchievementService) CountForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	for _, item := range m.grids[userID] {
		if item.Unlocked {
			count++
		}
	}
	return count, nil
}

// Mock Leaderboard Service
type mockLeaderboardService struct {
	entries []leaderboard.Entry
}

func (m *mockLeaderboardService) Top(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	entries := m.entries
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Test Setup
func setupTestHandler() (*Handler, *mockCampaignService, *mockPointsService, *mockAchievementService, *mockLeaderboardService) {
	campaignService := newMockCampaignService()
	pointsService := newMockPointsService()
	achievementService := newMockAchievementService()
	leaderboardService := &mockLeaderboardService{}
	log := logger.New("debug", "text", "stdout")

	handler := NewHandlerWithInterfaces(campaignService, pointsService, achievementService, leaderboardService, log)

	return handler, campaignService, pointsService, achievementService, leaderboardService
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api/v1")
	api.GET("/campaigns", handler.ListCampaigns)
	api.POST("/campaigns", handler.CreateCampaign)
	api.GET("/campaigns/:id", handler.GetCampaign)
	api.POST("/campaigns/:id/cancel", handler.CancelCampaign)
	api.GET("/users/:id/level", handler.GetUserLevel)
	api.GET("/users/:id/points", handler.GetUserPoints)
	api.GET("/users/:id/achievements", handler.GetUserAchievements)
	api.GET("/leaderboard", handler.GetLeaderboard)

	return router
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getJSON(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Tests

func TestCreateCampaign_Success(t *testing.T) {
	handler, _, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	w := postJSON(router, "/api/v1/campaigns", gin.H{
		"title":      "Help the shelter",
		"category":   "animals",
		"goal_cents": 500000,
		"owner_id":   "auth0|owner",
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	campaign := response["campaign"].(map[string]interface{})
	assert.Equal(t, "Help the shelter", campaign["title"])
	assert.Equal(t, "active", campaign["status"])
}

func TestCreateCampaign_MissingFields(t *testing.T) {
	handler, _, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	w := postJSON(router, "/api/v1/campaigns", gin.H{"title": "No goal"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCampaigns_StatusFilter(t *testing.T) {
	handler, campaignService, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	ctx := context.Background()
	_, err := campaignService.Create(ctx, campaigns.CreateInput{Title: "A", GoalCents: 1000, OwnerID: "auth0|owner"})
	assert.NoError(t, err)
	campaign, err := campaignService.Create(ctx, campaigns.CreateInput{Title: "B", GoalCents: 1000, OwnerID: "auth0|owner"})
	assert.NoError(t, err)
	assert.NoError(t, campaignService.Cancel(ctx, campaign.ID, "auth0|owner"))

	w := getJSON(router, "/api/v1/campaigns?status=active")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err = json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(1), response["count"])
}

func TestListCampaigns_UnknownStatus(t *testing.T) {
	handler, _, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	w := getJSON(router, "/api/v1/campaigns?status=bogus")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Contains(t, response["error"], "unknown status")
}

func TestGetCampaign_Success(t *testing.T) {
	handler, campaignService, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	campaign, err := campaignService.Create(context.Background(), campaigns.CreateInput{
		Title: "Help the shelter", GoalCents: 500000, OwnerID: "auth0|owner",
	})
	assert.NoError(t, err)

	w := getJSON(router, fmt.Sprintf("/api/v1/campaigns/%d", campaign.ID))

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err = json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	view := response["campaign"].(map[string]interface{})
	assert.Equal(t, "Help the shelter", view["title"])
	assert.Equal(t, "active", view["effective_status"])
}

func TestGetCampaign_NotFound(t *testing.T) {
	handler, _, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	w := getJSON(router, "/api/v1/campaigns/99")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCampaign_InvalidID(t *testing.T) {
	handler, _, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	w := getJSON(router, "/api/v1/campaigns/abc")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelCampaign_Success(t *testing.T) {
	handler, campaignService, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	campaign, err := campaignService.Create(context.Background(), campaigns.CreateInput{
		Title: "Help the shelter", GoalCents: 500000, OwnerID: "auth0|owner",
	})
	assert.NoError(t, err)

	w := postJSON(router, fmt.Sprintf("/api/v1/campaigns/%d/cancel", campaign.ID), gin.H{
		"user_id": "auth0|owner",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err = json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, true, response["canceled"])
}

func TestCancelCampaign_NotOwner(t *testing.T) {
	handler, campaignService, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	campaign, err := campaignService.Create(context.Background(), campaigns.CreateInput{
		Title: "Help the shelter", GoalCents: 500000, OwnerID: "auth0|owner",
	})
	assert.NoError(t, err)

	w := postJSON(router, fmt.Sprintf("/api/v1/campaigns/%d/cancel", campaign.ID), gin.H{
		"user_id": "auth0|intruder",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetUserLevel_Defaults(t *testing.T) {
	handler, _, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	w := getJSON(router, "/api/v1/users/auth0|new/level")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	level := response["level"].(map[string]interface{})
	assert.Equal(t, float64(1), level["level"])
	assert.Equal(t, "Newcomer", level["title"])
	assert.Equal(t, float64(100), level["points_to_next"])
}

func TestGetUserPoints_Success(t *testing.T) {
	handler, _, pointsService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	pointsService.history["auth0|bob"] = []models.PointsHistory{
		{UserID: "auth0|bob", Category: models.CategoryDonation, Points: 50, CreatedAt: time.Now()},
		{UserID: "auth0|bob", Category: models.CategoryDonation, Points: 50, CreatedAt: time.Now()},
		{UserID: "auth0|bob", Category: models.CategorySharing, Points: 10, CreatedAt: time.Now()},
	}

	w := getJSON(router, "/api/v1/users/auth0|bob/points")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	assert.Equal(t, float64(3), response["count"])
	sums := response["by_category"].(map[string]interface{})
	assert.Equal(t, float64(100), sums[models.CategoryDonation])
	assert.Equal(t, float64(10), sums[models.CategorySharing])
}

func TestGetUserPoints_Limit(t *testing.T) {
	handler, _, pointsService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	for i := 0; i < 5; i++ {
		pointsService.history["auth0|bob"] = append(pointsService.history["auth0|bob"], models.PointsHistory{
			UserID: "auth0|bob", Category: models.CategoryDonation, Points: 50,
		})
	}

	w := getJSON(router, "/api/v1/users/auth0|bob/points?limit=2")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(2), response["count"])
}

func TestGetUserAchievements_Success(t *testing.T) {
	handler, _, _, achievementService, _ := setupTestHandler()
	router := setupRouter(handler)

	achievementService.grids["auth0|bob"] = []achievements.GridItem{
		{Name: "first_donation", Category: models.CategoryDonation, Unlocked: true, Progress: 50},
		{Name: "generous", Category: models.CategoryDonation, Unlocked: false, Progress: 120},
		{Name: "influencer", Category: models.CategorySharing, Unlocked: false},
	}

	w := getJSON(router, "/api/v1/users/auth0|bob/achievements")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	grid := response["achievements"].([]interface{})
	assert.Len(t, grid, 1)
	assert.Equal(t, float64(1), response["unlocked_count"])

	// Locked achievements shown on request, category filtered
	w = getJSON(router, "/api/v1/users/auth0|bob/achievements?show_locked=true&category=donation")

	assert.Equal(t, http.StatusOK, w.Code)

	err = json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	grid = response["achievements"].([]interface{})
	assert.Len(t, grid, 2)
}

func TestGetLeaderboard_Success(t *testing.T) {
	handler, _, _, _, leaderboardService := setupTestHandler()
	router := setupRouter(handler)

	leaderboardService.entries = []leaderboard.Entry{
		{Rank: 1, UserID: "auth0|alice", Username: "alice", Level: 6, Title: "Patron", TotalPoints: 2500},
		{Rank: 2, UserID: "auth0|bob", Username: "bob", Level: 2, Title: "Supporter", TotalPoints: 150},
	}

	w := getJSON(router, "/api/v1/leaderboard?limit=10")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	assert.Equal(t, float64(2), response["count"])
	entries := response["leaderboard"].([]interface{})
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "alice", first["username"])
	assert.Equal(t, "Patron", first["title"])
}
