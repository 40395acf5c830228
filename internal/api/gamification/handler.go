// Package gamification provides REST API handlers for campaigns, user levels,
// points history, achievements and the leaderboard.
package gamification

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/internal/service/achievements"
	"github.com/doefacil/doefacil-api/internal/service/campaigns"
	"github.com/doefacil/doefacil-api/internal/service/leaderboard"
	"github.com/doefacil/doefacil-api/internal/service/points"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

const defaultHistoryLimit = 50

// CampaignService interface for campaign operations.
type CampaignService interface {
	Create(ctx context.Context, input campaigns.CreateInput) (*models.Campaign, error)
	GetView(ctx context.Context, id uint) (*campaigns.View, error)
	List(ctx context.Context, category, status string) ([]campaigns.View, error)
	Cancel(ctx context.Context, id uint, callerID string) error
}

// PointsService interface for level and ledger lookups.
type PointsService interface {
	GetLevelInfo(ctx context.Context, userID string) (*points.LevelInfo, error)
	GetHistory(ctx context.Context, userID string, limit int) ([]models.PointsHistory, error)
	SumByCategory(ctx context.Context, userID string) (map[string]int, error)
}

// AchievementService interface for the achievement grid.
type AchievementService interface {
	DisplayGrid(ctx context.Context, userID string, opts achievements.GridOptions) ([]achievements.GridItem, error)
	CountForUser(ctx context.Context, userID string) (int64, error)
}

// LeaderboardService interface for rankings.
type LeaderboardService interface {
	Top(ctx context.Context, limit int) ([]leaderboard.Entry, error)
}

// Handler handles gamification API requests.
type Handler struct {
	campaignService    CampaignService
	pointsService      PointsService
	achievementService AchievementService
	leaderboardService LeaderboardService
	log                *logger.Logger
}

// NewHandler creates a new gamification handler.
func NewHandler(
	campaignService *campaigns.Service,
	pointsService *points.Service,
	achievementService *achievements.Service,
	leaderboardService *leaderboard.Service,
	log *logger.Logger,
) *Handler {
	return &Handler{
		campaignService:    campaignService,
		pointsService:      pointsService,
		achievementService: achievementService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// NewHandlerWithInterfaces creates a new gamification handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	campaignService CampaignService,
	pointsService PointsService,
	achievementService AchievementService,
	leaderboardService LeaderboardService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		campaignService:    campaignService,
		pointsService:      pointsService,
		achievementService: achievementService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// createCampaignRequest is the payload for POST /api/v1/campaigns. OwnerID is
// the auth provider subject forwarded by the gateway.
type createCampaignRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	GoalCents   int64      `json:"goal_cents" binding:"required"`
	ImageURL    string     `json:"image_url"`
	EndDate     *time.Time `json:"end_date"`
	OwnerID     string     `json:"owner_id" binding:"required"`
}

// CreateCampaign creates a new campaign.
// POST /api/v1/campaigns.
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "title, goal_cents and owner_id are required")
		return
	}

	campaign, err := h.campaignService.Create(c.Request.Context(), campaigns.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		GoalCents:   req.GoalCents,
		ImageURL:    req.ImageURL,
		EndDate:     req.EndDate,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		h.log.Error().Err(err).Str("owner", req.OwnerID).Msg("Failed to create campaign")
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"campaign":     campaign,
		"generated_at": time.Now().UTC(),
	})
}

// ListCampaigns returns campaign views filtered by category and status.
// GET /api/v1/campaigns?category=&status=.
func (h *Handler) ListCampaigns(c *gin.Context) {
	category := c.Query("category")
	status := c.Query("status")
	if status != "" && !validStatusFilter(status) {
		h.errorResponse(c, http.StatusBadRequest, "unknown status filter: "+status)
		return
	}

	views, err := h.campaignService.List(c.Request.Context(), category, status)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list campaigns")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to list campaigns")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaigns":    views,
		"count":        len(views),
		"generated_at": time.Now().UTC(),
	})
}

// GetCampaign returns a single campaign view.
// GET /api/v1/campaigns/:id.
func (h *Handler) GetCampaign(c *gin.Context) {
	id, err := h.parseCampaignID(c)
	if err != nil {
		return
	}

	view, err := h.campaignService.GetView(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.errorResponse(c, http.StatusNotFound, "campaign not found")
			return
		}
		h.log.Error().Err(err).Uint("campaign_id", id).Msg("Failed to get campaign")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to get campaign")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign":     view,
		"generated_at": time.Now().UTC(),
	})
}

// cancelCampaignRequest is the payload for POST /api/v1/campaigns/:id/cancel.
type cancelCampaignRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CancelCampaign cancels a campaign on behalf of its owner.
// POST /api/v1/campaigns/:id/cancel.
func (h *Handler) CancelCampaign(c *gin.Context) {
	id, err := h.parseCampaignID(c)
	if err != nil {
		return
	}

	var req cancelCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.campaignService.Cancel(c.Request.Context(), id, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.errorResponse(c, http.StatusNotFound, "campaign not found")
			return
		}
		if strings.Contains(err.Error(), "not the owner") {
			h.errorResponse(c, http.StatusForbidden, "only the campaign owner can cancel it")
			return
		}
		h.log.Error().Err(err).Uint("campaign_id", id).Msg("Failed to cancel campaign")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to cancel campaign")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"canceled":     true,
		"campaign_id":  id,
		"generated_at": time.Now().UTC(),
	})
}

// GetUserLevel returns a user's level, title and progress.
// GET /api/v1/users/:id/level.
func (h *Handler) GetUserLevel(c *gin.Context) {
	userID := c.Param("id")

	info, err := h.pointsService.GetLevelInfo(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get user level")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to get user level")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"level":        info,
		"generated_at": time.Now().UTC(),
	})
}

// GetUserPoints returns a user's points ledger and per-category sums.
// GET /api/v1/users/:id/points?limit=.
func (h *Handler) GetUserPoints(c *gin.Context) {
	userID := c.Param("id")
	limit := h.parseLimit(c, defaultHistoryLimit)
	ctx := c.Request.Context()

	history, err := h.pointsService.GetHistory(ctx, userID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get points history")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to get points history")
		return
	}

	sums, err := h.pointsService.SumByCategory(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get points sums")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to get points sums")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history":      history,
		"by_category":  sums,
		"count":        len(history),
		"generated_at": time.Now().UTC(),
	})
}

// GetUserAchievements returns a user's achievement grid.
// GET /api/v1/users/:id/achievements?category=&show_locked=&show_secret=.
func (h *Handler) GetUserAchievements(c *gin.Context) {
	userID := c.Param("id")
	opts := achievements.GridOptions{
		Category:   c.Query("category"),
		ShowLocked: c.Query("show_locked") == "true",
		ShowSecret: c.Query("show_secret") == "true",
	}
	ctx := c.Request.Context()

	grid, err := h.achievementService.DisplayGrid(ctx, userID, opts)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get achievements")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to get achievements")
		return
	}

	unlocked, err := h.achievementService.CountForUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to count achievements")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to count achievements")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"achievements":   grid,
		"unlocked_count": unlocked,
		"generated_at":   time.Now().UTC(),
	})
}

// GetLeaderboard returns the top users by points.
// GET /api/v1/leaderboard?limit=.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit := h.parseLimit(c, leaderboard.DefaultLimit)

	entries, err := h.leaderboardService.Top(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to get leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":  entries,
		"count":        len(entries),
		"generated_at": time.Now().UTC(),
	})
}

// parseCampaignID parses the :id path parameter, writing the error response on
// failure.
func (h *Handler) parseCampaignID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		h.errorResponse(c, http.StatusBadRequest, "invalid campaign id")
		if err == nil {
			err = errors.New("campaign id must be positive")
		}
		return 0, err
	}
	return uint(id), nil
}

// parseLimit parses the limit query parameter, falling back to def.
func (h *Handler) parseLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

func validStatusFilter(status string) bool {
	switch status {
	case models.CampaignStatusActive, models.CampaignStatusCompleted,
		models.CampaignStatusExpired, models.CampaignStatusCanceled:
		return true
	}
	return false
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
