// Package points manages the points ledger, user levels and award rules.
package points

import (
	"context"
	"fmt"

	"github.com/doefacil/doefacil-api/internal/levels"
	prommetrics "github.com/doefacil/doefacil-api/internal/metrics"
	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/internal/repository"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

// Point values for the donation flow. The donor is rewarded for giving, the
// campaign owner for the traction; a self-donation earns donor points only.
const (
	DonationDonorPoints = 50
	DonationOwnerPoints = 20
)

// Repository interface for points operations.
type Repository interface {
	Award(entry *models.PointsHistory) (*models.UserLevel, error)
	GetUserLevel(userID string) (*models.UserLevel, error)
	GetHistory(userID string, limit int) ([]models.PointsHistory, error)
	SumByCategory(userID string) (map[string]int, error)
	HasAward(userID, sourceType, sourceID string) (bool, error)
}

// Service handles point awards and level lookups.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new points service.
func NewService(repo *repository.PointsRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// NewServiceWithInterfaces creates a new points service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// LevelInfo is the level view returned to clients.
type LevelInfo struct {
	UserID       string `json:"user_id"`
	Level        int    `json:"level"`
	Title        string `json:"title"`
	TotalPoints  int    `json:"total_points"`
	Progress     int    `json:"progress"`
	PointsToNext int    `json:"points_to_next"`
}

// Award appends a points entry for the user and returns the updated level.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Award(ctx context.Context, userID, category string, pts int, description, sourceType, sourceID string) (*models.UserLevel, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if pts <= 0 {
		return nil, fmt.Errorf("points must be positive, got %d", pts)
	}
	if !models.ValidCategory(category) {
		return nil, fmt.Errorf("unknown points category %q", category)
	}

	entry := &models.PointsHistory{
		UserID:      userID,
		Category:    category,
		Points:      pts,
		Description: description,
		SourceType:  sourceType,
		SourceID:    sourceID,
	}

	userLevel, err := s.repo.Award(entry)
	if err != nil {
		prommetrics.RecordPointsAwardFailure("storage")
		return nil, fmt.Errorf("failed to award %d points to %s: %w", pts, userID, err)
	}

	prommetrics.RecordPointsAwarded(category, pts)

	s.log.Info().
		Str("user_id", userID).
		Str("category", category).
		Int("points", pts).
		Int("total_points", userLevel.TotalPoints).
		Int("level", userLevel.Level).
		Msg("Points awarded")

	return userLevel, nil
}

// HasAward reports whether the user already has a points entry for the source.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) HasAward(ctx context.Context, userID, sourceType, sourceID string) (bool, error) {
	return s.repo.HasAward(userID, sourceType, sourceID)
}

// GetLevelInfo returns the user's level enriched with title and points to the
// next threshold. Users with no points get the level 1 defaults.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetLevelInfo(ctx context.Context, userID string) (*LevelInfo, error) {
	userLevel, err := s.repo.GetUserLevel(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get level for %s: %w", userID, err)
	}

	return &LevelInfo{
		UserID:       userID,
		Level:        userLevel.Level,
		Title:        levels.TitleFor(userLevel.TotalPoints),
		TotalPoints:  userLevel.TotalPoints,
		Progress:     userLevel.Progress,
		PointsToNext: levels.PointsToNext(userLevel.TotalPoints),
	}, nil
}

// GetHistory returns the user's ledger entries, newest first.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetHistory(ctx context.Context, userID string, limit int) ([]models.PointsHistory, error) {
	return s.repo.GetHistory(userID, limit)
}

// SumByCategory returns the user's cumulative points per category.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) SumByCategory(ctx context.Context, userID string) (map[string]int, error) {
	return s.repo.SumByCategory(userID)
}
