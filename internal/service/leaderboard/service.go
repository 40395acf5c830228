// Package leaderboard ranks users by total points.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doefacil/doefacil-api/internal/cache"
	"github.com/doefacil/doefacil-api/internal/levels"
	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/internal/repository"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

const (
	cacheKey     = "leaderboard:top"
	cacheTTL     = 60 * time.Second
	DefaultLimit = 10
	MaxLimit     = 100
)

// PointsRepository interface for ranking lookups.
type PointsRepository interface {
	TopByPoints(limit int) ([]models.UserLevel, error)
}

// UserRepository interface for user lookups.
type UserRepository interface {
	GetByID(id string) (*models.User, error)
}

// AchievementRepository interface for unlock counts.
type AchievementRepository interface {
	CountByUser(userID string) (int64, error)
}

// Service computes the points leaderboard.
type Service struct {
	pointsRepo      PointsRepository
	userRepo        UserRepository
	achievementRepo AchievementRepository
	cache           cache.Cache
	log             *logger.Logger
}

// NewService creates a new leaderboard service.
func NewService(
	pointsRepo *repository.PointsRepository,
	userRepo *repository.UserRepository,
	achievementRepo *repository.AchievementRepository,
	c cache.Cache,
	log *logger.Logger,
) *Service {
	return &Service{
		pointsRepo:      pointsRepo,
		userRepo:        userRepo,
		achievementRepo: achievementRepo,
		cache:           c,
		log:             log,
	}
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	pointsRepo PointsRepository,
	userRepo UserRepository,
	achievementRepo AchievementRepository,
	c cache.Cache,
	log *logger.Logger,
) *Service {
	return &Service{
		pointsRepo:      pointsRepo,
		userRepo:        userRepo,
		achievementRepo: achievementRepo,
		cache:           c,
		log:             log,
	}
}

// Entry is one leaderboard row.
type Entry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	Level        int    `json:"level"`
	Title        string `json:"title"`
	TotalPoints  int    `json:"total_points"`
	Achievements int64  `json:"achievements"`
}

// Top returns the highest-scoring users. Results are cached briefly; the
// leaderboard tolerates a minute of staleness.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	key := fmt.Sprintf("%s:%d", cacheKey, limit)
	if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
		var entries []Entry
		if err := json.Unmarshal([]byte(cached), &entries); err == nil {
			return entries, nil
		}
	}

	userLevels, err := s.pointsRepo.TopByPoints(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top user levels: %w", err)
	}

	entries := make([]Entry, 0, len(userLevels))
	for i, ul := range userLevels {
		entry := Entry{
			Rank:        i + 1,
			UserID:      ul.UserID,
			Level:       ul.Level,
			Title:       levels.TitleFor(ul.TotalPoints),
			TotalPoints: ul.TotalPoints,
		}

		if user, err := s.userRepo.GetByID(ul.UserID); err == nil {
			entry.Username = user.Username
			entry.AvatarURL = user.AvatarURL
		} else {
			s.log.Warn().Err(err).Str("user_id", ul.UserID).Msg("Leaderboard user lookup failed")
		}

		if count, err := s.achievementRepo.CountByUser(ul.UserID); err == nil {
			entry.Achievements = count
		}

		entries = append(entries, entry)
	}

	if payload, err := json.Marshal(entries); err == nil {
		if err := s.cache.Set(ctx, key, string(payload), cacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache leaderboard")
		}
	}

	return entries, nil
}
