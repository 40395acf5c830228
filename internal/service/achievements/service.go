// Package achievements manages the achievement catalog, unlock evaluation and
// display.
package achievements

import (
	"context"
	"fmt"
	"time"

	"github.com/doefacil/doefacil-api/internal/config"
	prommetrics "github.com/doefacil/doefacil-api/internal/metrics"
	"github.com/doefacil/doefacil-api/internal/models"
	"github.com/doefacil/doefacil-api/internal/repository"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

// AchievementRepository interface for achievement operations.
type AchievementRepository interface {
	Upsert(achievement *models.Achievement) error
	GetAll() ([]models.Achievement, error)
	Unlock(userID string, achievementID uint, progress int) error
	HasUnlocked(userID string, achievementID uint) (bool, error)
	GetUserAchievements(userID string) ([]models.UserAchievement, error)
	CountByUser(userID string) (int64, error)
}

// PointsRepository interface for points lookups.
type PointsRepository interface {
	SumByCategory(userID string) (map[string]int, error)
}

// UserRepository interface for user operations.
type UserRepository interface {
	List() ([]models.User, error)
}

// Service handles achievement evaluation and display.
type Service struct {
	achievementRepo AchievementRepository
	pointsRepo      PointsRepository
	userRepo        UserRepository
	log             *logger.Logger
}

// NewService creates a new achievements service.
func NewService(
	achievementRepo *repository.AchievementRepository,
	pointsRepo *repository.PointsRepository,
	userRepo *repository.UserRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		achievementRepo: achievementRepo,
		pointsRepo:      pointsRepo,
		userRepo:        userRepo,
		log:             log,
	}
}

// NewServiceWithInterfaces creates a new achievements service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	achievementRepo AchievementRepository,
	pointsRepo PointsRepository,
	userRepo UserRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		achievementRepo: achievementRepo,
		pointsRepo:      pointsRepo,
		userRepo:        userRepo,
		log:             log,
	}
}

// Seed upserts the configured catalog into the database. Runs at startup and
// is idempotent.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Seed(ctx context.Context, catalog []config.AchievementConfig) error {
	for _, entry := range catalog {
		achievement := &models.Achievement{
			Name:           entry.Name,
			Description:    entry.Description,
			Icon:           entry.Icon,
			Category:       entry.Category,
			RequiredPoints: entry.RequiredPoints,
			Secret:         entry.Secret,
		}
		if err := s.achievementRepo.Upsert(achievement); err != nil {
			return fmt.Errorf("failed to seed achievement %s: %w", entry.Name, err)
		}
	}

	s.log.Info().Int("count", len(catalog)).Msg("Achievement catalog seeded")
	return nil
}

// GridItem is one achievement in a user's display grid.
type GridItem struct {
	ID             uint       `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Icon           string     `json:"icon"`
	Category       string     `json:"category"`
	RequiredPoints int        `json:"required_points"`
	Secret         bool       `json:"secret"`
	Unlocked       bool       `json:"unlocked"`
	UnlockedAt     *time.Time `json:"unlocked_at,omitempty"`
	Progress       int        `json:"progress"`
}

// GridOptions filter the display grid.
type GridOptions struct {
	Category   string
	ShowLocked bool
	ShowSecret bool
}

// DisplayGrid returns the achievement grid for a user. Progress is the user's
// cumulative points in the achievement's category, capped at RequiredPoints;
// the special category tracks total points. Locked secret achievements are
// hidden unless explicitly requested.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) DisplayGrid(ctx context.Context, userID string, opts GridOptions) ([]GridItem, error) {
	catalog, err := s.achievementRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement catalog: %w", err)
	}

	unlocked, err := s.unlockedByID(userID)
	if err != nil {
		return nil, err
	}

	sums, err := s.pointsRepo.SumByCategory(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load points for %s: %w", userID, err)
	}

	grid := make([]GridItem, 0, len(catalog))
	for _, a := range catalog {
		if opts.Category != "" && a.Category != opts.Category {
			continue
		}

		ua, isUnlocked := unlocked[a.ID]
		if !isUnlocked {
			if !opts.ShowLocked {
				continue
			}
			if a.Secret && !opts.ShowSecret {
				continue
			}
		}

		progress := sums[a.Category]
		if progress > a.RequiredPoints {
			progress = a.RequiredPoints
		}
		if isUnlocked {
			progress = a.RequiredPoints
		}

		item := GridItem{
			ID:             a.ID,
			Name:           a.Name,
			Description:    a.Description,
			Icon:           a.Icon,
			Category:       a.Category,
			RequiredPoints: a.RequiredPoints,
			Secret:         a.Secret,
			Unlocked:       isUnlocked,
			Progress:       progress,
		}
		if isUnlocked {
			unlockedAt := ua.UnlockedAt
			item.UnlockedAt = &unlockedAt
		}

		grid = append(grid, item)
	}

	return grid, nil
}

// UnlockedSet returns the IDs of the achievements a user has unlocked.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) UnlockedSet(ctx context.Context, userID string) (map[uint]bool, error) {
	unlocked, err := s.unlockedByID(userID)
	if err != nil {
		return nil, err
	}

	set := make(map[uint]bool, len(unlocked))
	for id := range unlocked {
		set[id] = true
	}
	return set, nil
}

// EvaluateUser unlocks every achievement whose threshold the user now meets
// and returns the newly unlocked entries. Each achievement unlocks exactly
// once; the check here plus the unique index make replays harmless.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) EvaluateUser(ctx context.Context, userID string) ([]models.Achievement, error) {
	catalog, err := s.achievementRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement catalog: %w", err)
	}

	sums, err := s.pointsRepo.SumByCategory(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load points for %s: %w", userID, err)
	}

	var newlyUnlocked []models.Achievement
	for _, a := range catalog {
		if sums[a.Category] < a.RequiredPoints {
			continue
		}

		hasUnlocked, err := s.achievementRepo.HasUnlocked(userID, a.ID)
		if err != nil {
			s.log.Error().
				Err(err).
				Str("user_id", userID).
				Str("achievement", a.Name).
				Msg("Failed to check achievement unlock")
			continue
		}
		if hasUnlocked {
			continue
		}

		if err := s.achievementRepo.Unlock(userID, a.ID, a.RequiredPoints); err != nil {
			s.log.Error().
				Err(err).
				Str("user_id", userID).
				Str("achievement", a.Name).
				Msg("Failed to unlock achievement")
			continue
		}

		prommetrics.RecordAchievementUnlocked(a.Name)
		newlyUnlocked = append(newlyUnlocked, a)

		s.log.Info().
			Str("user_id", userID).
			Str("achievement", a.Name).
			Msg("Achievement unlocked")
	}

	return newlyUnlocked, nil
}

// EvaluateAllUsers runs evaluation for every user. This is the scheduler
// backstop for unlocks missed by the synchronous path. Returns the number of
// achievements unlocked.
func (s *Service) EvaluateAllUsers(ctx context.Context) (int, error) {
	users, err := s.userRepo.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	unlockCount := 0
	for _, user := range users {
		newlyUnlocked, err := s.EvaluateUser(ctx, user.ID)
		if err != nil {
			s.log.Error().
				Err(err).
				Str("user_id", user.ID).
				Msg("Failed to evaluate achievements for user")
			continue
		}
		unlockCount += len(newlyUnlocked)
	}

	return unlockCount, nil
}

// CountForUser returns how many achievements a user has unlocked.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) CountForUser(ctx context.Context, userID string) (int64, error) {
	return s.achievementRepo.CountByUser(userID)
}

func (s *Service) unlockedByID(userID string) (map[uint]models.UserAchievement, error) {
	userAchievements, err := s.achievementRepo.GetUserAchievements(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocks for %s: %w", userID, err)
	}

	unlocked := make(map[uint]models.UserAchievement, len(userAchievements))
	for _, ua := range userAchievements {
		unlocked[ua.AchievementID] = ua
	}
	return unlocked, nil
}
