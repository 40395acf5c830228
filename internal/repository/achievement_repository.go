package repository

import (
	"fmt"
	"time"

	"github.com/doefacil/doefacil-api/internal/models"
)

// AchievementRepository handles achievement catalog and unlock operations.
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Upsert creates a catalog entry or refreshes an existing one by name. Seeding
// runs on every boot, so this has to be idempotent.
func (r *AchievementRepository) Upsert(achievement *models.Achievement) error {
	var existing models.Achievement
	err := r.db.Where("name = ?", achievement.Name).First(&existing).Error
	if err == nil {
		achievement.ID = existing.ID
		achievement.CreatedAt = existing.CreatedAt
		if err := r.db.Save(achievement).Error; err != nil {
			return fmt.Errorf("failed to update achievement %s: %w", achievement.Name, err)
		}
		return nil
	}
	if err := r.db.Create(achievement).Error; err != nil {
		return fmt.Errorf("failed to create achievement %s: %w", achievement.Name, err)
	}
	return nil
}

// GetAll retrieves the full achievement catalog.
func (r *AchievementRepository) GetAll() ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := r.db.Order("required_points ASC").Find(&achievements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	return achievements, nil
}

// GetByID retrieves an achievement by its ID.
func (r *AchievementRepository) GetByID(id uint) (*models.Achievement, error) {
	var achievement models.Achievement
	if err := r.db.First(&achievement, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get achievement %d: %w", id, err)
	}
	return &achievement, nil
}

// Unlock records an achievement unlock for a user. Already-unlocked is
// success: the check plus the unique index on (user_id, achievement_id) make
// a double unlock impossible.
func (r *AchievementRepository) Unlock(userID string, achievementID uint, progress int) error {
	unlocked, err := r.HasUnlocked(userID, achievementID)
	if err != nil {
		return err
	}
	if unlocked {
		return nil
	}

	userAchievement := &models.UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		UnlockedAt:    time.Now(),
		Progress:      progress,
	}
	err = r.db.Create(userAchievement).Error
	if err != nil {
		// A concurrent evaluation may have won the race; the unique index
		// turns that into a no-op.
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to unlock achievement %d for %s: %w", achievementID, userID, err)
	}
	return nil
}

// HasUnlocked checks if a user has unlocked a specific achievement.
func (r *AchievementRepository) HasUnlocked(userID string, achievementID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check unlock for %s: %w", userID, err)
	}
	return count > 0, nil
}

// GetUserAchievements retrieves all unlocks for a user with catalog details
// preloaded.
func (r *AchievementRepository) GetUserAchievements(userID string) ([]models.UserAchievement, error) {
	var userAchievements []models.UserAchievement
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Achievement").
		Order("unlocked_at DESC").
		Find(&userAchievements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get achievements for %s: %w", userID, err)
	}
	return userAchievements, nil
}

// CountByUser returns the number of achievements a user has unlocked.
func (r *AchievementRepository) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count achievements for %s: %w", userID, err)
	}
	return count, nil
}
