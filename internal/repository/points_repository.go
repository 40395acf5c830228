package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/doefacil/doefacil-api/internal/levels"
	"github.com/doefacil/doefacil-api/internal/models"
)

// PointsRepository handles the points ledger and the derived user_levels
// aggregate.
type PointsRepository struct {
	db *DB
}

// NewPointsRepository creates a new points repository.
func NewPointsRepository(db *DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// Award appends a ledger entry and updates the user's aggregate in one
// transaction. The total is incremented in SQL, never read-modify-written in
// application memory, so concurrent awards for the same user cannot lose
// updates; level and progress are recomputed from the committed total inside
// the same transaction.
func (r *PointsRepository) Award(entry *models.PointsHistory) (*models.UserLevel, error) {
	var updated models.UserLevel

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append points history: %w", err)
		}

		// Lazily create the aggregate row on the first point-earning event.
		userLevel := models.UserLevel{
			UserID:      entry.UserID,
			Level:       1,
			TotalPoints: 0,
			Progress:    0,
			LastUpdated: time.Now(),
		}
		if err := tx.Where(models.UserLevel{UserID: entry.UserID}).
			FirstOrCreate(&userLevel).Error; err != nil {
			return fmt.Errorf("failed to load user level: %w", err)
		}

		result := tx.Model(&models.UserLevel{}).
			Where("user_id = ?", entry.UserID).
			UpdateColumn("total_points", gorm.Expr("total_points + ?", entry.Points))
		if result.Error != nil {
			return fmt.Errorf("failed to increment total points: %w", result.Error)
		}

		if err := tx.Where("user_id = ?", entry.UserID).First(&updated).Error; err != nil {
			return fmt.Errorf("failed to reload user level: %w", err)
		}

		updated.Level = levels.LevelFor(updated.TotalPoints)
		updated.Progress = levels.ProgressFor(updated.TotalPoints)
		updated.LastUpdated = time.Now()

		if err := tx.Model(&models.UserLevel{}).
			Where("user_id = ?", entry.UserID).
			Updates(map[string]interface{}{
				"level":        updated.Level,
				"progress":     updated.Progress,
				"last_updated": updated.LastUpdated,
			}).Error; err != nil {
			return fmt.Errorf("failed to update level aggregate: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// GetUserLevel retrieves a user's aggregate. A user with no ledger entries
// yet gets the implicit level 1 default without a row being created.
func (r *PointsRepository) GetUserLevel(userID string) (*models.UserLevel, error) {
	var userLevel models.UserLevel
	err := r.db.Where("user_id = ?", userID).First(&userLevel).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &models.UserLevel{
				UserID:      userID,
				Level:       1,
				TotalPoints: 0,
				Progress:    0,
			}, nil
		}
		return nil, fmt.Errorf("failed to get user level for %s: %w", userID, err)
	}
	return &userLevel, nil
}

// GetHistory retrieves a user's ledger entries, newest first.
func (r *PointsRepository) GetHistory(userID string, limit int) ([]models.PointsHistory, error) {
	query := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.PointsHistory
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get points history for %s: %w", userID, err)
	}
	return entries, nil
}

// SumByCategory returns a user's cumulative points per category. The special
// bucket used by achievements is the overall total.
func (r *PointsRepository) SumByCategory(userID string) (map[string]int, error) {
	var rows []struct {
		Category string
		Total    int
	}
	err := r.db.Model(&models.PointsHistory{}).
		Select("category, COALESCE(SUM(points), 0) as total").
		Where("user_id = ?", userID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum points by category for %s: %w", userID, err)
	}

	sums := make(map[string]int, len(rows)+1)
	total := 0
	for _, row := range rows {
		sums[row.Category] = row.Total
		total += row.Total
	}
	sums[models.CategorySpecial] = total
	return sums, nil
}

// HasAward reports whether an entry from the given source already exists for
// the user.
func (r *PointsRepository) HasAward(userID, sourceType, sourceID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.PointsHistory{}).
		Where("user_id = ? AND source_type = ? AND source_id = ?", userID, sourceType, sourceID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check award for %s: %w", userID, err)
	}
	return count > 0, nil
}

// TopByPoints retrieves the highest-scoring user aggregates for leaderboards.
func (r *PointsRepository) TopByPoints(limit int) ([]models.UserLevel, error) {
	var userLevels []models.UserLevel
	err := r.db.Order("total_points DESC").Limit(limit).Find(&userLevels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list top user levels: %w", err)
	}
	return userLevels, nil
}
