package repository

import (
	"fmt"
	"time"

	"github.com/doefacil/doefacil-api/internal/models"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user.
func (r *UserRepository) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by its auth provider subject ID.
func (r *UserRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return &user, nil
}

// Update updates a user.
func (r *UserRepository) Update(user *models.User) error {
	if err := r.db.Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// CreateOrUpdate creates a user if it doesn't exist, or refreshes the profile
// fields if it does. Used by the auth provider webhook.
func (r *UserRepository) CreateOrUpdate(user *models.User) error {
	var existing models.User
	err := r.db.First(&existing, "id = ?", user.ID).Error
	if err == nil {
		existing.Username = user.Username
		existing.Email = user.Email
		existing.AvatarURL = user.AvatarURL
		existing.UpdatedAt = time.Now()
		return r.Update(&existing)
	}
	return r.Create(user)
}

// List retrieves all users.
func (r *UserRepository) List() ([]models.User, error) {
	var users []models.User
	if err := r.db.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
