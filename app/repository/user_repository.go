package repository

import (
	"strings"
	"time"

	"github.com/everkeep/everkeep/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash resolves an active API key hash to its user.
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("api_key_hash = ? AND api_key_hash <> ''", trimmed).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// TouchLastActivity resets the inactivity clock for the user. Any
// proof-of-life event goes through here.
func (r *userRepository) TouchLastActivity(userID uint, at time.Time) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_activity_at", at).Error
}

// TouchLastReminder records that a proof-of-life reminder went out, so
// further sweeps on the same day skip the user.
func (r *userRepository) TouchLastReminder(userID uint, at time.Time) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_reminder_at", at).Error
}

// ListReminderCandidates returns users who have at least one active trigger
// and a known last-activity timestamp. The sweep applies the day-threshold
// filter on top of this.
func (r *userRepository) ListReminderCandidates() ([]ReminderCandidate, error) {
	var rows []ReminderCandidate
	err := r.db.
		Table("users").
		Select("users.id AS user_id, users.email AS email, users.last_activity_at AS last_activity_at, users.last_reminder_at AS last_reminder_at").
		Joins("JOIN vaults ON vaults.user_id = users.id").
		Joins("JOIN triggers ON triggers.vault_id = vaults.id AND triggers.status = ?", models.TRIGGER_STATUS_ACTIVE).
		Where("users.last_activity_at IS NOT NULL").
		Where("users.deleted_at IS NULL").
		Group("users.id, users.email, users.last_activity_at, users.last_reminder_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
