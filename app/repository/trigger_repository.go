package repository

import (
	"time"

	"github.com/everkeep/everkeep/app/models"
	"gorm.io/gorm"
)

// triggerRepository implements the TriggerRepository interface
type triggerRepository struct {
	db *gorm.DB
}

// NewTriggerRepository creates a new trigger repository instance
func NewTriggerRepository(db *gorm.DB) TriggerRepository {
	return &triggerRepository{db: db}
}

// Create creates a new trigger record
func (r *triggerRepository) Create(trigger *models.Trigger) error {
	return r.db.Create(trigger).Error
}

// GetByID retrieves a trigger by its ID
func (r *triggerRepository) GetByID(id uint) (*models.Trigger, error) {
	var trigger models.Trigger
	err := r.db.First(&trigger, id).Error
	if err != nil {
		return nil, err
	}
	return &trigger, nil
}

// GetByUUID retrieves a trigger by its public UUID
func (r *triggerRepository) GetByUUID(uuid string) (*models.Trigger, error) {
	var trigger models.Trigger
	err := r.db.Where("uuid = ?", uuid).First(&trigger).Error
	if err != nil {
		return nil, err
	}
	return &trigger, nil
}

// GetOwned retrieves a trigger only when its vault belongs to the given user.
func (r *triggerRepository) GetOwned(id uint, userID uint) (*models.Trigger, error) {
	var trigger models.Trigger
	err := r.db.
		Joins("JOIN vaults ON vaults.id = triggers.vault_id").
		Where("triggers.id = ? AND vaults.user_id = ?", id, userID).
		First(&trigger).Error
	if err != nil {
		return nil, err
	}
	return &trigger, nil
}

// ListActiveForUser returns the caller's pending and active triggers joined
// with vault identity, newest first.
func (r *triggerRepository) ListActiveForUser(userID uint) ([]TriggerWithVault, error) {
	return r.listForUser(userID, models.NonTerminalTriggerStatuses(), 0)
}

// ListHistoryForUser returns terminal and non-terminal triggers for the
// caller, most recent first.
func (r *triggerRepository) ListHistoryForUser(userID uint, limit int) ([]TriggerWithVault, error) {
	return r.listForUser(userID, nil, limit)
}

func (r *triggerRepository) listForUser(userID uint, statuses []string, limit int) ([]TriggerWithVault, error) {
	q := r.db.
		Table("triggers").
		Select("triggers.*, vaults.uuid AS vault_uuid, vaults.name AS vault_name").
		Joins("JOIN vaults ON vaults.id = triggers.vault_id").
		Where("vaults.user_id = ?", userID).
		Order("triggers.created_at DESC")
	if len(statuses) > 0 {
		q = q.Where("triggers.status IN ?", statuses)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []TriggerWithVault
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListInactivityCandidates returns every active inactivity trigger joined
// with its vault's owner, for the daily sweep.
func (r *triggerRepository) ListInactivityCandidates() ([]InactivityCandidate, error) {
	var rows []InactivityCandidate
	err := r.db.
		Table("triggers").
		Select(`triggers.id AS trigger_id,
			triggers.vault_id AS vault_id,
			vaults.name AS vault_name,
			triggers.inactivity_days AS inactivity_days,
			users.id AS user_id,
			users.email AS email,
			users.last_activity_at AS last_activity_at`).
		Joins("JOIN vaults ON vaults.id = triggers.vault_id").
		Joins("JOIN users ON users.id = vaults.user_id").
		Where("triggers.trigger_type = ?", models.TRIGGER_TYPE_INACTIVITY).
		Where("triggers.status = ?", models.TRIGGER_STATUS_ACTIVE).
		Where("users.last_activity_at IS NOT NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListScheduledDue returns active scheduled triggers whose date has arrived.
func (r *triggerRepository) ListScheduledDue(now time.Time) ([]models.Trigger, error) {
	var triggers []models.Trigger
	err := r.db.
		Where("trigger_type = ? AND status = ? AND scheduled_date <= ?",
			models.TRIGGER_TYPE_SCHEDULED, models.TRIGGER_STATUS_ACTIVE, now).
		Find(&triggers).Error
	if err != nil {
		return nil, err
	}
	return triggers, nil
}

// ListManualPastDeadline returns manual triggers whose cancellation window
// has closed without a cancel.
func (r *triggerRepository) ListManualPastDeadline(now time.Time) ([]models.Trigger, error) {
	var triggers []models.Trigger
	err := r.db.
		Where("trigger_type = ? AND status IN ? AND cancellation_deadline <= ?",
			models.TRIGGER_TYPE_MANUAL, models.NonTerminalTriggerStatuses(), now).
		Find(&triggers).Error
	if err != nil {
		return nil, err
	}
	return triggers, nil
}

// ListActiveByType returns all active triggers of the given type.
func (r *triggerRepository) ListActiveByType(triggerType string) ([]models.Trigger, error) {
	var triggers []models.Trigger
	err := r.db.
		Where("trigger_type = ? AND status = ?", triggerType, models.TRIGGER_STATUS_ACTIVE).
		Find(&triggers).Error
	if err != nil {
		return nil, err
	}
	return triggers, nil
}

// UpdateStatusIf transitions a trigger to the target status only when its
// current status is still one of the expected ones. Returns false when the
// conditional update matched no row, meaning a concurrent transition won.
func (r *triggerRepository) UpdateStatusIf(id uint, from []string, to string, triggeredAt *time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if triggeredAt != nil {
		updates["triggered_at"] = *triggeredAt
	}
	res := r.db.Model(&models.Trigger{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReplaceVaultTrigger expires any non-terminal trigger of the vault and
// creates the new one in a single transaction, preserving the invariant of
// one driving trigger per vault.
func (r *triggerRepository) ReplaceVaultTrigger(trigger *models.Trigger) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Trigger{}).
			Where("vault_id = ? AND status IN ?", trigger.VaultID, models.NonTerminalTriggerStatuses()).
			Update("status", models.TRIGGER_STATUS_EXPIRED).Error
		if err != nil {
			return err
		}
		return tx.Create(trigger).Error
	})
}
