package repository

import (
	"strings"

	"github.com/everkeep/everkeep/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// executorRepository implements the ExecutorRepository interface
type executorRepository struct {
	db *gorm.DB
}

// NewExecutorRepository creates a new executor repository instance
func NewExecutorRepository(db *gorm.DB) ExecutorRepository {
	return &executorRepository{db: db}
}

// Create creates a new executor record
func (r *executorRepository) Create(executor *models.Executor) error {
	executor.Email = strings.ToLower(executor.Email)
	return r.db.Create(executor).Error
}

// GetByID retrieves an executor by ID
func (r *executorRepository) GetByID(id uint) (*models.Executor, error) {
	var executor models.Executor
	err := r.db.First(&executor, id).Error
	if err != nil {
		return nil, err
	}
	return &executor, nil
}

// GetOwned retrieves an executor only when it was invited by the given user.
func (r *executorRepository) GetOwned(id uint, userID uint) (*models.Executor, error) {
	var executor models.Executor
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&executor).Error
	if err != nil {
		return nil, err
	}
	return &executor, nil
}

// GetByOwnerAndEmail retrieves an executor by the inviting user and email.
func (r *executorRepository) GetByOwnerAndEmail(userID uint, email string) (*models.Executor, error) {
	var executor models.Executor
	err := r.db.
		Where("user_id = ? AND email = ?", userID, strings.ToLower(email)).
		First(&executor).Error
	if err != nil {
		return nil, err
	}
	return &executor, nil
}

// GetByInviteToken retrieves an executor by their invite token.
func (r *executorRepository) GetByInviteToken(token string) (*models.Executor, error) {
	var executor models.Executor
	err := r.db.Where("invite_token = ? AND invite_token <> ''", token).First(&executor).Error
	if err != nil {
		return nil, err
	}
	return &executor, nil
}

// ListForUser retrieves all executors invited by a user, newest first.
func (r *executorRepository) ListForUser(userID uint) ([]models.Executor, error) {
	var executors []models.Executor
	err := r.db.Where("user_id = ?", userID).Order("invited_at DESC").Find(&executors).Error
	if err != nil {
		return nil, err
	}
	return executors, nil
}

// CountForUser returns the number of executors invited by a user.
func (r *executorRepository) CountForUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Executor{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Update updates an existing executor record
func (r *executorRepository) Update(executor *models.Executor) error {
	return r.db.Save(executor).Error
}

// Remove soft deletes an executor and marks them removed.
func (r *executorRepository) Remove(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Executor{}).
			Where("id = ?", id).
			Update("status", models.EXECUTOR_STATUS_REMOVED).Error
		if err != nil {
			return err
		}
		return tx.Delete(&models.Executor{}, id).Error
	})
}

// AssignToVault links an executor to a vault, ignoring duplicates.
func (r *executorRepository) AssignToVault(vaultID, executorID uint) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.VaultExecutor{VaultID: vaultID, ExecutorID: executorID}).Error
}

// ListAcceptedForVault returns the executors entitled to vote on the vault.
func (r *executorRepository) ListAcceptedForVault(vaultID uint) ([]models.Executor, error) {
	var executors []models.Executor
	err := r.db.
		Joins("JOIN vault_executors ON vault_executors.executor_id = executors.id").
		Where("vault_executors.vault_id = ?", vaultID).
		Where("executors.status = ?", models.EXECUTOR_STATUS_ACCEPTED).
		Find(&executors).Error
	if err != nil {
		return nil, err
	}
	return executors, nil
}

// GetAcceptedByVaultAndEmail resolves a voter's email to their accepted
// executor record for the given vault.
func (r *executorRepository) GetAcceptedByVaultAndEmail(vaultID uint, email string) (*models.Executor, error) {
	var executor models.Executor
	err := r.db.
		Joins("JOIN vault_executors ON vault_executors.executor_id = executors.id").
		Where("vault_executors.vault_id = ?", vaultID).
		Where("executors.email = ?", strings.ToLower(email)).
		Where("executors.status = ?", models.EXECUTOR_STATUS_ACCEPTED).
		First(&executor).Error
	if err != nil {
		return nil, err
	}
	return &executor, nil
}

// UpsertVote writes the executor's current vote for the vault. Re-voting
// overwrites; only the latest vote is kept.
func (r *executorRepository) UpsertVote(vote *models.ExecutorVote) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vault_id"}, {Name: "executor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vote", "cast_at"}),
	}).Create(vote).Error
}

// ListVotesForVault returns all current votes for a vault.
func (r *executorRepository) ListVotesForVault(vaultID uint) ([]models.ExecutorVote, error) {
	var votes []models.ExecutorVote
	err := r.db.Where("vault_id = ?", vaultID).Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}
