package repository

import (
	"github.com/everkeep/everkeep/app/models"
	"gorm.io/gorm"
)

// vaultRepository implements the VaultRepository interface
type vaultRepository struct {
	db *gorm.DB
}

// NewVaultRepository creates a new vault repository instance
func NewVaultRepository(db *gorm.DB) VaultRepository {
	return &vaultRepository{db: db}
}

// Create creates a new vault in the database
func (r *vaultRepository) Create(vault *models.Vault) error {
	return r.db.Create(vault).Error
}

// GetByID retrieves a vault by its ID
func (r *vaultRepository) GetByID(id uint) (*models.Vault, error) {
	var vault models.Vault
	err := r.db.First(&vault, id).Error
	if err != nil {
		return nil, err
	}
	return &vault, nil
}

// GetByUUID retrieves a vault by its public UUID
func (r *vaultRepository) GetByUUID(uuid string) (*models.Vault, error) {
	var vault models.Vault
	err := r.db.Where("uuid = ?", uuid).First(&vault).Error
	if err != nil {
		return nil, err
	}
	return &vault, nil
}

// GetByUUIDOwned retrieves a vault by UUID only when it belongs to the given
// user. A foreign vault is indistinguishable from a missing one.
func (r *vaultRepository) GetByUUIDOwned(uuid string, userID uint) (*models.Vault, error) {
	var vault models.Vault
	err := r.db.Where("uuid = ? AND user_id = ?", uuid, userID).First(&vault).Error
	if err != nil {
		return nil, err
	}
	return &vault, nil
}

// ListByUserID retrieves all vaults owned by a user, newest first
func (r *vaultRepository) ListByUserID(userID uint) ([]models.Vault, error) {
	var vaults []models.Vault
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&vaults).Error
	if err != nil {
		return nil, err
	}
	return vaults, nil
}

// CountByUserID returns the number of vaults owned by a user
func (r *vaultRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Vault{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Update updates an existing vault in the database
func (r *vaultRepository) Update(vault *models.Vault) error {
	return r.db.Save(vault).Error
}
