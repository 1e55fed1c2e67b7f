package models

import (
	"time"

	"gorm.io/gorm"
)

// Memorial is the public page shown for a vault whose trigger has fired.
type Memorial struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	VaultID     uint      `gorm:"uniqueIndex;not null" json:"vault_id"`
	Vault       Vault     `gorm:"foreignKey:VaultID" json:"-"`
	Views       int64     `gorm:"default:0" json:"views"`
	PublishedAt time.Time `gorm:"not null" json:"published_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// EnsureMemorial creates the memorial record for a vault if it does not exist
// yet and returns it.
func EnsureMemorial(db *gorm.DB, vaultID uint) (*Memorial, error) {
	var memorial Memorial
	err := db.Where("vault_id = ?", vaultID).First(&memorial).Error
	if err == nil {
		return &memorial, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	memorial = Memorial{VaultID: vaultID, PublishedAt: time.Now()}
	if err := db.Create(&memorial).Error; err != nil {
		return nil, err
	}
	return &memorial, nil
}

// IncrementViews bumps the public view counter.
func (m *Memorial) IncrementViews(db *gorm.DB) error {
	m.Views++
	return db.Model(m).Update("views", gorm.Expr("views + 1")).Error
}
