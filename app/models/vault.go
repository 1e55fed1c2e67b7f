package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Vault struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	User         User           `gorm:"foreignKey:UserID" json:"-"`
	Name         string         `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=1,max=200"`
	Icon         string         `gorm:"type:varchar(50);default:null" json:"icon"`
	Description  string         `gorm:"type:text;default:null" json:"description" validate:"max=2000"`
	TriggerType  string         `gorm:"type:varchar(50);not null" json:"trigger_type" validate:"oneof=inactivity scheduled manual death_certificate executor_vote"`
	IsEncrypted  bool           `gorm:"default:false" json:"is_encrypted"`
	IsPublic     bool           `gorm:"default:false" json:"is_public"`
	CustomSlug   string         `gorm:"type:varchar(100);default:null" json:"custom_slug"`
	ContentCount int            `gorm:"default:0" json:"content_count"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (v *Vault) Validate() error {
	return validator.New().Struct(v)
}

// BeforeCreate assigns a public UUID if none is set yet.
func (v *Vault) BeforeCreate(tx *gorm.DB) error {
	if v.UUID == "" {
		v.UUID = uuid.New().String()
	}
	return nil
}
