package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

const (
	EXECUTOR_ACCESS_PRIMARY = "primary"
	EXECUTOR_ACCESS_CURATOR = "curator"
	EXECUTOR_ACCESS_VIEWER  = "viewer"

	EXECUTOR_STATUS_PENDING  = "pending"
	EXECUTOR_STATUS_ACCEPTED = "accepted"
	EXECUTOR_STATUS_DECLINED = "declined"
	EXECUTOR_STATUS_REMOVED  = "removed"
)

// Executor is a third party invited by a vault owner to receive or vote on
// the release of vault content.
type Executor struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index;not null" json:"user_id"`
	User        User           `gorm:"foreignKey:UserID" json:"-"`
	Email       string         `gorm:"type:varchar(200);not null;index" json:"email"`
	Phone       string         `gorm:"type:varchar(50);default:null" json:"phone"`
	AccessLevel string         `gorm:"type:varchar(50);not null;default:'viewer'" json:"access_level"`
	Status      string         `gorm:"type:varchar(50);not null;default:'pending'" json:"status"`
	InviteToken string         `gorm:"type:varchar(100);index" json:"-"`
	InvitedAt   time.Time      `gorm:"autoCreateTime" json:"invited_at"`
	AcceptedAt  *time.Time     `gorm:"type:timestamp;default:null" json:"accepted_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// VaultExecutor assigns an executor to a specific vault.
type VaultExecutor struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	VaultID    uint     `gorm:"not null;uniqueIndex:idx_vault_executor" json:"vault_id"`
	Vault      Vault    `gorm:"foreignKey:VaultID" json:"-"`
	ExecutorID uint     `gorm:"not null;uniqueIndex:idx_vault_executor" json:"executor_id"`
	Executor   Executor `gorm:"foreignKey:ExecutorID" json:"-"`
}

// GenerateInviteToken creates the random token mailed to an invited executor.
func (e *Executor) GenerateInviteToken() error {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	e.InviteToken = hex.EncodeToString(b)
	return nil
}

// Accept marks the invitation as accepted.
func (e *Executor) Accept() {
	now := time.Now()
	e.Status = EXECUTOR_STATUS_ACCEPTED
	e.AcceptedAt = &now
}

// CanVote reports whether the executor is entitled to cast release votes.
// Only accepted executors count towards consensus.
func (e *Executor) CanVote() bool {
	return e.Status == EXECUTOR_STATUS_ACCEPTED
}
