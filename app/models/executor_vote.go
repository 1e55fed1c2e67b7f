package models

import (
	"time"
)

// ExecutorVote is an executor's current release vote for a vault. Re-voting
// overwrites the previous row; only the latest vote per executor counts.
type ExecutorVote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	VaultID    uint      `gorm:"not null;uniqueIndex:idx_vote_vault_executor" json:"vault_id"`
	Vault      Vault     `gorm:"foreignKey:VaultID" json:"-"`
	ExecutorID uint      `gorm:"not null;uniqueIndex:idx_vote_vault_executor" json:"executor_id"`
	Executor   Executor  `gorm:"foreignKey:ExecutorID" json:"-"`
	Vote       bool      `gorm:"not null" json:"vote"`
	CastAt     time.Time `gorm:"not null" json:"cast_at"`
}
