package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TRIGGER_TYPE_INACTIVITY        = "inactivity"
	TRIGGER_TYPE_SCHEDULED         = "scheduled"
	TRIGGER_TYPE_MANUAL            = "manual"
	TRIGGER_TYPE_DEATH_CERTIFICATE = "death_certificate"
	TRIGGER_TYPE_EXECUTOR_VOTE     = "executor_vote"

	TRIGGER_STATUS_PENDING   = "pending"
	TRIGGER_STATUS_ACTIVE    = "active"
	TRIGGER_STATUS_TRIGGERED = "triggered"
	TRIGGER_STATUS_CANCELLED = "cancelled"
	TRIGGER_STATUS_EXPIRED   = "expired"
)

// Trigger is the condition/state record governing when a vault's content is
// released. Triggers are never deleted; they only move to a terminal status.
type Trigger struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UUID                 string     `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	VaultID              uint       `gorm:"index;not null" json:"vault_id"`
	Vault                Vault      `gorm:"foreignKey:VaultID" json:"-"`
	TriggerType          string     `gorm:"type:varchar(50);not null;index" json:"trigger_type"`
	Status               string     `gorm:"type:varchar(50);not null;default:'pending';index" json:"status"`
	ScheduledDate        *time.Time `gorm:"type:timestamp;default:null" json:"scheduled_date"`
	InactivityDays       *int       `gorm:"default:null" json:"inactivity_days"`
	CancellationDeadline *time.Time `gorm:"type:timestamp;default:null" json:"cancellation_deadline"`
	TriggeredAt          *time.Time `gorm:"type:timestamp;default:null" json:"triggered_at"`
	Reason               string     `gorm:"type:varchar(500);default:null" json:"reason"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a public UUID if none is set yet.
func (t *Trigger) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == "" {
		t.UUID = uuid.New().String()
	}
	return nil
}

// IsTerminal reports whether the trigger has reached a final status.
// Terminal triggers never transition again.
func (t *Trigger) IsTerminal() bool {
	switch t.Status {
	case TRIGGER_STATUS_TRIGGERED, TRIGGER_STATUS_CANCELLED, TRIGGER_STATUS_EXPIRED:
		return true
	default:
		return false
	}
}

// IsCancellable reports whether the owner may still cancel the trigger at the
// given moment: non-terminal and, when a cancellation deadline is set, the
// deadline has not passed yet.
func (t *Trigger) IsCancellable(now time.Time) bool {
	if t.IsTerminal() {
		return false
	}
	if t.CancellationDeadline != nil && now.After(*t.CancellationDeadline) {
		return false
	}
	return true
}

// NonTerminalTriggerStatuses lists the statuses a trigger can still leave.
func NonTerminalTriggerStatuses() []string {
	return []string{TRIGGER_STATUS_PENDING, TRIGGER_STATUS_ACTIVE}
}

// IsValidTriggerType reports whether the given string names a known trigger type.
func IsValidTriggerType(t string) bool {
	switch t {
	case TRIGGER_TYPE_INACTIVITY, TRIGGER_TYPE_SCHEDULED, TRIGGER_TYPE_MANUAL,
		TRIGGER_TYPE_DEATH_CERTIFICATE, TRIGGER_TYPE_EXECUTOR_VOTE:
		return true
	default:
		return false
	}
}
