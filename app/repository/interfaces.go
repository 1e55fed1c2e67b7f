package repository

import (
	"time"

	"github.com/everkeep/everkeep/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	TouchLastActivity(userID uint, at time.Time) error
	TouchLastReminder(userID uint, at time.Time) error
	ListReminderCandidates() ([]ReminderCandidate, error)
}

// VaultRepository defines the interface for vault-related database operations
type VaultRepository interface {
	Create(vault *models.Vault) error
	GetByID(id uint) (*models.Vault, error)
	GetByUUID(uuid string) (*models.Vault, error)
	GetByUUIDOwned(uuid string, userID uint) (*models.Vault, error)
	ListByUserID(userID uint) ([]models.Vault, error)
	CountByUserID(userID uint) (int64, error)
	Update(vault *models.Vault) error
}

// TriggerRepository defines the interface for trigger lifecycle persistence.
// Status transitions go through UpdateStatusIf so a concurrent cancel and a
// sweep firing can never both win.
type TriggerRepository interface {
	Create(trigger *models.Trigger) error
	GetByID(id uint) (*models.Trigger, error)
	GetByUUID(uuid string) (*models.Trigger, error)
	GetOwned(id uint, userID uint) (*models.Trigger, error)
	ListActiveForUser(userID uint) ([]TriggerWithVault, error)
	ListHistoryForUser(userID uint, limit int) ([]TriggerWithVault, error)
	ListInactivityCandidates() ([]InactivityCandidate, error)
	ListScheduledDue(now time.Time) ([]models.Trigger, error)
	ListManualPastDeadline(now time.Time) ([]models.Trigger, error)
	ListActiveByType(triggerType string) ([]models.Trigger, error)
	UpdateStatusIf(id uint, from []string, to string, triggeredAt *time.Time) (bool, error)
	ReplaceVaultTrigger(trigger *models.Trigger) error
}

// ProofOfLifeRepository defines the interface for the daily check-in ledger.
type ProofOfLifeRepository interface {
	GetByUserAndDate(userID uint, day time.Time) (*models.ProofOfLife, error)
	GetLatestForUser(userID uint) (*models.ProofOfLife, error)
	Upsert(record *models.ProofOfLife) error
}

// ExecutorRepository defines the interface for executors, their vault
// assignments and their release votes.
type ExecutorRepository interface {
	Create(executor *models.Executor) error
	GetByID(id uint) (*models.Executor, error)
	GetOwned(id uint, userID uint) (*models.Executor, error)
	GetByOwnerAndEmail(userID uint, email string) (*models.Executor, error)
	GetByInviteToken(token string) (*models.Executor, error)
	ListForUser(userID uint) ([]models.Executor, error)
	CountForUser(userID uint) (int64, error)
	Update(executor *models.Executor) error
	Remove(id uint) error
	AssignToVault(vaultID, executorID uint) error
	ListAcceptedForVault(vaultID uint) ([]models.Executor, error)
	GetAcceptedByVaultAndEmail(vaultID uint, email string) (*models.Executor, error)
	UpsertVote(vote *models.ExecutorVote) error
	ListVotesForVault(vaultID uint) ([]models.ExecutorVote, error)
}

// TriggerWithVault is a trigger row joined with its vault's public identity.
type TriggerWithVault struct {
	models.Trigger
	VaultUUID string
	VaultName string
}

// InactivityCandidate is one active inactivity trigger joined with the
// owner's activity data, as consumed by the sweep.
type InactivityCandidate struct {
	TriggerID      uint
	VaultID        uint
	VaultName      string
	InactivityDays int
	UserID         uint
	Email          string
	LastActivityAt *time.Time
}

// ReminderCandidate is a user with at least one active trigger, joined with
// the activity timestamp the reminder thresholds are measured against and
// the timestamp of the last reminder already sent.
type ReminderCandidate struct {
	UserID         uint
	Email          string
	LastActivityAt *time.Time
	LastReminderAt *time.Time
}

// Repositories struct holds all repository instances
type Repositories struct {
	User        UserRepository
	Vault       VaultRepository
	Trigger     TriggerRepository
	ProofOfLife ProofOfLifeRepository
	Executor    ExecutorRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Vault:       NewVaultRepository(db),
		Trigger:     NewTriggerRepository(db),
		ProofOfLife: NewProofOfLifeRepository(db),
		Executor:    NewExecutorRepository(db),
	}
}
