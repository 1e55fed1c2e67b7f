package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/entitlements"
)

// CancellationWindow is the fixed grace period during which a manual trigger
// can still be cancelled by its owner.
const CancellationWindow = 72 * time.Hour

// TriggerConfig carries the type-specific configuration a vault owner sets
// when arming a trigger.
type TriggerConfig struct {
	InactivityDays int
	ScheduledDate  *time.Time
}

// Service owns the trigger lifecycle: arming, evaluation and cancellation.
// Every status transition is a conditional update so a concurrent cancel and
// a sweep firing can never both succeed.
type Service struct {
	triggers repository.TriggerRepository
	vaults   repository.VaultRepository
	now      func() time.Time
}

// NewService creates a lifecycle service over the given repositories.
func NewService(triggers repository.TriggerRepository, vaults repository.VaultRepository) *Service {
	return &Service{triggers: triggers, vaults: vaults, now: time.Now}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// DaysSince converts an activity timestamp into whole elapsed days, floor
// division over rolling 24h windows.
func DaysSince(lastActivity time.Time, now time.Time) int {
	if now.Before(lastActivity) {
		return 0
	}
	return int(now.Sub(lastActivity).Hours() / 24)
}

// ValidateTriggerConfig checks a trigger type against the caller's plan and
// its type-specific configuration for completeness, without touching storage.
// Callers persisting a vault together with its trigger run this first so a
// rejected trigger never leaves an orphaned vault behind.
func ValidateTriggerConfig(triggerType string, plan entitlements.Plan, cfg TriggerConfig) error {
	if !models.IsValidTriggerType(triggerType) {
		return fmt.Errorf("%w: unknown trigger type %q", ErrValidation, triggerType)
	}
	if !entitlements.IsTriggerTypeAllowed(plan, triggerType) {
		return fmt.Errorf("%w: trigger type %q not available on %s tier", ErrPermissionDenied, triggerType, plan)
	}

	switch triggerType {
	case models.TRIGGER_TYPE_INACTIVITY:
		if cfg.InactivityDays < 1 {
			return fmt.Errorf("%w: inactivity_days must be at least 1", ErrValidation)
		}
	case models.TRIGGER_TYPE_SCHEDULED:
		if cfg.ScheduledDate == nil {
			return fmt.Errorf("%w: scheduled_date required", ErrValidation)
		}
	}
	return nil
}

// ArmVaultTrigger creates or replaces the singleton trigger of a vault when
// the owner sets its trigger type. Inactivity, scheduled and executor-vote
// triggers arm immediately since they are continuously monitored;
// death-certificate triggers wait in pending for external verification.
func (s *Service) ArmVaultTrigger(vault *models.Vault, plan entitlements.Plan, cfg TriggerConfig) (*models.Trigger, error) {
	if vault == nil {
		return nil, fmt.Errorf("%w: vault required", ErrValidation)
	}
	if err := ValidateTriggerConfig(vault.TriggerType, plan, cfg); err != nil {
		return nil, err
	}

	trigger := &models.Trigger{
		VaultID:     vault.ID,
		TriggerType: vault.TriggerType,
	}

	switch vault.TriggerType {
	case models.TRIGGER_TYPE_INACTIVITY:
		days := cfg.InactivityDays
		trigger.InactivityDays = &days
		trigger.Status = models.TRIGGER_STATUS_ACTIVE
	case models.TRIGGER_TYPE_SCHEDULED:
		trigger.ScheduledDate = cfg.ScheduledDate
		trigger.Status = models.TRIGGER_STATUS_ACTIVE
	case models.TRIGGER_TYPE_EXECUTOR_VOTE:
		trigger.Status = models.TRIGGER_STATUS_ACTIVE
	case models.TRIGGER_TYPE_MANUAL:
		// Vault-level manual triggers only fire once explicitly armed via
		// CreateManualTrigger; there is nothing to monitor yet.
		trigger.Status = models.TRIGGER_STATUS_PENDING
	case models.TRIGGER_TYPE_DEATH_CERTIFICATE:
		trigger.Status = models.TRIGGER_STATUS_PENDING
	}

	if err := s.triggers.ReplaceVaultTrigger(trigger); err != nil {
		return nil, err
	}
	return trigger, nil
}

// CreateManualTrigger arms a manual release for a vault owned by the caller.
// It enters pending with a fixed 72 hour cancellation deadline.
func (s *Service) CreateManualTrigger(userID uint, vaultUUID string, reason string, plan entitlements.Plan) (*models.Trigger, error) {
	if vaultUUID == "" {
		return nil, fmt.Errorf("%w: vault_id required", ErrValidation)
	}
	if !entitlements.IsTriggerTypeAllowed(plan, models.TRIGGER_TYPE_MANUAL) {
		return nil, fmt.Errorf("%w: manual triggers not available on %s tier", ErrPermissionDenied, plan)
	}

	vault, err := s.vaults.GetByUUIDOwned(vaultUUID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: vault", ErrNotFound)
		}
		return nil, err
	}

	deadline := s.now().Add(CancellationWindow)
	if reason == "" {
		reason = "manual"
	}
	trigger := &models.Trigger{
		VaultID:              vault.ID,
		TriggerType:          models.TRIGGER_TYPE_MANUAL,
		Status:               models.TRIGGER_STATUS_PENDING,
		CancellationDeadline: &deadline,
		Reason:               reason,
	}
	if err := s.triggers.Create(trigger); err != nil {
		return nil, err
	}
	return trigger, nil
}

// Cancel aborts a trigger on behalf of its owner. It succeeds only while the
// trigger is non-terminal and, for manual triggers, the 72h window is open.
func (s *Service) Cancel(userID uint, triggerID uint) (*models.Trigger, error) {
	trigger, err := s.triggers.GetOwned(triggerID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: trigger", ErrNotFound)
		}
		return nil, err
	}

	if trigger.IsTerminal() {
		return nil, fmt.Errorf("%w: trigger is %s", ErrInvalidState, trigger.Status)
	}
	now := s.now()
	if trigger.CancellationDeadline != nil && now.After(*trigger.CancellationDeadline) {
		return nil, ErrWindowExpired
	}

	ok, err := s.triggers.UpdateStatusIf(trigger.ID, models.NonTerminalTriggerStatuses(), models.TRIGGER_STATUS_CANCELLED, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent transition (most likely the sweep firing) won the race.
		return nil, fmt.Errorf("%w: trigger already transitioned", ErrInvalidState)
	}

	trigger.Status = models.TRIGGER_STATUS_CANCELLED
	return trigger, nil
}

// Fire transitions a trigger to triggered, stamping triggered_at, but only if
// it is still in one of the expected source statuses. Returns false when the
// trigger was concurrently cancelled or already fired.
func (s *Service) Fire(triggerID uint, from []string) (bool, error) {
	now := s.now()
	fired, err := s.triggers.UpdateStatusIf(triggerID, from, models.TRIGGER_STATUS_TRIGGERED, &now)
	if err != nil {
		return false, err
	}
	if !fired {
		log.Debugf("[Lifecycle] Trigger %d lost the firing race, skipping", triggerID)
	}
	return fired, nil
}
