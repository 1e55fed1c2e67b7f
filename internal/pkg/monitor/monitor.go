package monitor

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/consensus"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
	"github.com/everkeep/everkeep/internal/pkg/notify"
)

// ReminderThresholds are the exact inactivity day counts at which a
// proof-of-life reminder goes out. A reminder is emitted only on the day the
// threshold is hit, not on every day past it.
var ReminderThresholds = []int{60, 75, 85}

// Monitor evaluates all armed triggers against the current time and fires the
// ones whose condition holds. Firing is a conditional status transition, so a
// sweep racing a user cancellation resolves cleanly either way.
type Monitor struct {
	triggers  repository.TriggerRepository
	vaults    repository.VaultRepository
	users     repository.UserRepository
	lifecycle *lifecycle.Service
	consensus *consensus.Service
	emitter   notify.Emitter
	now       func() time.Time
}

// New creates a monitor over the given repositories and emitter.
func New(repos *repository.Repositories, lc *lifecycle.Service, cs *consensus.Service, emitter notify.Emitter) *Monitor {
	return &Monitor{
		triggers:  repos.Trigger,
		vaults:    repos.Vault,
		users:     repos.User,
		lifecycle: lc,
		consensus: cs,
		emitter:   emitter,
		now:       time.Now,
	}
}

// WithClock overrides the monitor clock. Intended for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// RunOnce executes a full sweep: inactivity, scheduled, manual deadlines,
// executor votes and reminders. Each sweep keeps going past individual
// failures so one broken trigger cannot stall the rest.
func (m *Monitor) RunOnce() error {
	return errors.Join(
		m.SweepInactivity(),
		m.SweepScheduled(),
		m.SweepManualDeadlines(),
		m.SweepExecutorVotes(),
		m.SweepReminders(),
	)
}

// SweepInactivity fires every active inactivity trigger whose owner has been
// inactive for at least the configured number of days.
func (m *Monitor) SweepInactivity() error {
	candidates, err := m.triggers.ListInactivityCandidates()
	if err != nil {
		return err
	}

	now := m.now()
	var errs []error
	for _, c := range candidates {
		if c.LastActivityAt == nil {
			// No activity baseline yet, nothing to measure against.
			log.Debugf("[Monitor] Trigger %d has no activity baseline, skipping", c.TriggerID)
			continue
		}
		days := lifecycle.DaysSince(*c.LastActivityAt, now)
		if days < c.InactivityDays {
			continue
		}

		fired, err := m.lifecycle.Fire(c.TriggerID, []string{models.TRIGGER_STATUS_ACTIVE})
		if err != nil {
			log.Errorf("[Monitor] Failed to fire inactivity trigger %d: %v", c.TriggerID, err)
			errs = append(errs, err)
			continue
		}
		if !fired {
			continue
		}

		log.Infof("[Monitor] Inactivity trigger %d fired after %d days (threshold %d)", c.TriggerID, days, c.InactivityDays)
		if err := m.emitter.EmitRelease(notify.ReleasePayload{
			TriggerID: c.TriggerID,
			VaultID:   c.VaultID,
			VaultName: c.VaultName,
			UserID:    c.UserID,
		}); err != nil {
			log.Errorf("[Monitor] Failed to emit release for trigger %d: %v", c.TriggerID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SweepScheduled fires every active scheduled trigger whose date has passed.
func (m *Monitor) SweepScheduled() error {
	due, err := m.triggers.ListScheduledDue(m.now())
	if err != nil {
		return err
	}

	var errs []error
	for _, trigger := range due {
		if err := m.fireAndEmit(trigger, []string{models.TRIGGER_STATUS_ACTIVE}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SweepManualDeadlines fires every pending manual trigger whose 72h
// cancellation window has closed without a cancellation.
func (m *Monitor) SweepManualDeadlines() error {
	due, err := m.triggers.ListManualPastDeadline(m.now())
	if err != nil {
		return err
	}

	var errs []error
	for _, trigger := range due {
		if err := m.fireAndEmit(trigger, []string{models.TRIGGER_STATUS_PENDING}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SweepExecutorVotes evaluates vote consensus for every active executor-vote
// trigger and fires those whose executors reached a release majority.
func (m *Monitor) SweepExecutorVotes() error {
	active, err := m.triggers.ListActiveByType(models.TRIGGER_TYPE_EXECUTOR_VOTE)
	if err != nil {
		return err
	}

	var errs []error
	for _, trigger := range active {
		decision, err := m.consensus.Evaluate(trigger.VaultID)
		if err != nil {
			log.Errorf("[Monitor] Failed to evaluate votes for vault %d: %v", trigger.VaultID, err)
			errs = append(errs, err)
			continue
		}
		if decision != consensus.DecisionRelease {
			continue
		}
		if err := m.fireAndEmit(trigger, []string{models.TRIGGER_STATUS_ACTIVE}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SweepReminders emits a proof-of-life reminder for every user with an active
// trigger who hits one of the reminder thresholds today. The emission is
// stamped on the user, so sub-daily sweep intervals still send at most one
// reminder per user per UTC day.
func (m *Monitor) SweepReminders() error {
	candidates, err := m.users.ListReminderCandidates()
	if err != nil {
		return err
	}

	now := m.now()
	today := models.CheckInDay(now)
	var errs []error
	for _, c := range candidates {
		if c.LastActivityAt == nil {
			continue
		}
		days := lifecycle.DaysSince(*c.LastActivityAt, now)
		if !isReminderDay(days) {
			continue
		}
		if c.LastReminderAt != nil && models.CheckInDay(*c.LastReminderAt).Equal(today) {
			continue
		}

		log.Infof("[Monitor] Sending %d-day reminder to user %d", days, c.UserID)
		if err := m.emitter.EmitReminder(notify.ReminderPayload{
			UserID:       c.UserID,
			Email:        c.Email,
			DaysInactive: days,
		}); err != nil {
			log.Errorf("[Monitor] Failed to emit reminder for user %d: %v", c.UserID, err)
			errs = append(errs, err)
			continue
		}
		if err := m.users.TouchLastReminder(c.UserID, now); err != nil {
			log.Errorf("[Monitor] Failed to stamp reminder for user %d: %v", c.UserID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fireAndEmit transitions the trigger and, on success, queues the release.
// Losing the transition race is not an error; the trigger was cancelled or
// already fired.
func (m *Monitor) fireAndEmit(trigger models.Trigger, from []string) error {
	fired, err := m.lifecycle.Fire(trigger.ID, from)
	if err != nil {
		log.Errorf("[Monitor] Failed to fire trigger %d: %v", trigger.ID, err)
		return err
	}
	if !fired {
		return nil
	}

	vault, err := m.vaults.GetByID(trigger.VaultID)
	if err != nil {
		log.Errorf("[Monitor] Trigger %d fired but vault %d lookup failed: %v", trigger.ID, trigger.VaultID, err)
		return err
	}

	log.Infof("[Monitor] Trigger %d (%s) fired for vault %d", trigger.ID, trigger.TriggerType, trigger.VaultID)
	if err := m.emitter.EmitRelease(notify.ReleasePayload{
		TriggerID: trigger.ID,
		VaultID:   vault.ID,
		VaultName: vault.Name,
		UserID:    vault.UserID,
	}); err != nil {
		log.Errorf("[Monitor] Failed to emit release for trigger %d: %v", trigger.ID, err)
		return err
	}
	return nil
}

func isReminderDay(days int) bool {
	for _, t := range ReminderThresholds {
		if days == t {
			return true
		}
	}
	return false
}
