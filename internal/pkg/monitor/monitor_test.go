package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/consensus"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
	"github.com/everkeep/everkeep/internal/pkg/notify"
)

// recordingEmitter captures emitted intents instead of queueing them.
type recordingEmitter struct {
	releases  []notify.ReleasePayload
	reminders []notify.ReminderPayload
}

func (e *recordingEmitter) EmitRelease(payload notify.ReleasePayload) error {
	e.releases = append(e.releases, payload)
	return nil
}

func (e *recordingEmitter) EmitReminder(payload notify.ReminderPayload) error {
	e.reminders = append(e.reminders, payload)
	return nil
}

type harness struct {
	db      *gorm.DB
	repos   *repository.Repositories
	emitter *recordingEmitter
	monitor *Monitor
	now     time.Time
	user    *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Vault{},
		&models.Trigger{},
		&models.Executor{},
		&models.VaultExecutor{},
		&models.ExecutorVote{},
	))

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repos := repository.NewRepositories(db)
	emitter := &recordingEmitter{}
	lc := lifecycle.NewService(repos.Trigger, repos.Vault).WithClock(clock)
	cs := consensus.NewService(repos.Executor)
	mon := New(repos, lc, cs, emitter).WithClock(clock)

	user := &models.User{Name: "testuser", Email: "test@example.com", Password: "secret"}
	require.NoError(t, db.Create(user).Error)

	return &harness{db: db, repos: repos, emitter: emitter, monitor: mon, now: now, user: user}
}

func (h *harness) setLastActivity(t *testing.T, daysAgo int) {
	t.Helper()
	at := h.now.Add(-time.Duration(daysAgo) * 24 * time.Hour)
	require.NoError(t, h.repos.User.TouchLastActivity(h.user.ID, at))
}

func (h *harness) seedVault(t *testing.T, triggerType string) *models.Vault {
	t.Helper()
	vault := &models.Vault{UserID: h.user.ID, Name: "Letters", TriggerType: triggerType}
	require.NoError(t, h.db.Create(vault).Error)
	return vault
}

func (h *harness) seedTrigger(t *testing.T, trigger *models.Trigger) *models.Trigger {
	t.Helper()
	require.NoError(t, h.db.Create(trigger).Error)
	return trigger
}

func (h *harness) triggerStatus(t *testing.T, id uint) string {
	t.Helper()
	var stored models.Trigger
	require.NoError(t, h.db.First(&stored, id).Error)
	return stored.Status
}

func intPtr(v int) *int { return &v }

func TestSweepInactivityFiresPastThreshold(t *testing.T) {
	h := newHarness(t)
	h.setLastActivity(t, 181)
	vault := h.seedVault(t, models.TRIGGER_TYPE_INACTIVITY)
	trigger := h.seedTrigger(t, &models.Trigger{
		VaultID:        vault.ID,
		TriggerType:    models.TRIGGER_TYPE_INACTIVITY,
		Status:         models.TRIGGER_STATUS_ACTIVE,
		InactivityDays: intPtr(180),
	})

	require.NoError(t, h.monitor.SweepInactivity())

	assert.Equal(t, models.TRIGGER_STATUS_TRIGGERED, h.triggerStatus(t, trigger.ID))
	require.Len(t, h.emitter.releases, 1)
	assert.Equal(t, trigger.ID, h.emitter.releases[0].TriggerID)
	assert.Equal(t, vault.ID, h.emitter.releases[0].VaultID)
	assert.Equal(t, "Letters", h.emitter.releases[0].VaultName)
}

func TestSweepInactivityExactThresholdFires(t *testing.T) {
	h := newHarness(t)
	h.setLastActivity(t, 180)
	vault := h.seedVault(t, models.TRIGGER_TYPE_INACTIVITY)
	trigger := h.seedTrigger(t, &models.Trigger{
		VaultID:        vault.ID,
		TriggerType:    models.TRIGGER_TYPE_INACTIVITY,
		Status:         models.TRIGGER_STATUS_ACTIVE,
		InactivityDays: intPtr(180),
	})

	require.NoError(t, h.monitor.SweepInactivity())
	assert.Equal(t, models.TRIGGER_STATUS_TRIGGERED, h.triggerStatus(t, trigger.ID))
}

func TestSweepInactivityBelowThresholdDoesNotFire(t *testing.T) {
	h := newHarness(t)
	h.setLastActivity(t, 179)
	vault := h.seedVault(t, models.TRIGGER_TYPE_INACTIVITY)
	trigger := h.seedTrigger(t, &models.Trigger{
		VaultID:        vault.ID,
		TriggerType:    models.TRIGGER_TYPE_INACTIVITY,
		Status:         models.TRIGGER_STATUS_ACTIVE,
		InactivityDays: intPtr(180),
	})

	require.NoError(t, h.monitor.SweepInactivity())

	assert.Equal(t, models.TRIGGER_STATUS_ACTIVE, h.triggerStatus(t, trigger.ID))
	assert.Empty(t, h.emitter.releases)
}

func TestSweepInactivitySkipsCancelledTriggers(t *testing.T) {
	h := newHarness(t)
	h.setLastActivity(t, 365)
	vault := h.seedVault(t, models.TRIGGER_TYPE_INACTIVITY)
	trigger := h.seedTrigger(t, &models.Trigger{
		VaultID:        vault.ID,
		TriggerType:    models.TRIGGER_TYPE_INACTIVITY,
		Status:         models.TRIGGER_STATUS_CANCELLED,
		InactivityDays: intPtr(180),
	})

	require.NoError(t, h.monitor.SweepInactivity())

	assert.Equal(t, models.TRIGGER_STATUS_CANCELLED, h.triggerStatus(t, trigger.ID))
	assert.Empty(t, h.emitter.releases)
}

func TestSweepScheduledFiresDueTriggers(t *testing.T) {
	h := newHarness(t)
	vault := h.seedVault(t, models.TRIGGER_TYPE_SCHEDULED)
	past := h.now.Add(-time.Hour)
	future := h.now.Add(time.Hour)
	due := h.seedTrigger(t, &models.Trigger{
		VaultID:       vault.ID,
		TriggerType:   models.TRIGGER_TYPE_SCHEDULED,
		Status:        models.TRIGGER_STATUS_ACTIVE,
		ScheduledDate: &past,
	})
	notDue := h.seedTrigger(t, &models.Trigger{
		VaultID:       vault.ID,
		TriggerType:   models.TRIGGER_TYPE_SCHEDULED,
		Status:        models.TRIGGER_STATUS_ACTIVE,
		ScheduledDate: &future,
	})

	require.NoError(t, h.monitor.SweepScheduled())

	assert.Equal(t, models.TRIGGER_STATUS_TRIGGERED, h.triggerStatus(t, due.ID))
	assert.Equal(t, models.TRIGGER_STATUS_ACTIVE, h.triggerStatus(t, notDue.ID))
	require.Len(t, h.emitter.releases, 1)
	assert.Equal(t, due.ID, h.emitter.releases[0].TriggerID)
}

func TestSweepManualDeadlinesFiresExpiredWindow(t *testing.T) {
	h := newHarness(t)
	vault := h.seedVault(t, models.TRIGGER_TYPE_MANUAL)
	closed := h.now.Add(-time.Minute)
	open := h.now.Add(time.Hour)
	expired := h.seedTrigger(t, &models.Trigger{
		VaultID:              vault.ID,
		TriggerType:          models.TRIGGER_TYPE_MANUAL,
		Status:               models.TRIGGER_STATUS_PENDING,
		CancellationDeadline: &closed,
	})
	waiting := h.seedTrigger(t, &models.Trigger{
		VaultID:              vault.ID,
		TriggerType:          models.TRIGGER_TYPE_MANUAL,
		Status:               models.TRIGGER_STATUS_PENDING,
		CancellationDeadline: &open,
	})

	require.NoError(t, h.monitor.SweepManualDeadlines())

	assert.Equal(t, models.TRIGGER_STATUS_TRIGGERED, h.triggerStatus(t, expired.ID))
	assert.Equal(t, models.TRIGGER_STATUS_PENDING, h.triggerStatus(t, waiting.ID))
	require.Len(t, h.emitter.releases, 1)
}

func TestSweepExecutorVotesFiresOnRelease(t *testing.T) {
	h := newHarness(t)
	vault := h.seedVault(t, models.TRIGGER_TYPE_EXECUTOR_VOTE)
	trigger := h.seedTrigger(t, &models.Trigger{
		VaultID:     vault.ID,
		TriggerType: models.TRIGGER_TYPE_EXECUTOR_VOTE,
		Status:      models.TRIGGER_STATUS_ACTIVE,
	})

	executor := &models.Executor{UserID: h.user.ID, Email: "exec@example.com", Status: models.EXECUTOR_STATUS_ACCEPTED}
	require.NoError(t, h.repos.Executor.Create(executor))
	require.NoError(t, h.repos.Executor.AssignToVault(vault.ID, executor.ID))
	require.NoError(t, h.repos.Executor.UpsertVote(&models.ExecutorVote{
		VaultID:    vault.ID,
		ExecutorID: executor.ID,
		Vote:       true,
		CastAt:     h.now,
	}))

	require.NoError(t, h.monitor.SweepExecutorVotes())

	assert.Equal(t, models.TRIGGER_STATUS_TRIGGERED, h.triggerStatus(t, trigger.ID))
	require.Len(t, h.emitter.releases, 1)
}

func TestSweepExecutorVotesHoldsWithoutMajority(t *testing.T) {
	h := newHarness(t)
	vault := h.seedVault(t, models.TRIGGER_TYPE_EXECUTOR_VOTE)
	trigger := h.seedTrigger(t, &models.Trigger{
		VaultID:     vault.ID,
		TriggerType: models.TRIGGER_TYPE_EXECUTOR_VOTE,
		Status:      models.TRIGGER_STATUS_ACTIVE,
	})

	require.NoError(t, h.monitor.SweepExecutorVotes())

	assert.Equal(t, models.TRIGGER_STATUS_ACTIVE, h.triggerStatus(t, trigger.ID))
	assert.Empty(t, h.emitter.releases)
}

func TestSweepRemindersOnlyAtThresholds(t *testing.T) {
	tests := []struct {
		name     string
		daysAgo  int
		expected int
	}{
		{"59 days", 59, 0},
		{"60 days", 60, 1},
		{"61 days", 61, 0},
		{"75 days", 75, 1},
		{"85 days", 85, 1},
		{"86 days", 86, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.setLastActivity(t, tt.daysAgo)
			vault := h.seedVault(t, models.TRIGGER_TYPE_INACTIVITY)
			h.seedTrigger(t, &models.Trigger{
				VaultID:        vault.ID,
				TriggerType:    models.TRIGGER_TYPE_INACTIVITY,
				Status:         models.TRIGGER_STATUS_ACTIVE,
				InactivityDays: intPtr(180),
			})

			require.NoError(t, h.monitor.SweepReminders())

			require.Len(t, h.emitter.reminders, tt.expected)
			if tt.expected == 1 {
				assert.Equal(t, h.user.ID, h.emitter.reminders[0].UserID)
				assert.Equal(t, tt.daysAgo, h.emitter.reminders[0].DaysInactive)
			}
		})
	}
}

func TestSweepRemindersSendOncePerDay(t *testing.T) {
	h := newHarness(t)
	h.setLastActivity(t, 60)
	vault := h.seedVault(t, models.TRIGGER_TYPE_INACTIVITY)
	h.seedTrigger(t, &models.Trigger{
		VaultID:        vault.ID,
		TriggerType:    models.TRIGGER_TYPE_INACTIVITY,
		Status:         models.TRIGGER_STATUS_ACTIVE,
		InactivityDays: intPtr(180),
	})

	// An hourly sweep cadence hits the same threshold day repeatedly; only
	// the first pass may emit.
	require.NoError(t, h.monitor.SweepReminders())
	require.NoError(t, h.monitor.SweepReminders())
	require.NoError(t, h.monitor.SweepReminders())

	assert.Len(t, h.emitter.reminders, 1)

	var stored models.User
	require.NoError(t, h.db.First(&stored, h.user.ID).Error)
	require.NotNil(t, stored.LastReminderAt)
	assert.True(t, stored.LastReminderAt.Equal(h.now))
}

func TestSweepRemindersRequireActiveTrigger(t *testing.T) {
	h := newHarness(t)
	h.setLastActivity(t, 60)

	// No armed trigger, so nobody to remind.
	require.NoError(t, h.monitor.SweepReminders())
	assert.Empty(t, h.emitter.reminders)
}

func TestRunOnceCoversAllPhases(t *testing.T) {
	h := newHarness(t)
	h.setLastActivity(t, 181)
	vault := h.seedVault(t, models.TRIGGER_TYPE_INACTIVITY)
	trigger := h.seedTrigger(t, &models.Trigger{
		VaultID:        vault.ID,
		TriggerType:    models.TRIGGER_TYPE_INACTIVITY,
		Status:         models.TRIGGER_STATUS_ACTIVE,
		InactivityDays: intPtr(180),
	})

	require.NoError(t, h.monitor.RunOnce())

	assert.Equal(t, models.TRIGGER_STATUS_TRIGGERED, h.triggerStatus(t, trigger.ID))
	// One release; the trigger is terminal afterwards so no reminder either.
	assert.Len(t, h.emitter.releases, 1)
	assert.Empty(t, h.emitter.reminders)
}
