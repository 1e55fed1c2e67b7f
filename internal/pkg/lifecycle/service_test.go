package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/entitlements"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Vault{},
		&models.Trigger{},
	))
	return db
}

func seedVault(t *testing.T, db *gorm.DB, triggerType string) *models.Vault {
	t.Helper()
	user := &models.User{
		Name:     "testuser",
		Email:    "test@example.com",
		Password: "secret",
	}
	require.NoError(t, db.Create(user).Error)

	vault := &models.Vault{
		UserID:      user.ID,
		Name:        "Letters",
		TriggerType: triggerType,
	}
	require.NoError(t, db.Create(vault).Error)
	return vault
}

func newTestService(db *gorm.DB, now time.Time) *Service {
	repos := repository.NewRepositories(db)
	return NewService(repos.Trigger, repos.Vault).WithClock(func() time.Time { return now })
}

func TestDaysSince(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		elapsed  time.Duration
		expected int
	}{
		{"Zero", 0, 0},
		{"Under a day", 23 * time.Hour, 0},
		{"Exactly a day", 24 * time.Hour, 1},
		{"Just under 180 days", 180*24*time.Hour - time.Minute, 179},
		{"Exactly 180 days", 180 * 24 * time.Hour, 180},
		{"181 days", 181 * 24 * time.Hour, 181},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysSince(base, base.Add(tt.elapsed)))
		})
	}

	t.Run("Future activity clamps to zero", func(t *testing.T) {
		assert.Equal(t, 0, DaysSince(base.Add(time.Hour), base))
	})
}

func TestArmVaultTriggerInactivity(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()
	svc := newTestService(db, now)
	vault := seedVault(t, db, models.TRIGGER_TYPE_INACTIVITY)

	trigger, err := svc.ArmVaultTrigger(vault, entitlements.PlanFree, TriggerConfig{InactivityDays: 180})
	require.NoError(t, err)
	assert.Equal(t, models.TRIGGER_STATUS_ACTIVE, trigger.Status)
	require.NotNil(t, trigger.InactivityDays)
	assert.Equal(t, 180, *trigger.InactivityDays)
}

func TestArmVaultTriggerReplacesSingleton(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db, time.Now())
	vault := seedVault(t, db, models.TRIGGER_TYPE_INACTIVITY)

	first, err := svc.ArmVaultTrigger(vault, entitlements.PlanFree, TriggerConfig{InactivityDays: 90})
	require.NoError(t, err)
	second, err := svc.ArmVaultTrigger(vault, entitlements.PlanFree, TriggerConfig{InactivityDays: 180})
	require.NoError(t, err)

	var old models.Trigger
	require.NoError(t, db.First(&old, first.ID).Error)
	assert.Equal(t, models.TRIGGER_STATUS_EXPIRED, old.Status)

	var current models.Trigger
	require.NoError(t, db.First(&current, second.ID).Error)
	assert.Equal(t, models.TRIGGER_STATUS_ACTIVE, current.Status)
}

func TestArmVaultTriggerTierGate(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db, time.Now())
	vault := seedVault(t, db, models.TRIGGER_TYPE_SCHEDULED)

	date := time.Now().AddDate(1, 0, 0)
	_, err := svc.ArmVaultTrigger(vault, entitlements.PlanFree, TriggerConfig{ScheduledDate: &date})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	trigger, err := svc.ArmVaultTrigger(vault, entitlements.PlanPremium, TriggerConfig{ScheduledDate: &date})
	require.NoError(t, err)
	assert.Equal(t, models.TRIGGER_STATUS_ACTIVE, trigger.Status)
}

func TestArmVaultTriggerValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db, time.Now())

	vault := seedVault(t, db, models.TRIGGER_TYPE_INACTIVITY)
	_, err := svc.ArmVaultTrigger(vault, entitlements.PlanFree, TriggerConfig{InactivityDays: 0})
	assert.ErrorIs(t, err, ErrValidation)

	vault.TriggerType = "telepathy"
	_, err = svc.ArmVaultTrigger(vault, entitlements.PlanPremium, TriggerConfig{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateManualTriggerSetsDeadline(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(db, now)
	vault := seedVault(t, db, models.TRIGGER_TYPE_MANUAL)

	trigger, err := svc.CreateManualTrigger(vault.UserID, vault.UUID, "", entitlements.PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, models.TRIGGER_STATUS_PENDING, trigger.Status)
	assert.Equal(t, "manual", trigger.Reason)
	require.NotNil(t, trigger.CancellationDeadline)
	assert.True(t, trigger.CancellationDeadline.Equal(now.Add(72*time.Hour)))
}

func TestCreateManualTriggerUnknownVault(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db, time.Now())
	seedVault(t, db, models.TRIGGER_TYPE_MANUAL)

	_, err := svc.CreateManualTrigger(1, "no-such-uuid", "", entitlements.PlanPremium)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateManualTriggerForeignVault(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db, time.Now())
	vault := seedVault(t, db, models.TRIGGER_TYPE_MANUAL)

	// A different user must not see the vault at all.
	_, err := svc.CreateManualTrigger(vault.UserID+1, vault.UUID, "", entitlements.PlanPremium)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelWithinWindow(t *testing.T) {
	db := newTestDB(t)
	armedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(db, armedAt)
	vault := seedVault(t, db, models.TRIGGER_TYPE_MANUAL)

	trigger, err := svc.CreateManualTrigger(vault.UserID, vault.UUID, "", entitlements.PlanPremium)
	require.NoError(t, err)

	// 71 hours in, the window is still open.
	svc.WithClock(func() time.Time { return armedAt.Add(71 * time.Hour) })
	cancelled, err := svc.Cancel(vault.UserID, trigger.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TRIGGER_STATUS_CANCELLED, cancelled.Status)
}

func TestCancelAfterWindow(t *testing.T) {
	db := newTestDB(t)
	armedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(db, armedAt)
	vault := seedVault(t, db, models.TRIGGER_TYPE_MANUAL)

	trigger, err := svc.CreateManualTrigger(vault.UserID, vault.UUID, "", entitlements.PlanPremium)
	require.NoError(t, err)

	svc.WithClock(func() time.Time { return armedAt.Add(73 * time.Hour) })
	_, err = svc.Cancel(vault.UserID, trigger.ID)
	assert.ErrorIs(t, err, ErrWindowExpired)
}

func TestCancelTerminalTrigger(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db, time.Now())
	vault := seedVault(t, db, models.TRIGGER_TYPE_MANUAL)

	trigger, err := svc.CreateManualTrigger(vault.UserID, vault.UUID, "", entitlements.PlanPremium)
	require.NoError(t, err)

	fired, err := svc.Fire(trigger.ID, models.NonTerminalTriggerStatuses())
	require.NoError(t, err)
	require.True(t, fired)

	_, err = svc.Cancel(vault.UserID, trigger.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFireIsConditional(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()
	svc := newTestService(db, now)
	vault := seedVault(t, db, models.TRIGGER_TYPE_MANUAL)

	trigger, err := svc.CreateManualTrigger(vault.UserID, vault.UUID, "", entitlements.PlanPremium)
	require.NoError(t, err)

	_, err = svc.Cancel(vault.UserID, trigger.ID)
	require.NoError(t, err)

	// The sweep loses the race: the cancelled trigger must not fire.
	fired, err := svc.Fire(trigger.ID, models.NonTerminalTriggerStatuses())
	require.NoError(t, err)
	assert.False(t, fired)

	var stored models.Trigger
	require.NoError(t, db.First(&stored, trigger.ID).Error)
	assert.Equal(t, models.TRIGGER_STATUS_CANCELLED, stored.Status)
	assert.Nil(t, stored.TriggeredAt)
}

func TestFireStampsTriggeredAt(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(db, now)
	vault := seedVault(t, db, models.TRIGGER_TYPE_MANUAL)

	trigger, err := svc.CreateManualTrigger(vault.UserID, vault.UUID, "goodbye", entitlements.PlanPremium)
	require.NoError(t, err)

	fired, err := svc.Fire(trigger.ID, []string{models.TRIGGER_STATUS_PENDING})
	require.NoError(t, err)
	require.True(t, fired)

	var stored models.Trigger
	require.NoError(t, db.First(&stored, trigger.ID).Error)
	assert.Equal(t, models.TRIGGER_STATUS_TRIGGERED, stored.Status)
	require.NotNil(t, stored.TriggeredAt)
	assert.True(t, stored.TriggeredAt.Equal(now))
}
