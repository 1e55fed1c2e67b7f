package proofoflife

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/app/repository"
)

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB, *models.User) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ProofOfLife{}))

	user := &models.User{Name: "testuser", Email: "test@example.com", Password: "secret"}
	require.NoError(t, db.Create(user).Error)

	repos := repository.NewRepositories(db)
	return NewLedger(repos.ProofOfLife, repos.User), db, user
}

func at(day int, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestCheckInFirstTime(t *testing.T) {
	ledger, _, user := newTestLedger(t)
	ledger.WithClock(func() time.Time { return at(1, 9) })

	result, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.StreakCount)
	assert.False(t, result.AlreadyCheckedIn)
	assert.Equal(t, at(1, 0), result.CheckInDate)
}

func TestCheckInSameDayIsIdempotent(t *testing.T) {
	ledger, db, user := newTestLedger(t)
	ledger.WithClock(func() time.Time { return at(1, 9) })

	_, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)

	// Later the same day, nothing changes.
	ledger.WithClock(func() time.Time { return at(1, 22) })
	result, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)
	assert.True(t, result.AlreadyCheckedIn)
	assert.Equal(t, 1, result.StreakCount)

	var count int64
	require.NoError(t, db.Model(&models.ProofOfLife{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCheckInConsecutiveDaysExtendStreak(t *testing.T) {
	ledger, _, user := newTestLedger(t)

	for day := 1; day <= 3; day++ {
		d := day
		ledger.WithClock(func() time.Time { return at(d, 8) })
		result, err := ledger.CheckIn(user.ID)
		require.NoError(t, err)
		assert.Equal(t, day, result.StreakCount)
	}
}

func TestCheckInGapResetsStreak(t *testing.T) {
	ledger, _, user := newTestLedger(t)

	ledger.WithClock(func() time.Time { return at(1, 8) })
	_, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)

	ledger.WithClock(func() time.Time { return at(2, 8) })
	result, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.StreakCount)

	// Day 3 is skipped; day 4 starts over.
	ledger.WithClock(func() time.Time { return at(4, 8) })
	result, err = ledger.CheckIn(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.StreakCount)
}

func TestCheckInTouchesLastActivity(t *testing.T) {
	ledger, db, user := newTestLedger(t)
	now := at(5, 14)
	ledger.WithClock(func() time.Time { return now })

	_, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	require.NotNil(t, stored.LastActivityAt)
	assert.True(t, stored.LastActivityAt.Equal(now))
}

func TestSameDayCheckInStillTouchesLastActivity(t *testing.T) {
	ledger, db, user := newTestLedger(t)

	ledger.WithClock(func() time.Time { return at(1, 9) })
	_, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)

	// A repeated check-in does not change the streak, but it must still move
	// the inactivity clock forward, so a client retrying after a partial
	// failure cannot be left with a stale last_activity_at.
	later := at(1, 17)
	ledger.WithClock(func() time.Time { return later })
	result, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)
	assert.True(t, result.AlreadyCheckedIn)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	require.NotNil(t, stored.LastActivityAt)
	assert.True(t, stored.LastActivityAt.Equal(later))
}

func TestCheckInUsesUTCDayBoundary(t *testing.T) {
	ledger, _, user := newTestLedger(t)

	// 23:30 UTC on day 1 and 00:30 UTC on day 2 are different days.
	ledger.WithClock(func() time.Time { return time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC) })
	_, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)

	ledger.WithClock(func() time.Time { return time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC) })
	result, err := ledger.CheckIn(user.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyCheckedIn)
	assert.Equal(t, 2, result.StreakCount)
}

func TestCurrentStreak(t *testing.T) {
	ledger, _, user := newTestLedger(t)

	streak, lastCheckIn, err := ledger.CurrentStreak(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
	assert.Nil(t, lastCheckIn)

	ledger.WithClock(func() time.Time { return at(1, 8) })
	_, err = ledger.CheckIn(user.ID)
	require.NoError(t, err)

	streak, lastCheckIn, err = ledger.CurrentStreak(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
	require.NotNil(t, lastCheckIn)
	assert.Equal(t, at(1, 0), models.CheckInDay(*lastCheckIn))
}
