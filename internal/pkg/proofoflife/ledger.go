package proofoflife

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/app/repository"
)

// CheckInResult is what a check-in returns to the caller.
type CheckInResult struct {
	StreakCount      int       `json:"streak_count"`
	CheckInDate      time.Time `json:"check_in_date"`
	AlreadyCheckedIn bool      `json:"already_checked_in"`
}

// Ledger tracks daily proof-of-life check-ins and the resulting streaks.
// Day boundaries are UTC calendar dates.
type Ledger struct {
	records repository.ProofOfLifeRepository
	users   repository.UserRepository
	now     func() time.Time
}

// NewLedger creates a proof-of-life ledger over the given repositories.
func NewLedger(records repository.ProofOfLifeRepository, users repository.UserRepository) *Ledger {
	return &Ledger{records: records, users: users, now: time.Now}
}

// WithClock overrides the ledger clock. Intended for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// CheckIn records today's proof of life for the user. Checking in twice on
// the same day leaves the streak unchanged. A check-in on the day after the
// previous one extends the streak; any gap resets it to 1. Every successful
// call, same-day repeats included, resets the user's inactivity clock.
func (l *Ledger) CheckIn(userID uint) (*CheckInResult, error) {
	now := l.now()
	today := models.CheckInDay(now)

	if existing, err := l.records.GetByUserAndDate(userID, today); err == nil {
		// The streak is settled for today, but the activity touch may have
		// failed on the first attempt. A retry still resets the clock.
		if err := l.users.TouchLastActivity(userID, now); err != nil {
			return nil, err
		}
		return &CheckInResult{
			StreakCount:      existing.StreakCount,
			CheckInDate:      existing.CheckInDate,
			AlreadyCheckedIn: true,
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	streak := 1
	if latest, err := l.records.GetLatestForUser(userID); err == nil {
		yesterday := today.AddDate(0, 0, -1)
		if models.CheckInDay(latest.CheckInDate).Equal(yesterday) {
			streak = latest.StreakCount + 1
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record := &models.ProofOfLife{
		UserID:      userID,
		CheckInDate: today,
		StreakCount: streak,
	}
	if err := l.records.Upsert(record); err != nil {
		return nil, err
	}
	if err := l.users.TouchLastActivity(userID, now); err != nil {
		return nil, err
	}

	return &CheckInResult{StreakCount: streak, CheckInDate: today}, nil
}

// CurrentStreak returns the user's latest recorded streak, or zero when the
// user has never checked in.
func (l *Ledger) CurrentStreak(userID uint) (int, *time.Time, error) {
	latest, err := l.records.GetLatestForUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	date := latest.CheckInDate
	return latest.StreakCount, &date, nil
}
