package models

import (
	"time"
)

// ProofOfLife records one check-in per user per UTC calendar day. The streak
// counter carries how many consecutive days the user has checked in, ending
// at CheckInDate.
type ProofOfLife struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_pol_user_date" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"-"`
	CheckInDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_pol_user_date" json:"check_in_date"`
	StreakCount int       `gorm:"not null;default:1" json:"streak_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CheckInDay returns the UTC calendar day of the given instant, truncated to
// midnight. All ledger date arithmetic goes through this.
func CheckInDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
