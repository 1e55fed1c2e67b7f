package repository

import (
	"time"

	"github.com/everkeep/everkeep/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// proofOfLifeRepository implements the ProofOfLifeRepository interface
type proofOfLifeRepository struct {
	db *gorm.DB
}

// NewProofOfLifeRepository creates a new proof-of-life repository instance
func NewProofOfLifeRepository(db *gorm.DB) ProofOfLifeRepository {
	return &proofOfLifeRepository{db: db}
}

// GetByUserAndDate retrieves the check-in record for one calendar day.
func (r *proofOfLifeRepository) GetByUserAndDate(userID uint, day time.Time) (*models.ProofOfLife, error) {
	var record models.ProofOfLife
	err := r.db.
		Where("user_id = ? AND check_in_date = ?", userID, models.CheckInDay(day)).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetLatestForUser retrieves the most recent check-in record for a user.
func (r *proofOfLifeRepository) GetLatestForUser(userID uint) (*models.ProofOfLife, error) {
	var record models.ProofOfLife
	err := r.db.
		Where("user_id = ?", userID).
		Order("check_in_date DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert writes the record for (user_id, check_in_date), updating the streak
// on conflict so a same-day double insert cannot fail.
func (r *proofOfLifeRepository) Upsert(record *models.ProofOfLife) error {
	record.CheckInDate = models.CheckInDay(record.CheckInDate)
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "check_in_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"streak_count"}),
	}).Create(record).Error
}
