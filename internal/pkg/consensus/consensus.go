package consensus

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
)

// Decision is the outcome of evaluating executor votes for a vault.
type Decision string

const (
	DecisionUndecided Decision = "undecided"
	DecisionRelease   Decision = "release"
	DecisionHold      Decision = "hold"
)

// Service aggregates executor votes into a release decision. The trigger
// sweep polls Evaluate for executor-vote triggers and fires only on Release.
type Service struct {
	executors repository.ExecutorRepository
	now       func() time.Time
}

// NewService creates a consensus service over the executor repository.
func NewService(executors repository.ExecutorRepository) *Service {
	return &Service{executors: executors, now: time.Now}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CastVote upserts the voter's current release vote for the vault. The voter
// is resolved by email against the vault's accepted executors; anyone else is
// not entitled to vote.
func (s *Service) CastVote(vaultID uint, voterEmail string, vote bool) (*models.ExecutorVote, error) {
	if voterEmail == "" {
		return nil, fmt.Errorf("%w: voter email required", lifecycle.ErrValidation)
	}

	executor, err := s.executors.GetAcceptedByVaultAndEmail(vaultID, voterEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: not an accepted executor of this vault", lifecycle.ErrPermissionDenied)
		}
		return nil, err
	}

	record := &models.ExecutorVote{
		VaultID:    vaultID,
		ExecutorID: executor.ID,
		Vote:       vote,
		CastAt:     s.now(),
	}
	if err := s.executors.UpsertVote(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Evaluate counts the vault's current votes against its accepted executors.
// Release needs affirmative votes from a strict majority of entitled voters;
// Hold is reached as soon as the negative votes make such a majority
// impossible; anything else is Undecided.
func (s *Service) Evaluate(vaultID uint) (Decision, error) {
	entitled, err := s.executors.ListAcceptedForVault(vaultID)
	if err != nil {
		return DecisionUndecided, err
	}
	if len(entitled) == 0 {
		return DecisionUndecided, nil
	}

	entitledIDs := make(map[uint]struct{}, len(entitled))
	for _, e := range entitled {
		entitledIDs[e.ID] = struct{}{}
	}

	votes, err := s.executors.ListVotesForVault(vaultID)
	if err != nil {
		return DecisionUndecided, err
	}

	var yes, no int
	for _, v := range votes {
		// Votes from since-removed executors no longer count.
		if _, ok := entitledIDs[v.ExecutorID]; !ok {
			continue
		}
		if v.Vote {
			yes++
		} else {
			no++
		}
	}

	total := len(entitled)
	if yes*2 > total {
		return DecisionRelease, nil
	}
	// Even if every remaining voter votes yes, a strict majority is out of
	// reach: the no votes have decided the matter.
	if (total-no)*2 <= total {
		return DecisionHold, nil
	}
	return DecisionUndecided, nil
}
