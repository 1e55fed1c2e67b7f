package consensus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
)

type fixture struct {
	svc       *Service
	repos     *repository.Repositories
	vault     *models.Vault
	executors []*models.Executor
}

// newFixture seeds a vault with n accepted executors assigned to it.
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Vault{},
		&models.Executor{},
		&models.VaultExecutor{},
		&models.ExecutorVote{},
	))

	user := &models.User{Name: "owner", Email: "owner@example.com", Password: "secret"}
	require.NoError(t, db.Create(user).Error)
	vault := &models.Vault{UserID: user.ID, Name: "Estate", TriggerType: models.TRIGGER_TYPE_EXECUTOR_VOTE}
	require.NoError(t, db.Create(vault).Error)

	repos := repository.NewRepositories(db)

	f := &fixture{
		svc:   NewService(repos.Executor),
		repos: repos,
		vault: vault,
	}
	for i := 0; i < n; i++ {
		executor := &models.Executor{
			UserID: user.ID,
			Email:  fmt.Sprintf("executor%d@example.com", i+1),
			Status: models.EXECUTOR_STATUS_ACCEPTED,
		}
		require.NoError(t, repos.Executor.Create(executor))
		require.NoError(t, repos.Executor.AssignToVault(vault.ID, executor.ID))
		f.executors = append(f.executors, executor)
	}
	return f
}

func TestEvaluateNoExecutors(t *testing.T) {
	f := newFixture(t, 0)
	decision, err := f.svc.Evaluate(f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionUndecided, decision)
}

func TestEvaluateNoVotesYet(t *testing.T) {
	f := newFixture(t, 3)
	decision, err := f.svc.Evaluate(f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionUndecided, decision)
}

func TestEvaluateMajorityYesReleases(t *testing.T) {
	f := newFixture(t, 3)

	for _, executor := range f.executors[:2] {
		_, err := f.svc.CastVote(f.vault.ID, executor.Email, true)
		require.NoError(t, err)
	}

	decision, err := f.svc.Evaluate(f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionRelease, decision)
}

func TestEvaluateMajorityNoHolds(t *testing.T) {
	f := newFixture(t, 3)

	for _, executor := range f.executors[:2] {
		_, err := f.svc.CastVote(f.vault.ID, executor.Email, false)
		require.NoError(t, err)
	}

	decision, err := f.svc.Evaluate(f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionHold, decision)
}

func TestEvaluateSplitStaysUndecided(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.svc.CastVote(f.vault.ID, f.executors[0].Email, true)
	require.NoError(t, err)
	_, err = f.svc.CastVote(f.vault.ID, f.executors[1].Email, false)
	require.NoError(t, err)

	// 1 yes, 1 no, 1 outstanding: the last vote still decides.
	decision, err := f.svc.Evaluate(f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionUndecided, decision)
}

func TestCastVoteRejectsNonExecutors(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.svc.CastVote(f.vault.ID, "stranger@example.com", true)
	assert.ErrorIs(t, err, lifecycle.ErrPermissionDenied)
}

func TestCastVoteRequiresEmail(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.CastVote(f.vault.ID, "", true)
	assert.ErrorIs(t, err, lifecycle.ErrValidation)
}

func TestCastVoteOverwritesPreviousVote(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.CastVote(f.vault.ID, f.executors[0].Email, false)
	require.NoError(t, err)
	_, err = f.svc.CastVote(f.vault.ID, f.executors[0].Email, true)
	require.NoError(t, err)

	votes, err := f.repos.Executor.ListVotesForVault(f.vault.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.True(t, votes[0].Vote)

	decision, err := f.svc.Evaluate(f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionRelease, decision)
}

func TestEvaluateIgnoresRemovedExecutors(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.svc.CastVote(f.vault.ID, f.executors[0].Email, true)
	require.NoError(t, err)
	_, err = f.svc.CastVote(f.vault.ID, f.executors[1].Email, true)
	require.NoError(t, err)

	// Removing a yes voter drops the vote and shrinks the electorate to 2.
	require.NoError(t, f.repos.Executor.Remove(f.executors[0].ID))

	decision, err := f.svc.Evaluate(f.vault.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionUndecided, decision)
}
