package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tidewell/suggestbox/models"
)

func newVotingFixture(t *testing.T, policy AutoFlagPolicy) (*VotingEngine, *SuggestionRepository, *CredentialStore, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewVotingEngine(db, policy), NewSuggestionRepository(db), NewCredentialStore(db), db
}

func TestCastVoteAndTally(t *testing.T) {
	engine, repo, creds, _ := newVotingFixture(t, AutoFlagPolicy{})
	alice := mustRegister(t, creds, "alice")
	bob := mustRegister(t, creds, "bob")
	suggestion, err := repo.Create(alice.ID, "idea", "desc")
	require.NoError(t, err)

	require.NoError(t, engine.CastVote(alice.ID, suggestion.ID, true))
	require.NoError(t, engine.CastVote(bob.ID, suggestion.ID, false))

	tally, err := engine.Tally(suggestion.ID)
	require.NoError(t, err)
	assert.Equal(t, VoteTally{Up: 1, Down: 1}, tally)
}

func TestRepeatVoteSwitchesDirection(t *testing.T) {
	engine, repo, creds, db := newVotingFixture(t, AutoFlagPolicy{})
	alice := mustRegister(t, creds, "alice")
	suggestion, err := repo.Create(alice.ID, "idea", "desc")
	require.NoError(t, err)

	require.NoError(t, engine.CastVote(alice.ID, suggestion.ID, true))
	require.NoError(t, engine.CastVote(alice.ID, suggestion.ID, false))
	require.NoError(t, engine.CastVote(alice.ID, suggestion.ID, false))

	// Never more than one row per (user, suggestion), whatever the sequence.
	var count int64
	require.NoError(t, db.Model(&models.Vote{}).
		Where("user_id = ? AND suggestion_id = ?", alice.ID, suggestion.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	tally, err := engine.Tally(suggestion.ID)
	require.NoError(t, err)
	assert.Equal(t, VoteTally{Up: 0, Down: 1}, tally)
}

func suggestionFlagged(t *testing.T, db *gorm.DB, id uint) bool {
	t.Helper()
	var suggestion models.Suggestion
	require.NoError(t, db.First(&suggestion, id).Error)
	return suggestion.Flagged
}

func TestCastVoteMissingSuggestion(t *testing.T) {
	engine, _, creds, _ := newVotingFixture(t, AutoFlagPolicy{})
	alice := mustRegister(t, creds, "alice")

	err := engine.CastVote(alice.ID, 42, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAutoFlagAtThreshold(t *testing.T) {
	engine, repo, creds, db := newVotingFixture(t, AutoFlagPolicy{Enabled: true, Threshold: 3})
	author := mustRegister(t, creds, "author")
	suggestion, err := repo.Create(author.ID, "divisive idea", "desc")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		voter := mustRegister(t, creds, fmt.Sprintf("voter%d", i))
		require.NoError(t, engine.CastVote(voter.ID, suggestion.ID, false))

		assert.Equal(t, i == 2, suggestionFlagged(t, db, suggestion.ID), "after %d downvotes", i+1)
	}

	visible, err := repo.ListVisible()
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestAutoFlagDisabledNeverFlags(t *testing.T) {
	engine, repo, creds, db := newVotingFixture(t, AutoFlagPolicy{Enabled: false, Threshold: 1})
	author := mustRegister(t, creds, "author")
	suggestion, err := repo.Create(author.ID, "idea", "desc")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		voter := mustRegister(t, creds, fmt.Sprintf("voter%d", i))
		require.NoError(t, engine.CastVote(voter.ID, suggestion.ID, false))
	}

	assert.False(t, suggestionFlagged(t, db, suggestion.ID))
}

func TestUpvotesNeverFlag(t *testing.T) {
	engine, repo, creds, db := newVotingFixture(t, AutoFlagPolicy{Enabled: true, Threshold: 1})
	author := mustRegister(t, creds, "author")
	suggestion, err := repo.Create(author.ID, "idea", "desc")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		voter := mustRegister(t, creds, fmt.Sprintf("voter%d", i))
		require.NoError(t, engine.CastVote(voter.ID, suggestion.ID, true))
	}

	assert.False(t, suggestionFlagged(t, db, suggestion.ID))
}

func TestTallyMany(t *testing.T) {
	engine, repo, creds, _ := newVotingFixture(t, AutoFlagPolicy{})
	alice := mustRegister(t, creds, "alice")
	bob := mustRegister(t, creds, "bob")

	first, err := repo.Create(alice.ID, "first", "desc")
	require.NoError(t, err)
	second, err := repo.Create(alice.ID, "second", "desc")
	require.NoError(t, err)

	require.NoError(t, engine.CastVote(alice.ID, first.ID, true))
	require.NoError(t, engine.CastVote(bob.ID, first.ID, true))
	require.NoError(t, engine.CastVote(alice.ID, second.ID, false))

	tallies, err := engine.TallyMany([]uint{first.ID, second.ID})
	require.NoError(t, err)
	assert.Equal(t, VoteTally{Up: 2, Down: 0}, tallies[first.ID])
	assert.Equal(t, VoteTally{Up: 0, Down: 1}, tallies[second.ID])
}
