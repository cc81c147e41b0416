package services

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tidewell/suggestbox/models"
)

// AutoFlagPolicy controls automatic hiding of heavily downvoted suggestions.
// Disabled by default.
type AutoFlagPolicy struct {
	Enabled   bool
	Threshold int
}

// VoteTally is the aggregated vote state of one suggestion.
type VoteTally struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}

// VotingEngine records votes and applies the auto-flag policy. One row per
// (user, suggestion) pair; a repeat vote overwrites direction atomically via
// ON CONFLICT, so two concurrent votes from the same user can never produce
// two rows.
type VotingEngine struct {
	db     *gorm.DB
	policy AutoFlagPolicy
}

func NewVotingEngine(db *gorm.DB, policy AutoFlagPolicy) *VotingEngine {
	if policy.Threshold <= 0 {
		policy.Threshold = 3
	}
	return &VotingEngine{db: db, policy: policy}
}

// CastVote records or updates the caller's vote on a suggestion. Voting on a
// missing suggestion returns ErrNotFound. When the auto-flag policy is on,
// the downvote count is re-read inside the same transaction and the
// suggestion flagged once it reaches the threshold.
func (e *VotingEngine) CastVote(userID, suggestionID uint, upVote bool) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Suggestion{}).Where("id = ?", suggestionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		now := time.Now()
		vote := models.Vote{
			UserID:       userID,
			SuggestionID: suggestionID,
			UpVote:       upVote,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "suggestion_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"up_vote":    upVote,
				"updated_at": now,
			}),
		}).Create(&vote).Error
		if err != nil {
			return err
		}

		if !e.policy.Enabled || upVote {
			return nil
		}

		var downs int64
		err = tx.Model(&models.Vote{}).
			Where("suggestion_id = ? AND up_vote = ?", suggestionID, false).
			Count(&downs).Error
		if err != nil {
			return err
		}
		if downs >= int64(e.policy.Threshold) {
			return tx.Model(&models.Suggestion{}).
				Where("id = ?", suggestionID).
				Update("flagged", true).Error
		}
		return nil
	})
}

// Tally returns the up/down vote counts for a suggestion.
func (e *VotingEngine) Tally(suggestionID uint) (VoteTally, error) {
	var tally VoteTally
	err := e.db.Model(&models.Vote{}).
		Where("suggestion_id = ? AND up_vote = ?", suggestionID, true).
		Count(&tally.Up).Error
	if err != nil {
		return tally, err
	}
	err = e.db.Model(&models.Vote{}).
		Where("suggestion_id = ? AND up_vote = ?", suggestionID, false).
		Count(&tally.Down).Error
	if err != nil {
		return tally, err
	}
	return tally, nil
}

// TallyMany returns tallies for a set of suggestions in one pass. Used by the
// listing page to avoid per-row queries.
func (e *VotingEngine) TallyMany(suggestionIDs []uint) (map[uint]VoteTally, error) {
	out := make(map[uint]VoteTally, len(suggestionIDs))
	if len(suggestionIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		SuggestionID uint
		UpVote       bool
		N            int64
	}
	err := e.db.Model(&models.Vote{}).
		Select("suggestion_id, up_vote, COUNT(*) AS n").
		Where("suggestion_id IN ?", suggestionIDs).
		Group("suggestion_id, up_vote").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		t := out[row.SuggestionID]
		if row.UpVote {
			t.Up = row.N
		} else {
			t.Down = row.N
		}
		out[row.SuggestionID] = t
	}
	return out, nil
}
