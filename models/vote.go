package models

import "time"

// Vote records a user's vote on a suggestion. The composite unique index on
// (user_id, suggestion_id) guarantees at most one row per pair; repeat votes
// update the direction in place via an ON CONFLICT upsert.
type Vote struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_votes_user_suggestion" json:"user_id"`
	SuggestionID uint      `gorm:"not null;index;uniqueIndex:idx_votes_user_suggestion" json:"suggestion_id"`
	UpVote       bool      `gorm:"not null" json:"up_vote"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
