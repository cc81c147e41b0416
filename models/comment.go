package models

import "time"

// Comment is a reply to a suggestion. Comments are append-only.
type Comment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SuggestionID uint      `gorm:"index;not null" json:"suggestion_id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `json:"created_at"`

	User User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}
