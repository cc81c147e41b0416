package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Provider     string    `gorm:"size:32" json:"provider,omitempty"`
	ProviderID   string    `gorm:"size:255" json:"-"`
	RegisterIP   string    `gorm:"size:45" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Suggestions []Suggestion `json:"-"`
	Comments    []Comment    `json:"-"`
	Votes       []Vote       `json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the UpdatedAt timestamp.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
