package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tidewell/suggestbox/models"
	"github.com/tidewell/suggestbox/utils"
)

const maxTitleLength = 255

// SuggestionRepository owns suggestions and their comments. Votes live in
// VotingEngine; this type only reads them indirectly through tallies.
type SuggestionRepository struct {
	db *gorm.DB
}

func NewSuggestionRepository(db *gorm.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Create stores a new suggestion for the given author. Title is stripped to
// plain text, the description keeps safe HTML.
func (r *SuggestionRepository) Create(userID uint, title, description string) (*models.Suggestion, error) {
	title = strings.TrimSpace(utils.SanitizePlain(title))
	description = strings.TrimSpace(utils.Sanitize(description))
	if title == "" {
		return nil, fmt.Errorf("%w: title required", ErrValidation)
	}
	if len(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title too long", ErrValidation)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: description required", ErrValidation)
	}

	suggestion := &models.Suggestion{
		UserID:      userID,
		Title:       title,
		Description: description,
	}
	if err := r.db.Create(suggestion).Error; err != nil {
		return nil, err
	}
	return suggestion, nil
}

// ListVisible returns all non-flagged suggestions in insertion order with
// authors preloaded.
func (r *SuggestionRepository) ListVisible() ([]models.Suggestion, error) {
	var suggestions []models.Suggestion
	err := r.db.
		Preload("User").
		Where("flagged = ?", false).
		Order("id ASC").
		Find(&suggestions).Error
	if err != nil {
		return nil, err
	}
	return suggestions, nil
}

// Get returns one suggestion with author and comments. Flagged suggestions
// stay reachable by direct link; only the listing hides them.
func (r *SuggestionRepository) Get(id uint) (*models.Suggestion, error) {
	var suggestion models.Suggestion
	err := r.db.
		Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.id ASC")
		}).
		Preload("Comments.User").
		First(&suggestion, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &suggestion, nil
}

// CreateComment appends a comment to an existing suggestion. The existence
// check runs in the same transaction as the insert so a concurrently deleted
// suggestion cannot acquire orphan comments.
func (r *SuggestionRepository) CreateComment(suggestionID, userID uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(utils.Sanitize(content))
	if content == "" {
		return nil, fmt.Errorf("%w: content required", ErrValidation)
	}

	comment := &models.Comment{
		SuggestionID: suggestionID,
		UserID:       userID,
		Content:      content,
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Suggestion{}).Where("id = ?", suggestionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns a suggestion's comments oldest first.
func (r *SuggestionRepository) ListComments(suggestionID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.
		Preload("User").
		Where("suggestion_id = ?", suggestionID).
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}
