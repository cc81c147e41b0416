package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tidewell/suggestbox/models"
	"github.com/tidewell/suggestbox/utils"
)

// StatsController provides aggregate board statistics.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns counts for users, suggestions, comments and votes.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount int64
	var suggestionCount int64
	var commentCount int64
	var voteCount int64

	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}
	if err := s.db.Model(&models.Suggestion{}).Count(&suggestionCount).Error; err != nil {
		suggestionCount = 0
	}
	if err := s.db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}
	if err := s.db.Model(&models.Vote{}).Count(&voteCount).Error; err != nil {
		voteCount = 0
	}

	utils.Success(ctx, gin.H{
		"users":       userCount,
		"suggestions": suggestionCount,
		"comments":    commentCount,
		"votes":       voteCount,
	})
}
