package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tidewell/suggestbox/middleware"
	"github.com/tidewell/suggestbox/models"
	"github.com/tidewell/suggestbox/services"
	"github.com/tidewell/suggestbox/utils"
)

const (
	suggestionCachePrefix = "cache:suggestions"
	listCacheKey          = suggestionCachePrefix + ":list"
	listCacheTTL          = time.Minute
	detailCacheTTL        = 5 * time.Minute
)

// SuggestionController serves the suggestion board: listing, detail, creation,
// comments and votes, on both the browser form routes and the JSON API group.
type SuggestionController struct {
	repo   *services.SuggestionRepository
	voting *services.VotingEngine
}

func NewSuggestionController(repo *services.SuggestionRepository, voting *services.VotingEngine) *SuggestionController {
	return &SuggestionController{repo: repo, voting: voting}
}

type suggestionSummary struct {
	models.Suggestion
	Tally services.VoteTally `json:"tally"`
}

type suggestionDetail struct {
	models.Suggestion
	Tally services.VoteTally `json:"tally"`
}

// Home lists all visible suggestions with vote tallies, oldest first.
func (s *SuggestionController) Home(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(listCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	suggestions, err := s.repo.ListVisible()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to list suggestions")
		return
	}

	ids := make([]uint, 0, len(suggestions))
	for _, sg := range suggestions {
		ids = append(ids, sg.ID)
	}
	tallies, err := s.voting.TallyMany(utils.UniqueUint(ids))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to tally votes")
		return
	}

	items := make([]suggestionSummary, 0, len(suggestions))
	for _, sg := range suggestions {
		items = append(items, suggestionSummary{Suggestion: sg, Tally: tallies[sg.ID]})
	}

	payload := gin.H{"suggestions": items}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(listCacheKey, wrapper, listCacheTTL)
	utils.Success(ctx, payload)
}

// Detail shows one suggestion with its comments and tally. Reachable by
// direct link even when flagged.
func (s *SuggestionController) Detail(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	cacheKey := fmt.Sprintf("%s:detail:%d", suggestionCachePrefix, id)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	suggestion, err := s.repo.Get(id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "suggestion not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to get suggestion")
		return
	}

	tally, err := s.voting.Tally(id)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to tally votes")
		return
	}

	payload := gin.H{"suggestion": suggestionDetail{Suggestion: *suggestion, Tally: tally}}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, detailCacheTTL)
	utils.Success(ctx, payload)
}

// Create handles the browser new-suggestion form.
func (s *SuggestionController) Create(ctx *gin.Context) {
	type request struct {
		Title       string `form:"title" binding:"required"`
		Description string `form:"description" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	userID, _ := middleware.CurrentUserID(ctx)
	if _, err := s.repo.Create(userID, req.Title, req.Description); err != nil {
		s.writeCreateError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(suggestionCachePrefix)

	ctx.Redirect(http.StatusSeeOther, "/")
}

// CreateAPI is the JSON variant of Create.
func (s *SuggestionController) CreateAPI(ctx *gin.Context) {
	type request struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	userID, _ := middleware.CurrentUserID(ctx)
	suggestion, err := s.repo.Create(userID, req.Title, req.Description)
	if err != nil {
		s.writeCreateError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(suggestionCachePrefix)

	utils.Success(ctx, gin.H{"suggestion": suggestion})
}

// Comment handles the browser new-comment form and returns to the detail page.
func (s *SuggestionController) Comment(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	type request struct {
		Content string `form:"content" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	userID, _ := middleware.CurrentUserID(ctx)
	if _, err := s.repo.CreateComment(id, userID, req.Content); err != nil {
		s.writeCommentError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(suggestionCachePrefix)

	ctx.Redirect(http.StatusSeeOther, fmt.Sprintf("/suggestions/%d", id))
}

// CommentAPI is the JSON variant of Comment.
func (s *SuggestionController) CommentAPI(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	type request struct {
		Content string `json:"content" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	userID, _ := middleware.CurrentUserID(ctx)
	comment, err := s.repo.CreateComment(id, userID, req.Content)
	if err != nil {
		s.writeCommentError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(suggestionCachePrefix)

	utils.Success(ctx, gin.H{"comment": comment})
}

// Vote handles the browser vote link `/new-vote/:id/:dir` and returns to the
// detail page. A repeat vote in the other direction switches the vote.
func (s *SuggestionController) Vote(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	upVote, ok := parseDirection(ctx)
	if !ok {
		return
	}

	userID, _ := middleware.CurrentUserID(ctx)
	if err := s.voting.CastVote(userID, id, upVote); err != nil {
		s.writeVoteError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(suggestionCachePrefix)

	ctx.Redirect(http.StatusSeeOther, fmt.Sprintf("/suggestions/%d", id))
}

// VoteAPI is the JSON variant of Vote and returns the fresh tally.
func (s *SuggestionController) VoteAPI(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	upVote, ok := parseDirection(ctx)
	if !ok {
		return
	}

	userID, _ := middleware.CurrentUserID(ctx)
	if err := s.voting.CastVote(userID, id, upVote); err != nil {
		s.writeVoteError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(suggestionCachePrefix)

	tally, err := s.voting.Tally(id)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to tally votes")
		return
	}
	utils.Success(ctx, gin.H{"tally": tally})
}

func (s *SuggestionController) writeCreateError(ctx *gin.Context, err error) {
	if errors.Is(err, services.ErrValidation) {
		utils.Error(ctx, http.StatusBadRequest, 40020, err.Error())
		return
	}
	utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to create suggestion")
}

func (s *SuggestionController) writeCommentError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, "suggestion not found")
	case errors.Is(err, services.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40021, err.Error())
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to create comment")
	}
}

func (s *SuggestionController) writeVoteError(ctx *gin.Context, err error) {
	if errors.Is(err, services.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40420, "suggestion not found")
		return
	}
	utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to record vote")
}

func parseID(ctx *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusNotFound, 40420, "suggestion not found")
		return 0, false
	}
	return uint(n), true
}

func parseDirection(ctx *gin.Context) (bool, bool) {
	switch ctx.Param("dir") {
	case "up":
		return true, true
	case "down":
		return false, true
	default:
		utils.Error(ctx, http.StatusBadRequest, 40022, "vote direction must be up or down")
		return false, false
	}
}
