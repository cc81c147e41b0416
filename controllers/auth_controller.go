package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/tidewell/suggestbox/config"
	"github.com/tidewell/suggestbox/middleware"
	"github.com/tidewell/suggestbox/services"
	"github.com/tidewell/suggestbox/utils"
)

// AuthController handles signup, login, logout and the GitHub OAuth flow, for
// both the browser form routes and the JSON API group.
type AuthController struct {
	cfg      config.AppConfig
	creds    *services.CredentialStore
	sessions *services.SessionManager
}

func NewAuthController(cfg config.AppConfig, creds *services.CredentialStore, sessions *services.SessionManager) *AuthController {
	return &AuthController{cfg: cfg, creds: creds, sessions: sessions}
}

func (a *AuthController) sessionTTL() time.Duration {
	return time.Duration(a.cfg.SessionTTLHours) * time.Hour
}

func (a *AuthController) setSessionCookie(ctx *gin.Context, token string) {
	ctx.SetCookie(middleware.SessionCookieName, token, int(a.sessionTTL().Seconds()), "/", "", false, true)
}

func (a *AuthController) clearSessionCookie(ctx *gin.Context) {
	ctx.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
}

// Signup handles the browser registration form. Success sends the user on to
// the login page.
func (a *AuthController) Signup(ctx *gin.Context) {
	type request struct {
		Username      string `form:"username" binding:"required"`
		Password      string `form:"password" binding:"required"`
		CaptchaID     string `form:"captcha_id"`
		CaptchaAnswer string `form:"captcha_answer"`
	}
	var req request
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	if a.cfg.RegisterCaptchaEnabled && !utils.VerifyCaptcha(req.CaptchaID, req.CaptchaAnswer) {
		utils.Error(ctx, http.StatusBadRequest, 40010, "captcha verification failed")
		return
	}

	ip := ctx.ClientIP()
	if !utils.SignupCooldownTry(ip, time.Duration(a.cfg.RegisterAttemptCooldownSec)*time.Second) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many attempts, please wait")
		return
	}
	if !utils.SignupDailyLimitCheck(ip, a.cfg.RegisterMaxPerIPPerDay) {
		utils.Error(ctx, http.StatusTooManyRequests, 42911, "daily registration limit reached")
		return
	}

	if _, err := a.creds.Register(strings.TrimSpace(req.Username), req.Password, ip); err != nil {
		a.writeRegisterError(ctx, err)
		return
	}
	utils.SignupDailyIncrement(ip)

	ctx.Redirect(http.StatusSeeOther, "/login")
}

// Login handles the browser login form and sets the session cookie.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `form:"username" binding:"required"`
		Password string `form:"password" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, err := a.creds.Verify(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		// Wrong username and wrong password are indistinguishable on purpose.
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, err := a.sessions.Start(user.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to start session")
		return
	}

	a.setSessionCookie(ctx, token)
	ctx.Redirect(http.StatusSeeOther, "/")
}

// Logout ends the current session and redirects home. Idempotent: logging out
// twice, or without a session, still lands on the homepage.
func (a *AuthController) Logout(ctx *gin.Context) {
	if token := middleware.CurrentToken(ctx); token != "" {
		a.sessions.End(token)
	}
	a.clearSessionCookie(ctx)
	ctx.Redirect(http.StatusSeeOther, "/")
}

// Register is the JSON API variant of Signup.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username      string `json:"username" binding:"required"`
		Password      string `json:"password" binding:"required"`
		CaptchaID     string `json:"captcha_id"`
		CaptchaAnswer string `json:"captcha_answer"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	if a.cfg.RegisterCaptchaEnabled && !utils.VerifyCaptcha(req.CaptchaID, req.CaptchaAnswer) {
		utils.Error(ctx, http.StatusBadRequest, 40010, "captcha verification failed")
		return
	}

	ip := ctx.ClientIP()
	if !utils.SignupCooldownTry(ip, time.Duration(a.cfg.RegisterAttemptCooldownSec)*time.Second) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many attempts, please wait")
		return
	}
	if !utils.SignupDailyLimitCheck(ip, a.cfg.RegisterMaxPerIPPerDay) {
		utils.Error(ctx, http.StatusTooManyRequests, 42911, "daily registration limit reached")
		return
	}

	user, err := a.creds.Register(strings.TrimSpace(req.Username), req.Password, ip)
	if err != nil {
		a.writeRegisterError(ctx, err)
		return
	}
	utils.SignupDailyIncrement(ip)

	utils.Success(ctx, gin.H{"user": user})
}

// LoginAPI is the JSON API variant of Login; it returns the token instead of
// setting a cookie.
func (a *AuthController) LoginAPI(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, err := a.creds.Verify(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, err := a.sessions.Start(user.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to start session")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// LogoutAPI ends the session carried by the Bearer token. Always succeeds.
func (a *AuthController) LogoutAPI(ctx *gin.Context) {
	if token := middleware.CurrentToken(ctx); token != "" {
		a.sessions.End(token)
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}
	user, err := a.creds.GetUser(userID)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// Captcha issues a new captcha challenge.
func (a *AuthController) Captcha(ctx *gin.Context) {
	id, b64, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "captcha_image": b64})
}

func (a *AuthController) writeRegisterError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDuplicateUsername):
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
	case errors.Is(err, services.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
	}
}

// --- GitHub OAuth ---

func (a *AuthController) oauthConfig() (*oauth2.Config, error) {
	if a.cfg.GitHubClientID == "" || a.cfg.GitHubClientSecret == "" {
		return nil, errors.New("github oauth not configured")
	}
	return &oauth2.Config{
		ClientID:     a.cfg.GitHubClientID,
		ClientSecret: a.cfg.GitHubClientSecret,
		Endpoint:     githuboauth.Endpoint,
		RedirectURL:  strings.TrimRight(a.cfg.OAuthRedirectBase, "/") + "/oauth/github/callback",
		Scopes:       []string{"read:user"},
	}, nil
}

// OAuthRedirect sends the browser to GitHub's authorization page.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	cfg, err := a.oauthConfig()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	ctx.Redirect(http.StatusSeeOther, cfg.AuthCodeURL(state))
}

// OAuthCallback exchanges the authorization code, upserts the account and
// starts a session.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}
	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}

	cfg, err := a.oauthConfig()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	oauthToken, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}

	login, id, err := fetchGitHubUser(cfg, oauthToken)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to fetch github profile")
		return
	}

	user, err := a.creds.UpsertOAuthUser("github", id, login, ctx.ClientIP())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist user")
		return
	}

	token, err := a.sessions.Start(user.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to start session")
		return
	}

	a.setSessionCookie(ctx, token)
	ctx.Redirect(http.StatusSeeOther, "/")
}

func fetchGitHubUser(cfg *oauth2.Config, token *oauth2.Token) (login, id string, err error) {
	client := cfg.Client(context.Background(), token)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("github user endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", err
	}
	if payload.ID == 0 {
		return "", "", errors.New("github profile missing id")
	}
	return payload.Login, fmt.Sprintf("%d", payload.ID), nil
}
