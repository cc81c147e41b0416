package routes

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tidewell/suggestbox/config"
	"github.com/tidewell/suggestbox/controllers"
	"github.com/tidewell/suggestbox/middleware"
	"github.com/tidewell/suggestbox/services"
	"github.com/tidewell/suggestbox/utils"
)

// SetupRouter wires services, middlewares, and controllers. Dependencies are
// injected so tests can hand in an in-memory database and a fake Redis.
func SetupRouter(cfg config.AppConfig, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	creds := services.NewCredentialStore(db)
	sessions := services.NewSessionManager(
		cfg.SessionSecret,
		time.Duration(cfg.SessionTTLHours)*time.Hour,
		rdb,
		creds,
	)
	suggestions := services.NewSuggestionRepository(db)
	voting := services.NewVotingEngine(db, services.AutoFlagPolicy{
		Enabled:   cfg.AutoFlagEnabled,
		Threshold: cfg.AutoFlagThreshold,
	})

	authController := controllers.NewAuthController(cfg, creds, sessions)
	suggestionController := controllers.NewSuggestionController(suggestions, voting)
	statsController := controllers.NewStatsController(db)
	configController := controllers.NewConfigController(cfg)

	// Every request learns its user (if any) before routing decisions.
	r.Use(middleware.SessionResolver(sessions))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	// Browser form routes. Write actions demand a session and answer
	// anonymous requests with a redirect to /login.
	r.GET("/", suggestionController.Home)
	r.GET("/suggestions/:id", suggestionController.Detail)
	r.GET("/captcha", authController.Captcha)

	limited := r.Group("/")
	limited.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	limited.POST("/signup", authController.Signup)
	limited.POST("/login", authController.Login)
	limited.GET("/oauth/github/login", authController.OAuthRedirect)
	limited.GET("/oauth/github/callback", authController.OAuthCallback)

	r.GET("/logout", authController.Logout)
	r.POST("/logout", authController.Logout)

	authed := r.Group("/")
	authed.Use(middleware.LoginRequired())
	authed.POST("/new-suggestion", suggestionController.Create)
	authed.POST("/new-comment/:id", suggestionController.Comment)
	authed.GET("/new-vote/:id/:dir", suggestionController.Vote)

	// JSON API group for non-browser clients. Same operations, Bearer auth,
	// envelope errors instead of redirects.
	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.LoginAPI)
	authGroup.GET("/captcha", authController.Captcha)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.LogoutAPI)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	suggestionsGroup := api.Group("/suggestions")
	suggestionsGroup.GET("", suggestionController.Home)
	suggestionsGroup.GET("/:id", suggestionController.Detail)
	suggestionsGroup.POST("", middleware.AuthRequired(), suggestionController.CreateAPI)
	suggestionsGroup.POST("/:id/comments", middleware.AuthRequired(), suggestionController.CommentAPI)
	suggestionsGroup.POST("/:id/votes/:dir", middleware.AuthRequired(), suggestionController.VoteAPI)

	api.GET("/stats", statsController.GetStats)
	api.GET("/config/features", configController.GetFeatures)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, 404, 40400, "route not found")
	})

	return r
}
