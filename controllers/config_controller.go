package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/tidewell/suggestbox/config"
	"github.com/tidewell/suggestbox/utils"
)

// ConfigController exposes the feature switches a client needs before
// authenticating.
type ConfigController struct {
	cfg config.AppConfig
}

func NewConfigController(cfg config.AppConfig) *ConfigController {
	return &ConfigController{cfg: cfg}
}

// GetFeatures returns the active client-facing feature flags.
func (c *ConfigController) GetFeatures(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"captcha_enabled":      c.cfg.RegisterCaptchaEnabled,
		"github_oauth_enabled": c.cfg.GitHubClientID != "",
		"auto_flag": gin.H{
			"enabled":   c.cfg.AutoFlagEnabled,
			"threshold": c.cfg.AutoFlagThreshold,
		},
	})
}
