package main

import (
	"time"

	"github.com/tidewell/suggestbox/config"
	"github.com/tidewell/suggestbox/models"
	"github.com/tidewell/suggestbox/routes"
	"github.com/tidewell/suggestbox/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Suggestion{}, &models.Comment{}, &models.Vote{})

	rdb := utils.InitRedis(cfg)
	if rdb != nil && cfg.RegisterCaptchaEnabled {
		// Shared captcha store so answers survive instance restarts
		utils.UseRedisCaptchaStore(10 * time.Minute)
	}

	r := routes.SetupRouter(cfg, db, rdb)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
