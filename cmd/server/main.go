package main

import (
	"log"

	"github.com/arnavshah/site-capacity-api/pkg/app"
	"github.com/arnavshah/site-capacity-api/pkg/config"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load .env if it exists
	// Try root and parent directories for flexibility
	config.LoadEnvFile()
	cfg := config.Load()

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	r, err := app.NewRouter(cfg)
	if err != nil {
		log.Fatalf("could not start: %v", err)
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
