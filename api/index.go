package handler

import (
	"log"
	"net/http"

	"github.com/arnavshah/site-capacity-api/pkg/app"
	"github.com/arnavshah/site-capacity-api/pkg/config"
	"github.com/gin-gonic/gin"
)

var r *gin.Engine

func init() {
	// Load .env if it exists (for local testing with vercel dev)
	config.LoadEnvFile()

	gin.SetMode(gin.ReleaseMode)
	engine, err := app.NewRouter(config.Load())
	if err != nil {
		log.Fatalf("could not initialize: %v", err)
	}
	r = engine
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
