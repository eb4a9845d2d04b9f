package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/site-capacity-api/pkg/auth"
	"github.com/arnavshah/site-capacity-api/pkg/config"
)

func main() {
	config.LoadEnvFile()

	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <integration-name>")
		os.Exit(1)
	}

	name := os.Args[1]
	cfg := config.Load()
	if cfg.APIMasterSecret == "" {
		fmt.Println("Error: API_MASTER_SECRET not found in .env")
		os.Exit(1)
	}

	key := auth.NewManager(cfg.JWTSecret, cfg.APIMasterSecret).GenerateHMACKey(name)
	fmt.Printf("Generated Key for %s:\n%s\n", name, key)
}
