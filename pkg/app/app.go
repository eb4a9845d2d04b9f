package app

import (
	"fmt"
	"log"
	"time"

	"github.com/arnavshah/site-capacity-api/pkg/audit"
	"github.com/arnavshah/site-capacity-api/pkg/auth"
	"github.com/arnavshah/site-capacity-api/pkg/config"
	"github.com/arnavshah/site-capacity-api/pkg/database"
	"github.com/arnavshah/site-capacity-api/pkg/handlers"
	"github.com/arnavshah/site-capacity-api/pkg/notify"
	"github.com/arnavshah/site-capacity-api/pkg/planner"
	"github.com/arnavshah/site-capacity-api/pkg/store"
	"github.com/arnavshah/site-capacity-api/pkg/store/memory"
	"github.com/gin-gonic/gin"
)

const insecureSecret = "dev-only-change-me"

// NewRouter wires the database, planning service and HTTP routes from cfg.
// The server binary and the serverless entry point share it.
func NewRouter(cfg *config.Config) (*gin.Engine, error) {
	dbOpts := database.Options{DatabaseURL: cfg.DatabaseURL, DataPath: cfg.DataPath}
	if cfg.DemoMode {
		dbOpts = database.Options{DataPath: "file::memory:?cache=shared"}
	}
	db, err := database.InitDB(dbOpts)
	if err != nil {
		return nil, err
	}
	if err := auth.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	plan, err := config.LoadPlanning(cfg.PlanningFile)
	if err != nil {
		return nil, err
	}

	var st store.Store
	if cfg.DemoMode {
		mem := memory.New()
		memory.Seed(mem, time.Now())
		st = mem
		log.Printf("Demo mode: planning data is kept in memory")
	} else {
		st = database.NewStore(db)
	}

	opts := planner.Options{
		Calendar:   plan.Calendar(),
		Thresholds: plan.Thresholds,
		Metrics:    cfg.MetricsEnabled,
	}
	var book *audit.Logbook
	if cfg.AuditLogPath != "" {
		book, err = audit.New(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		opts.Audit = book
	}
	if cfg.SlackWebhookURL != "" {
		opts.Notifier = notify.NewSlack(cfg.SlackWebhookURL)
	}

	jwtSecret, masterSecret := cfg.JWTSecret, cfg.APIMasterSecret
	if jwtSecret == "" || masterSecret == "" {
		log.Printf("JWT_SECRET or API_MASTER_SECRET not set, using an insecure development secret")
		if jwtSecret == "" {
			jwtSecret = insecureSecret
		}
		if masterSecret == "" {
			masterSecret = insecureSecret
		}
	}

	h := &handlers.Handler{
		DB:           db,
		Auth:         auth.NewManager(jwtSecret, masterSecret),
		Planner:      planner.New(st, opts),
		Audit:        book,
		DefaultHours: plan.DefaultHours,
		Metrics:      cfg.MetricsEnabled,
	}
	return handlers.NewRouter(h), nil
}
