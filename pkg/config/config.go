package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the process configuration read from the environment
type Config struct {
	Port            string
	GinMode         string
	DatabaseURL     string
	DataPath        string
	DemoMode        bool
	JWTSecret       string
	APIMasterSecret string
	AdminUsername   string
	AdminPassword   string
	SlackWebhookURL string
	AuditLogPath    string
	PlanningFile    string
	MetricsEnabled  bool
}

// LoadEnvFile loads the first .env found in the working directory or its parents
func LoadEnvFile() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads the configuration from the environment
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8000"),
		GinMode:         getEnv("GIN_MODE", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DataPath:        getEnv("DATA_PATH", "planning.db"),
		DemoMode:        getBool("DEMO_MODE", false),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		APIMasterSecret: getEnv("API_MASTER_SECRET", ""),
		AdminUsername:   getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "admin123"),
		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		AuditLogPath:    getEnv("AUDIT_LOG_PATH", "logs/audit.log"),
		PlanningFile:    getEnv("PLANNING_CONFIG", "planning.yaml"),
		MetricsEnabled:  getBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
