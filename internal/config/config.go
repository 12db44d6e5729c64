package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	JWTSecret   string `validate:"required"`
	MongoURI    string `validate:"required"`
	DBName      string `validate:"required"`
	SkipAuth    bool
	Environment string `validate:"oneof=development staging production"`
	AppId       string

	DefaultApprovalMode string `validate:"oneof=MANAGER_AND_GM MANAGER_AND_COO GM_AND_COO MANAGER_ONLY GM_ONLY"`
	AdminListMaxLimit   int64  `validate:"min=1,max=1000"`
	ExportMaxRows       int64  `validate:"min=1,max=100000"`
	ChatWebhookURL      string `validate:"omitempty,url"`
	SideEffectTimeout   time.Duration
	ReminderSchedule    string // standard 5-field cron spec; empty disables reminders
	ReminderAfter       time.Duration
	DefaultLocale       string `validate:"required"`
	CORSOrigins         string
}

var validate = validator.New()

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "hrflow"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "hrflow"),

		DefaultApprovalMode: getEnv("DEFAULT_APPROVAL_MODE", "MANAGER_AND_GM"),
		AdminListMaxLimit:   getEnvInt("ADMIN_LIST_MAX_LIMIT", 200),
		ExportMaxRows:       getEnvInt("EXPORT_MAX_ROWS", 5000),
		ChatWebhookURL:      getEnv("CHAT_WEBHOOK_URL", ""),
		SideEffectTimeout:   getEnvDuration("SIDE_EFFECT_TIMEOUT", 5*time.Second),
		ReminderSchedule:    getEnv("REMINDER_SCHEDULE", "0 9 * * 1-5"),
		ReminderAfter:       getEnvDuration("REMINDER_AFTER", 24*time.Hour),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		CORSOrigins:         getEnv("CORS_ORIGINS", "http://localhost:3000, http://localhost:5173"),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		log.Printf("Ignoring invalid %s=%q", key, value)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Ignoring invalid %s=%q", key, value)
	}
	return fallback
}
