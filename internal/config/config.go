package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds application configuration
type Config struct {
	Port            string
	DBConn          string
	LogLevel        string
	JWTSecret       string
	EnableCronJobs  bool
	CronJobSchedule string
	Timezone        string
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SenderEmail     string
	OpsEmail        string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5432 user=test password=test dbname=finance sslmode=disable"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		EnableCronJobs:  getEnvBool("ENABLE_CRON_JOBS", true),
		CronJobSchedule: getEnv("CRON_JOB_SCHEDULE", "0 2 * * *"),
		Timezone:        getEnv("TIMEZONE", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SenderEmail:     getEnv("SENDER_EMAIL", "noreply@ledgerkeep.local"),
		OpsEmail:        getEnv("OPS_EMAIL", ""),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.EnableCronJobs && cfg.CronJobSchedule == "" {
		return nil, fmt.Errorf("CRON_JOB_SCHEDULE is required when cron jobs are enabled")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultVal
	}
	return parsed
}
