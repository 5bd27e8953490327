// Package config loads server configuration from the environment, with an
// optional .env file underneath.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/warp/workforce-engine/shift"
	"github.com/warp/workforce-engine/timeoff"
	"go.uber.org/zap"
)

// Config holds application configuration.
type Config struct {
	Port               string
	DatabasePath       string
	DefaultTimezone    string
	DefaultAnnualLeave int
	ReminderSchedule   string
	ReminderEnabled    bool
	IsProduction       bool
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

// LoadConfig reads configuration from environment variables. A .env file in
// the working directory, if present, supplies values the environment lacks.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_PATH", "./data/workforce.db")
	v.SetDefault("DEFAULT_TIMEZONE", shift.DefaultTimezone)
	v.SetDefault("DEFAULT_ANNUAL_LEAVE", timeoff.DefaultAnnualLeaveDays)
	v.SetDefault("REMINDER_SCHEDULE", "*/15 * * * *")
	v.SetDefault("REMINDER_ENABLED", true)
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.AutomaticEnv()

	cfg := &Config{
		Port:               v.GetString("PORT"),
		DatabasePath:       v.GetString("DATABASE_PATH"),
		DefaultTimezone:    v.GetString("DEFAULT_TIMEZONE"),
		DefaultAnnualLeave: v.GetInt("DEFAULT_ANNUAL_LEAVE"),
		ReminderSchedule:   v.GetString("REMINDER_SCHEDULE"),
		ReminderEnabled:    v.GetBool("REMINDER_ENABLED"),
		IsProduction:       v.GetBool("IS_PRODUCTION"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	timeout, err := time.ParseDuration(v.GetString("SHUTDOWN_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q: %w", v.GetString("SHUTDOWN_TIMEOUT"), err)
	}
	cfg.ShutdownTimeout = timeout

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	if c.DefaultAnnualLeave < 0 {
		return fmt.Errorf("DEFAULT_ANNUAL_LEAVE must not be negative, got %d", c.DefaultAnnualLeave)
	}
	if c.ReminderEnabled && strings.TrimSpace(c.ReminderSchedule) == "" {
		return fmt.Errorf("REMINDER_SCHEDULE must be set when reminders are enabled")
	}
	return nil
}

// NewLogger builds the process logger: JSON in production, console otherwise.
func (c *Config) NewLogger() (*zap.Logger, error) {
	if c.IsProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
