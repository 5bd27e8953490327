package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "Africa/Nairobi", cfg.DefaultTimezone)
	assert.Equal(t, 21, cfg.DefaultAnnualLeave)
	assert.True(t, cfg.ReminderEnabled)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_TIMEZONE", "Europe/Paris")
	t.Setenv("DEFAULT_ANNUAL_LEAVE", "25")
	t.Setenv("REMINDER_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "Europe/Paris", cfg.DefaultTimezone)
	assert.Equal(t, 25, cfg.DefaultAnnualLeave)
	assert.False(t, cfg.ReminderEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"DEFAULT_TIMEZONE":     "Mars/Olympus",
		"DEFAULT_ANNUAL_LEAVE": "-1",
		"SHUTDOWN_TIMEOUT":     "soon",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := config.LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &config.Config{IsProduction: true}
	log, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, log)
}
