package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("BackendTimeout converts seconds to duration", func(t *testing.T) {
		cfg := &Config{BackendTimeoutSeconds: 30}
		assert.Equal(t, 30*time.Second, cfg.BackendTimeout())
	})

	t.Run("SessionTTL converts hours to duration", func(t *testing.T) {
		cfg := &Config{SessionTTLHours: 24}
		assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	})

	t.Run("SpeechCacheTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{SpeechCacheTTLSeconds: 3600}
		assert.Equal(t, time.Hour, cfg.SpeechCacheTTL())
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                    os.Getenv("PORT"),
		"DATABASE_URL":            os.Getenv("DATABASE_URL"),
		"REDIS_URL":               os.Getenv("REDIS_URL"),
		"BACKEND_BASE_URL":        os.Getenv("BACKEND_BASE_URL"),
		"BACKEND_TIMEOUT_SECONDS": os.Getenv("BACKEND_TIMEOUT_SECONDS"),
		"LOG_LEVEL":               os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("BACKEND_BASE_URL")
		os.Unsetenv("BACKEND_TIMEOUT_SECONDS")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, "http://localhost:8000", cfg.BackendBaseURL)
		assert.Equal(t, 30, cfg.BackendTimeoutSeconds)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "3000")
		os.Setenv("BACKEND_BASE_URL", "https://backend.example.com")
		os.Setenv("BACKEND_TIMEOUT_SECONDS", "10")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, "https://backend.example.com", cfg.BackendBaseURL)
		assert.Equal(t, 10*time.Second, cfg.BackendTimeout())
	})

	t.Run("fails without required values", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			BackendBaseURL:        "http://localhost:8000",
			BackendTimeoutSeconds: 30,
			RedisURL:              "redis://localhost:6379",
		}
	}

	t.Run("accepts defaults outside production", func(t *testing.T) {
		assert.NoError(t, base().Validate(false))
	})

	t.Run("rejects non-http backend URL", func(t *testing.T) {
		cfg := base()
		cfg.BackendBaseURL = "localhost:8000"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects non-positive timeout", func(t *testing.T) {
		cfg := base()
		cfg.BackendTimeoutSeconds = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("requires strong session secret in production", func(t *testing.T) {
		cfg := base()
		cfg.SessionSecret = "secret"
		assert.Error(t, cfg.Validate(true))

		cfg.SessionSecret = "yiB0S1D0TSXD0HY0zT1Gm2DBh5G0n7cQx8o4VJ0Zp2A="
		assert.NoError(t, cfg.Validate(true))
	})
}
