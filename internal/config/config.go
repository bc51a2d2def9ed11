package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	BackendBaseURL        string `env:"BACKEND_BASE_URL" envDefault:"http://localhost:8000"`
	BackendTimeoutSeconds int    `env:"BACKEND_TIMEOUT_SECONDS" envDefault:"30"`
	SessionSecret         string `env:"SESSION_SECRET" envDefault:"dev-secret-change-me"`
	SessionTTLHours       int    `env:"SESSION_TTL_HOURS" envDefault:"24"`
	SpeechCacheTTLSeconds int    `env:"SPEECH_CACHE_TTL_SECONDS" envDefault:"3600"`
	ChatRateLimitPerMin   int    `env:"CHAT_RATE_LIMIT_PER_MIN" envDefault:"30"`
	StaticDir             string `env:"STATIC_DIR" envDefault:"static/portal"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) SpeechCacheTTL() time.Duration {
	return time.Duration(c.SpeechCacheTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if !strings.HasPrefix(c.BackendBaseURL, "http://") && !strings.HasPrefix(c.BackendBaseURL, "https://") {
		return fmt.Errorf("BACKEND_BASE_URL must be an http(s) URL")
	}

	if c.BackendTimeoutSeconds <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT_SECONDS must be positive")
	}

	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.BackendBaseURL, "http://") {
			log.Warn().Msg("BACKEND_BASE_URL uses http:// (not TLS) in production")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
