package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the personal data
// service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string
	// AppRegion is surfaced by the health endpoint: the service exists
	// to keep personal data inside a specific jurisdiction.
	AppRegion   string
	DatabaseURL string
	// EncryptionKeyHex is the AES-256 key as 64 hex characters. When
	// empty, main generates an ephemeral key and warns the operator.
	EncryptionKeyHex string
	// JWTSecret enables bearer-token protection of the API when set.
	JWTSecret string
	// NATSURL enables the audit event stream when set.
	NATSURL          string
	AuditSubjectBase string
	RateLimitMax     int
	RateLimitWindow  time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and an
// optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ANAMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Anama Personal Data API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3001")
	v.SetDefault("app.region", "Kazakhstan")
	v.SetDefault("audit.subject", "audit.events")
	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", "1m")

	windowString := v.GetString("rate_limit.window")
	if windowString == "" {
		windowString = "1m"
	}

	window, err := time.ParseDuration(windowString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		AppRegion:        v.GetString("app.region"),
		DatabaseURL:      v.GetString("database.url"),
		EncryptionKeyHex: v.GetString("encryption.key"),
		JWTSecret:        v.GetString("jwt.secret"),
		NATSURL:          v.GetString("nats.url"),
		AuditSubjectBase: v.GetString("audit.subject"),
		RateLimitMax:     v.GetInt("rate_limit.max"),
		RateLimitWindow:  window,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	return cfg, nil
}
