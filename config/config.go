package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is read from a .env file (if present) and the environment.
type Config struct {
	Port           string
	DatabaseURL    string
	GatewayToken   string
	AllowedOrigins string
	LogLevel       string

	R2 R2Config

	ParticipantSyncInterval time.Duration
	SchedulerInterval       time.Duration

	// MissingEnvFile is set when no default .env was found.
	MissingEnvFile bool
}

// R2Config holds the Cloudflare R2 credentials; R2 is optional.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Load reads configuration. It does not fail on missing optional values. An
// explicit envFile must exist; the default .env is optional.
func Load(envFile string) (*Config, error) {
	missingEnvFile := false
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil {
		missingEnvFile = true
	}

	cfg := &Config{
		MissingEnvFile: missingEnvFile,
		Port:           getenv("PORT", "5200"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		GatewayToken:   os.Getenv("GAME_SERVICE_TOKEN"),
		AllowedOrigins: normalizeOrigins(getenv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
	}

	var err error
	if cfg.ParticipantSyncInterval, err = durationEnv("PARTICIPANT_SYNC_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SchedulerInterval, err = durationEnv("SCHEDULER_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireDatabase fails when DATABASE_URL is unset.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return nil
}

// RequireServer fails when anything needed to serve HTTP is unset.
func (c *Config) RequireServer() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if c.GatewayToken == "" {
		return fmt.Errorf("GAME_SERVICE_TOKEN environment variable not set")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

// normalizeOrigins trims each comma-separated origin for fiber's CORS config.
func normalizeOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
