package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime parameter of the engine, sourced from the
// environment (an optional .env file is loaded first for local development).
type Config struct {
	DatabaseURL  string        `envconfig:"DATABASE_URL" required:"true"`
	JWTSecretKey string        `envconfig:"JWT_SECRET_KEY" required:"true"`
	TokenTTL     time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	ServerPort   int           `envconfig:"SERVER_PORT" default:"8080"`

	// ArchiveSweepInterval drives the background job that snapshots
	// finished tournaments to object storage. Zero disables the sweep.
	ArchiveSweepInterval time.Duration `envconfig:"ARCHIVE_SWEEP_INTERVAL" default:"15m"`

	R2AccountID       string `envconfig:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `envconfig:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `envconfig:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `envconfig:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `envconfig:"R2_PUBLIC_BASE_URL"`
}

// ArchivingEnabled reports whether the R2 credentials are complete enough to
// run the archiver.
func (c *Config) ArchivingEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment configuration: %w", err)
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}
	return cfg, nil
}
