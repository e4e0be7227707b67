package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const envPrefix = "LASKUTIN_"

type Config struct {
	Port            string
	DBPath          string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	// WSOrigins are extra host patterns allowed to open the live feed.
	WSOrigins []string
	Billing   BillingConfig
	Snapshot  SnapshotConfig
	Mail      MailConfig
}

// MailConfig holds Postmark credentials for invoice notices.
type MailConfig struct {
	PostmarkToken string
	From          string
}

// BillingConfig controls the scheduled annual billing run.
type BillingConfig struct {
	// Schedule is a standard five-field cron spec. Empty disables the run.
	Schedule string
	// SnapshotFirst takes a snapshot before each scheduled run.
	SnapshotFirst bool
}

type SnapshotConfig struct {
	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	Passphrase  string
	Retention   time.Duration
}

// Enabled reports whether snapshots can be taken and uploaded.
func (c SnapshotConfig) Enabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.Passphrase != ""
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first; variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "laskutin.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		WSOrigins:       getEnvList("WS_ORIGINS"),
		Billing: BillingConfig{
			Schedule:      getEnv("BILLING_SCHEDULE", ""),
			SnapshotFirst: getEnvBool("BILLING_SNAPSHOT_FIRST", true),
		},
		Snapshot: SnapshotConfig{
			S3Endpoint:  getEnv("SNAPSHOT_S3_ENDPOINT", ""),
			S3Bucket:    getEnv("SNAPSHOT_S3_BUCKET", ""),
			S3Region:    getEnv("SNAPSHOT_S3_REGION", "auto"),
			S3AccessKey: getEnv("SNAPSHOT_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("SNAPSHOT_S3_SECRET_KEY", ""),
			Passphrase:  getEnv("SNAPSHOT_PASSPHRASE", ""),
			Retention:   getEnvDuration("SNAPSHOT_RETENTION", 90*24*time.Hour),
		},
		Mail: MailConfig{
			PostmarkToken: getEnv("POSTMARK_TOKEN", ""),
			From:          getEnv("MAIL_FROM", ""),
		},
	}

	if cfg.Billing.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Billing.Schedule); err != nil {
			return Config{}, fmt.Errorf("%sBILLING_SCHEDULE: %w", envPrefix, err)
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(envPrefix+key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
