// Package config loads server configuration from environment variables,
// an optional .env file, and CLI flag overrides.
package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all server configuration. Fields are populated by Load.
type Config struct {
	// Bus transport: at least one must be set.
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTTopics    string `env:"MQTT_TOPICS" envDefault:"trdash/#"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"fleetwatch"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	LocalBrokerAddr string `env:"LOCAL_BROKER_ADDR"` // e.g. ":1883"; empty disables the embedded broker

	WatchDir string `env:"WATCH_DIR"` // directory of append-only note files, local/dev bus

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AdminPIN       string `env:"ADMIN_PIN"` // 4-digit PIN; when empty, the stored PIN digest is used, or a one-time PIN is generated and logged at startup
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
	CORSOrigins    string  `env:"CORS_ORIGINS"`
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`

	// Warm-tier history persistence (Postgres).
	DatabaseURL string `env:"DATABASE_URL"`

	// Cold-tier archive (S3-compatible off-box store).
	ArchiveEnabled bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	ArchiveBucket  string `env:"ARCHIVE_BUCKET"`
	ArchivePrefix  string `env:"ARCHIVE_PREFIX" envDefault:"history"`
	ArchiveRegion  string `env:"ARCHIVE_REGION" envDefault:"us-east-1"`

	// On-disk flat-file state.
	StateDir string `env:"STATE_DIR" envDefault:"./state"`

	// Alert dispatch policy.
	SMSOnHigh  bool `env:"SMS_ON_HIGH" envDefault:"true"`
	SMSOnLow   bool `env:"SMS_ON_LOW" envDefault:"true"`
	SMSOnClear bool `env:"SMS_ON_CLEAR" envDefault:"false"`

	DailyEmailHour   int    `env:"DAILY_EMAIL_HOUR" envDefault:"7"`
	DailyEmailMinute int    `env:"DAILY_EMAIL_MINUTE" envDefault:"0"`
	DailyEmailTo     string `env:"DAILY_EMAIL_TO"`

	ViewerSummaryIntervalHours int `env:"VIEWER_SUMMARY_INTERVAL_HOURS" envDefault:"6"`

	HotTierRetentionDays int `env:"HOT_TIER_RETENTION_DAYS" envDefault:"7"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Fixed-capacity table bounds (spec §5: "every collection is
	// fixed-capacity"). MaxTankRecords sizes the fleet's open-addressed
	// index table to the next power of two at or above 2*MaxTankRecords.
	MaxTankRecords              int `env:"MAX_TANK_RECORDS" envDefault:"4096"`
	MaxDeviceRecords            int `env:"MAX_DEVICE_RECORDS" envDefault:"1024"`
	MaxCalibrationEntriesPerTank int `env:"MAX_CALIBRATION_ENTRIES" envDefault:"200"`
}

// Validate checks that at least one bus transport is configured.
func (c *Config) Validate() error {
	if c.MQTTBrokerURL == "" && c.LocalBrokerAddr == "" && c.WatchDir == "" {
		return fmt.Errorf("at least one of MQTT_BROKER_URL, LOCAL_BROKER_ADDR, or WATCH_DIR must be set")
	}
	return nil
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile       string
	HTTPAddr      string
	LogLevel      string
	DatabaseURL   string
	MQTTBrokerURL string
	StateDir      string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.MQTTBrokerURL != "" {
		cfg.MQTTBrokerURL = overrides.MQTTBrokerURL
	}
	if overrides.StateDir != "" {
		cfg.StateDir = overrides.StateDir
	}

	return cfg, nil
}

// GenerateAdminPIN produces a random 4-digit PIN for first-run bootstrap.
func GenerateAdminPIN() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	n := 0
	for _, v := range b {
		n = (n*256 + int(v)) % 10000
	}
	return fmt.Sprintf("%04d", n), nil
}
