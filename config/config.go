package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"portal"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"portal"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	// Objektspeicher für hochgeladene Paper-Dateien ("s3" oder "memory")
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"s3"`
	S3Key         string `envconfig:"S3_KEY"`
	S3Secret      string `envconfig:"S3_SECRET"`
	S3URL         string `envconfig:"S3_URL"`
	S3Region      string `envconfig:"S3_REGION" default:"eu-central-1"`
	S3Bucket      string `envconfig:"S3_BUCKET" default:"papers"`
	S3PublicURL   string `envconfig:"S3_PUBLIC_URL"`

	MaxUploadBytes   int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	AllowedFileTypes string `envconfig:"ALLOWED_FILE_TYPES" default:"pdf,doc,docx"`

	CronSchedule          string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`
	LoginLogRetentionDays int    `envconfig:"LOGIN_LOG_RETENTION_DAYS" default:"180"`

	EventCacheSize int           `envconfig:"EVENT_CACHE_SIZE" default:"256"`
	EventCacheTTL  time.Duration `envconfig:"EVENT_CACHE_TTL" default:"5m"`

	LoginRatePerMinute int `envconfig:"LOGIN_RATE_PER_MINUTE" default:"10"`

	// Optionaler Schlüssel für /metrics (Header X-API-KEY)
	MetricsAPIKey string `envconfig:"METRICS_API_KEY"`
	SeedDefaults  bool   `envconfig:"SEED_DEFAULTS" default:"true"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// IsProduction meldet, ob Fehlerdetails aus Antworten entfernt werden müssen.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// FileTypes liefert die erlaubten Dateiendungen ohne Punkt, kleingeschrieben.
func (c *Config) FileTypes() []string {
	return SplitList(c.AllowedFileTypes)
}

// MinJWTSecretLength ist die Mindestlänge des HS256-Schlüssels.
const MinJWTSecretLength = 32

// Validate prüft Kombinationen, die envconfig allein nicht abbilden kann.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	switch c.StorageDriver {
	case "memory":
	case "s3":
		if c.S3Key == "" || c.S3Secret == "" || c.S3URL == "" {
			return errors.New("STORAGE_DRIVER=s3 requires S3_KEY, S3_SECRET and S3_URL")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SplitList zerlegt eine kommaseparierte Liste (z.B. "pdf, .DOCX") in normalisierte Einträge.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "."))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
