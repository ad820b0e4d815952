// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Backend selection: memory, sqlite or postgres.
	DataBackend  string `envconfig:"DATA_BACKEND" default:"memory"`
	SQLiteDBPath string `envconfig:"SQLITE_DB_PATH" default:"./data/registros.db"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	SeedFile     string `envconfig:"SEED_FILE"`

	AMQP struct {
		URL      string `envconfig:"AMQP_URL"`
		Exchange string `envconfig:"AMQP_EXCHANGE" default:"registros"`
		Queue    string `envconfig:"AMQP_QUEUE" default:"registros_mirror"`
	}

	Google struct {
		SpreadsheetID   string `envconfig:"GOOGLE_SPREADSHEET_ID"`
		SheetName       string `envconfig:"GOOGLE_SHEET_NAME" default:"Registros"`
		CredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE"`
		CredentialsJSON string `envconfig:"GOOGLE_CREDENTIALS_JSON"`
	}

	Auth struct {
		Enabled    bool          `envconfig:"AUTH_ENABLED" default:"false"`
		JWTSecret  string        `envconfig:"AUTH_JWT_SECRET"`
		SessionTTL time.Duration `envconfig:"AUTH_SESSION_TTL" default:"24h"`
		ResetURL   string        `envconfig:"AUTH_RESET_URL"`
	}

	HTTP struct {
		CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
		RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	}

	Cache struct {
		TTL  time.Duration `envconfig:"CACHE_TTL" default:"1m"`
		Size int           `envconfig:"CACHE_SIZE" default:"16"`
	}

	Worker struct {
		ReconcileInterval time.Duration `envconfig:"MIRROR_RECONCILE_INTERVAL" default:"10m"`
	}
}

// Load reads the environment. Call Validate before using the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// AMQPEnabled reports whether record events should be published.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQP.URL) != ""
}

// SheetsEnabled reports whether the Google mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.Google.SpreadsheetID) != ""
}

var (
	validBackends  = []string{"memory", "sqlite", "postgres"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !oneOf(strings.ToLower(c.LogLevel), validLogLevels) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if !oneOf(c.DataBackend, validBackends) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errs = append(errs, "invalid DATABASE_URL: scheme must be 'postgres' or 'postgresql'")
		}
	}

	if c.AMQPEnabled() {
		if u, err := url.Parse(c.AMQP.URL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQP.Exchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.Queue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.Google.SheetName == "" {
			errs = append(errs, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		hasFile := c.Google.CredentialsFile != ""
		if !hasFile && c.Google.CredentialsJSON == "" {
			errs = append(errs, "either GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON must be provided for the sheets mirror")
		}
		if hasFile {
			if _, err := os.Stat(c.Google.CredentialsFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google credentials file does not exist: %s", c.Google.CredentialsFile))
			}
		}
	}

	if c.Auth.Enabled && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, "AUTH_JWT_SECRET must be at least 16 characters when auth is enabled")
	}
	if c.Auth.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.Auth.SessionTTL))
	}

	if c.HTTP.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.HTTP.RateLimitPerMinute))
	}
	if c.Cache.Size < 1 {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must be at least 1", c.Cache.Size))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must be positive", c.Cache.TTL))
	}
	if c.Worker.ReconcileInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.Worker.ReconcileInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
