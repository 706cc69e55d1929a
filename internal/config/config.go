// Package config loads VeloType's process configuration from an optional
// YAML file with environment-variable overrides, the same two-phase shape
// the teacher repo uses for its database configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the full process configuration recognised at §6.
type AppConfig struct {
	Port                 int           `yaml:"port"`
	DatabaseURL          string        `yaml:"database_url"`
	AuthSecret           string        `yaml:"auth_secret"`
	EmailHashKey         string        `yaml:"email_hash_key"`
	PIIEncryptionKey     string        `yaml:"pii_encryption_key"`
	DailyResetTimezone   string        `yaml:"daily_reset_timezone"`
	CORSOrigin           string        `yaml:"cors_origin"`
	OAuthGoogleClientID  string        `yaml:"oauth_google_client_id"`
	Environment          string        `yaml:"environment"`
	RevocationStorePath  string        `yaml:"revocation_store_path"`
	QueryTimeout         time.Duration `yaml:"query_timeout"`
}

// Default returns the baseline configuration before env overrides are
// applied, mirroring db.DefaultConfig in the teacher repo.
func Default() AppConfig {
	return AppConfig{
		Port:                4000,
		DailyResetTimezone:  "America/New_York",
		Environment:         "development",
		RevocationStorePath: "revoked_tokens.json",
		QueryTimeout:        10 * time.Second,
	}
}

// Load reads an optional YAML file then applies environment overrides,
// exactly as the teacher's LoadAppConfig does for db.Config.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(c *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		c.AuthSecret = v
	}
	if v := os.Getenv("EMAIL_HASH_KEY"); v != "" {
		c.EmailHashKey = v
	}
	if v := os.Getenv("PII_ENCRYPTION_KEY"); v != "" {
		c.PIIEncryptionKey = v
	}
	if v := os.Getenv("DAILY_RESET_TIMEZONE"); v != "" {
		c.DailyResetTimezone = v
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		c.CORSOrigin = v
	}
	if v := os.Getenv("OAUTH_GOOGLE_CLIENT_ID"); v != "" {
		c.OAuthGoogleClientID = v
	}
	if v := os.Getenv("VELOTYPE_ENV"); v != "" {
		c.Environment = v
	}

	// EMAIL_HASH_KEY and PII_ENCRYPTION_KEY fall back to AUTH_SECRET per §6.
	if c.EmailHashKey == "" {
		c.EmailHashKey = c.AuthSecret
	}
	if c.PIIEncryptionKey == "" {
		c.PIIEncryptionKey = c.AuthSecret
	}
}

// Validate enforces §6's startup requirements: AUTH_SECRET is required
// outside development, and DAILY_RESET_TIMEZONE must be a loadable IANA
// zone.
func (c *AppConfig) Validate() error {
	if c.Environment != "development" && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required outside development")
	}
	if _, err := time.LoadLocation(c.DailyResetTimezone); err != nil {
		return fmt.Errorf("invalid DAILY_RESET_TIMEZONE %q: %w", c.DailyResetTimezone, err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

// CORSAllowed reports whether origin is permitted by the configured
// comma-separated allow list. A bare "*" entry allows any origin; every
// other entry must equal the origin exactly (no partial wildcards).
func (c *AppConfig) CORSAllowed(origin string) bool {
	if c.CORSOrigin == "" {
		return false
	}
	for _, pattern := range strings.Split(c.CORSOrigin, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "*" || pattern == origin {
			return true
		}
	}
	return false
}

// StorageEnabled reports whether a database is configured; when false,
// routes depending on storage must return a database-unavailable error per
// §6.
func (c *AppConfig) StorageEnabled() bool {
	return c.DatabaseURL != ""
}
