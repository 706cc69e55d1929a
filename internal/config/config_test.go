package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "America/New_York", cfg.DailyResetTimezone)
}

func TestValidateRejectsMissingSecretOutsideDev(t *testing.T) {
	cfg := Default()
	cfg.Environment = "production"
	cfg.AuthSecret = ""
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	cfg := Default()
	cfg.DailyResetTimezone = "Not/AZone"
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestEmailHashKeyFallsBackToAuthSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "topsecret")
	t.Setenv("EMAIL_HASH_KEY", "")
	t.Setenv("PII_ENCRYPTION_KEY", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "topsecret", cfg.EmailHashKey)
	assert.Equal(t, "topsecret", cfg.PIIEncryptionKey)
}

func TestCORSAllowed(t *testing.T) {
	cfg := Default()
	cfg.CORSOrigin = "https://velotype.gg,https://*.staging.velotype.gg"
	assert.True(t, cfg.CORSAllowed("https://velotype.gg"))
	assert.False(t, cfg.CORSAllowed("https://evil.example"))

	cfg.CORSOrigin = "*"
	assert.True(t, cfg.CORSAllowed("https://anything.example"))
}
