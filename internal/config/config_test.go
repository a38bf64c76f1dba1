package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("SETTINGS_PATH")
	os.Unsetenv("HTTP_LISTEN_ADDR")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("SERVICE_NAME")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "settings.yaml", cfg.SettingsPath)
	assert.Equal(t, ":8090", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "syncd", cfg.ServiceName)
}

func TestLoad_AllEnvVars(t *testing.T) {
	t.Setenv("BOOKING_API_KEY", "bk-key")
	t.Setenv("BOOKING_TENANT", "tenant-1")
	t.Setenv("PAYMENTS_API_KEY", "pay-key")
	t.Setenv("AZURE_APP_ID", "app")
	t.Setenv("AZURE_DIRECTORY_ID", "dir")
	t.Setenv("AZURE_CLIENT_SECRET", "secret")
	t.Setenv("CRM_EMAIL", "ops@example.com")
	t.Setenv("CRM_PASSWORD", "pw")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bk-key", cfg.BookingAPIKey)
	assert.Equal(t, "tenant-1", cfg.BookingTenant)
	assert.Equal(t, "pay-key", cfg.PaymentsAPIKey)
	assert.Equal(t, "app", cfg.AzureAppID)
	assert.Equal(t, "dir", cfg.AzureDirectoryID)
	assert.Equal(t, "secret", cfg.AzureClientSecret)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.CRMEnabled())
}

func TestValidate_MissingFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOKING_API_KEY")
	assert.Contains(t, err.Error(), "PAYMENTS_API_KEY")
	assert.Contains(t, err.Error(), "AZURE_APP_ID")
}

func TestValidate_CRMCredentialsMustPair(t *testing.T) {
	cfg := validConfig()
	cfg.CRMEmail = "ops@example.com"
	cfg.CRMPassword = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRM_EMAIL and CRM_PASSWORD")
}

func TestValidate_ArchiveRequiresKeys(t *testing.T) {
	cfg := validConfig()
	cfg.ArchiveS3Bucket = "snapshots"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARCHIVE_S3_BUCKET")
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.CRMEnabled())
	assert.False(t, cfg.ArchiveEnabled())
}

func validConfig() *Config {
	return &Config{
		BookingAPIKey:     "bk",
		BookingTenant:     "tenant",
		PaymentsAPIKey:    "pay",
		AzureAppID:        "app",
		AzureDirectoryID:  "dir",
		AzureClientSecret: "secret",
	}
}
