package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds process-level configuration sourced from the environment.
// Structural settings (endpoints, date windows, exclusion rules, sheet
// layout) live in the YAML settings document, see Settings.
type Config struct {
	// Booking platform (subscription/customer source).
	BookingAPIKey string
	BookingTenant string

	// Payments platform (invoice source).
	PaymentsAPIKey string

	// Azure app registration used for the Graph workbook sink.
	AzureAppID        string
	AzureDirectoryID  string
	AzureClientSecret string

	// CRM session credentials (manual contract source).
	CRMEmail    string
	CRMPassword string

	// Optional S3 run-snapshot archive.
	ArchiveS3Endpoint  string
	ArchiveS3Bucket    string
	ArchiveS3AccessKey string
	ArchiveS3SecretKey string

	SettingsPath   string
	HTTPListenAddr string
	LogLevel       string
	ServiceName    string
}

func Load() (*Config, error) {
	cfg := &Config{
		BookingAPIKey:      getEnv("BOOKING_API_KEY", ""),
		BookingTenant:      getEnv("BOOKING_TENANT", ""),
		PaymentsAPIKey:     getEnv("PAYMENTS_API_KEY", ""),
		AzureAppID:         getEnv("AZURE_APP_ID", ""),
		AzureDirectoryID:   getEnv("AZURE_DIRECTORY_ID", ""),
		AzureClientSecret:  getEnv("AZURE_CLIENT_SECRET", ""),
		CRMEmail:           getEnv("CRM_EMAIL", ""),
		CRMPassword:        getEnv("CRM_PASSWORD", ""),
		ArchiveS3Endpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
		ArchiveS3Bucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
		ArchiveS3AccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
		ArchiveS3SecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),
		SettingsPath:       getEnv("SETTINGS_PATH", "settings.yaml"),
		HTTPListenAddr:     getEnv("HTTP_LISTEN_ADDR", ":8090"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ServiceName:        getEnv("SERVICE_NAME", "syncd"),
	}

	return cfg, nil
}

// Validate checks that every credential required for a sync run is present.
// CRM credentials are optional (the manual-contract source degrades to
// nothing); the S3 archive is optional as a unit.
func (c *Config) Validate() error {
	var missing []string

	if c.BookingAPIKey == "" {
		missing = append(missing, "BOOKING_API_KEY")
	}
	if c.BookingTenant == "" {
		missing = append(missing, "BOOKING_TENANT")
	}
	if c.PaymentsAPIKey == "" {
		missing = append(missing, "PAYMENTS_API_KEY")
	}
	if c.AzureAppID == "" {
		missing = append(missing, "AZURE_APP_ID")
	}
	if c.AzureDirectoryID == "" {
		missing = append(missing, "AZURE_DIRECTORY_ID")
	}
	if c.AzureClientSecret == "" {
		missing = append(missing, "AZURE_CLIENT_SECRET")
	}

	// CRM credentials must be set together or not at all.
	if (c.CRMEmail == "") != (c.CRMPassword == "") {
		return fmt.Errorf("CRM_EMAIL and CRM_PASSWORD must both be set or both be empty")
	}

	if c.ArchiveS3Bucket != "" && (c.ArchiveS3AccessKey == "" || c.ArchiveS3SecretKey == "") {
		return fmt.Errorf("ARCHIVE_S3_BUCKET requires ARCHIVE_S3_ACCESS_KEY and ARCHIVE_S3_SECRET_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CRMEnabled reports whether the manual-contract source is configured.
func (c *Config) CRMEnabled() bool {
	return c.CRMEmail != "" && c.CRMPassword != ""
}

// ArchiveEnabled reports whether the S3 run-snapshot archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
