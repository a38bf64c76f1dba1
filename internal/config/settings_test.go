package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSettings = `
sources:
  booking:
    base_url: https://booking.example.com
  payments:
    base_url: https://payments.example.com
    created_after:
      year: 2025
      month: 6
      day: 1
windows:
  chosen_month:
    month: 6
    year: 2025
    yearly_start_year: 2024
  two_month:
    month1: 6
    month2: 7
    year: 2025
    yearly_start_year: 2024
  last_invoice:
    year: 2025
    yearly_start_year: 2024
sheet:
  site_id: site
  drive_id: drive
  item_id: item
  worksheet: Subscriptions
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings(writeSettings(t, minimalSettings))
	require.NoError(t, err)

	assert.Equal(t, 100, s.Fetch.PageSize)
	assert.Equal(t, 3, s.Fetch.MaxRetries)
	assert.Equal(t, 2, s.Fetch.BaseDelaySeconds)
	assert.Equal(t, "/api/admin/subscriptions", s.Sources.Booking.PlansPath)
	assert.Equal(t, "/api/admin/v2/users/subscriptions", s.Sources.Booking.CustomerSubscriptionsPath)
	assert.Equal(t, "/v1/invoices", s.Sources.Payments.InvoicesPath)
	assert.Equal(t, []string{"active", "canceled"}, s.Rules.AllowedStatuses)
	assert.Equal(t, 2, s.Time.OffsetHours)
	assert.Equal(t, "pl", s.Time.Locale)
	assert.Equal(t, 3, s.Sheet.StartColumn)
	assert.Equal(t, 15000, s.Sheet.ClearRowLimit)
	assert.Equal(t, "A2", s.Sheet.StampCell)
	assert.Equal(t, 0, s.Run.IntervalMinutes)
}

func TestLoadSettings_MissingSheet(t *testing.T) {
	content := `
sources:
  booking:
    base_url: https://booking.example.com
  payments:
    base_url: https://payments.example.com
windows:
  chosen_month:
    month: 6
    year: 2025
    yearly_start_year: 2024
  two_month:
    month1: 6
    month2: 7
    year: 2025
    yearly_start_year: 2024
  last_invoice:
    year: 2025
    yearly_start_year: 2024
`
	_, err := LoadSettings(writeSettings(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid settings")
}

func TestLoadSettings_BadURL(t *testing.T) {
	content := `
sources:
  booking:
    base_url: not-a-url
  payments:
    base_url: https://payments.example.com
windows:
  chosen_month: {month: 6, year: 2025, yearly_start_year: 2024}
  two_month: {month1: 6, month2: 7, year: 2025, yearly_start_year: 2024}
  last_invoice: {year: 2025, yearly_start_year: 2024}
sheet: {site_id: s, drive_id: d, item_id: i, worksheet: W}
`
	_, err := LoadSettings(writeSettings(t, content))
	require.Error(t, err)
}

func TestLoadSettings_FileMissing(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read settings")
}

func TestLoadSettings_ExcludedIDsAndLabels(t *testing.T) {
	content := minimalSettings + `
rules:
  excluded_plan_ids: [260, 231]
  excluded_customer_ids: [9771]
  status_labels:
    active: aktywna
    canceled: anulowana
  interval_labels:
    month: miesięczny
    year: roczny
`
	s, err := LoadSettings(writeSettings(t, content))
	require.NoError(t, err)
	assert.Equal(t, []int64{260, 231}, s.Rules.ExcludedPlanIDs)
	assert.Equal(t, []int64{9771}, s.Rules.ExcludedCustomerIDs)
	assert.Equal(t, "aktywna", s.Rules.StatusLabels["active"])
	assert.Equal(t, "roczny", s.Rules.IntervalLabels["year"])
}
