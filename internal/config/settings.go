package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Settings is the structured settings document. It carries everything the
// pipeline needs that is not a secret: endpoints, exclusion rules, label
// vocabularies, date windows and the sheet layout.
type Settings struct {
	Sources SourceSettings `yaml:"sources" validate:"required"`
	Fetch   FetchSettings  `yaml:"fetch"`
	Rules   RuleSettings   `yaml:"rules"`
	Labels  LabelSettings  `yaml:"labels"`
	Windows WindowSettings `yaml:"windows" validate:"required"`
	Time    TimeSettings   `yaml:"time"`
	Sheet   SheetSettings  `yaml:"sheet" validate:"required"`
	Run     RunSettings    `yaml:"run"`
}

type SourceSettings struct {
	Booking  BookingSource  `yaml:"booking" validate:"required"`
	Payments PaymentsSource `yaml:"payments" validate:"required"`
	CRM      CRMSource      `yaml:"crm"`
}

type BookingSource struct {
	BaseURL                   string `yaml:"base_url" validate:"required,url"`
	PlansPath                 string `yaml:"plans_path"`
	CustomerSubscriptionsPath string `yaml:"customer_subscriptions_path"`
}

type PaymentsSource struct {
	BaseURL      string `yaml:"base_url" validate:"required,url"`
	InvoicesPath string `yaml:"invoices_path"`
	CreatedAfter Date   `yaml:"created_after"`
}

type CRMSource struct {
	BaseURL            string `yaml:"base_url" validate:"omitempty,url"`
	LoginPath          string `yaml:"login_path"`
	ProjectID          string `yaml:"project_id"`
	TargetStatus       string `yaml:"target_status"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// Date is a calendar date in the settings document.
type Date struct {
	Year  int `yaml:"year" validate:"gte=0"`
	Month int `yaml:"month" validate:"gte=0,lte=12"`
	Day   int `yaml:"day" validate:"gte=0,lte=31"`
}

type FetchSettings struct {
	PageSize         int `yaml:"page_size" validate:"gte=1"`
	MaxRetries       int `yaml:"max_retries" validate:"gte=1"`
	BaseDelaySeconds int `yaml:"base_delay_seconds" validate:"gte=1"`
	TimeoutSeconds   int `yaml:"timeout_seconds" validate:"gte=1"`
}

type RuleSettings struct {
	ExcludedPlanIDs     []int64           `yaml:"excluded_plan_ids"`
	ExcludedCustomerIDs []int64           `yaml:"excluded_customer_ids"`
	AllowedStatuses     []string          `yaml:"allowed_statuses"`
	StatusLabels        map[string]string `yaml:"status_labels"`
	IntervalLabels      map[string]string `yaml:"interval_labels"`
}

type LabelSettings struct {
	Undetermined       string            `yaml:"undetermined"`
	ManualContractPlan string            `yaml:"manual_contract_plan"`
	Lifecycle          map[string]string `yaml:"lifecycle"`
}

type WindowSettings struct {
	ChosenMonth ChosenMonthWindow `yaml:"chosen_month" validate:"required"`
	TwoMonth    TwoMonthWindow    `yaml:"two_month" validate:"required"`
	LastInvoice LastInvoiceWindow `yaml:"last_invoice" validate:"required"`
}

type ChosenMonthWindow struct {
	Month           int `yaml:"month" validate:"gte=1,lte=12"`
	Year            int `yaml:"year" validate:"gte=2000"`
	YearlyStartYear int `yaml:"yearly_start_year" validate:"gte=2000"`
}

type TwoMonthWindow struct {
	Month1          int `yaml:"month1" validate:"gte=1,lte=12"`
	Month2          int `yaml:"month2" validate:"gte=1,lte=12"`
	Year            int `yaml:"year" validate:"gte=2000"`
	YearlyStartYear int `yaml:"yearly_start_year" validate:"gte=2000"`
}

type LastInvoiceWindow struct {
	Year            int `yaml:"year" validate:"gte=2000"`
	YearlyStartYear int `yaml:"yearly_start_year" validate:"gte=2000"`
}

type TimeSettings struct {
	// OffsetHours is the fixed offset added to source timestamps before
	// dropping the zone. Not a DST-aware conversion.
	OffsetHours int    `yaml:"offset_hours"`
	Locale      string `yaml:"locale"`
}

type SheetSettings struct {
	SiteID        string `yaml:"site_id" validate:"required"`
	DriveID       string `yaml:"drive_id" validate:"required"`
	ItemID        string `yaml:"item_id" validate:"required"`
	Worksheet     string `yaml:"worksheet" validate:"required"`
	StartColumn   int    `yaml:"start_column" validate:"gte=1"`
	ClearRowLimit int    `yaml:"clear_row_limit" validate:"gte=2"`
	StampCell     string `yaml:"stamp_cell"`
}

type RunSettings struct {
	// IntervalMinutes of 0 means run once and exit.
	IntervalMinutes int `yaml:"interval_minutes" validate:"gte=0"`
}

// LoadSettings reads, defaults and validates the settings document.
func LoadSettings(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	s.applyDefaults()

	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

func (s *Settings) applyDefaults() {
	if s.Fetch.PageSize == 0 {
		s.Fetch.PageSize = 100
	}
	if s.Fetch.MaxRetries == 0 {
		s.Fetch.MaxRetries = 3
	}
	if s.Fetch.BaseDelaySeconds == 0 {
		s.Fetch.BaseDelaySeconds = 2
	}
	if s.Fetch.TimeoutSeconds == 0 {
		s.Fetch.TimeoutSeconds = 30
	}
	if s.Sources.Booking.PlansPath == "" {
		s.Sources.Booking.PlansPath = "/api/admin/subscriptions"
	}
	if s.Sources.Booking.CustomerSubscriptionsPath == "" {
		s.Sources.Booking.CustomerSubscriptionsPath = "/api/admin/v2/users/subscriptions"
	}
	if s.Sources.Payments.InvoicesPath == "" {
		s.Sources.Payments.InvoicesPath = "/v1/invoices"
	}
	if s.Sources.CRM.LoginPath == "" {
		s.Sources.CRM.LoginPath = "/auth/login"
	}
	if len(s.Rules.AllowedStatuses) == 0 {
		s.Rules.AllowedStatuses = []string{"active", "canceled"}
	}
	if s.Labels.Undetermined == "" {
		s.Labels.Undetermined = "Nie można określić"
	}
	if s.Labels.ManualContractPlan == "" {
		s.Labels.ManualContractPlan = "UMOWA TRADYCYJNA"
	}
	if s.Time.OffsetHours == 0 {
		s.Time.OffsetHours = 2
	}
	if s.Time.Locale == "" {
		s.Time.Locale = "pl"
	}
	if s.Sheet.StartColumn == 0 {
		s.Sheet.StartColumn = 3
	}
	if s.Sheet.ClearRowLimit == 0 {
		s.Sheet.ClearRowLimit = 15000
	}
	if s.Sheet.StampCell == "" {
		s.Sheet.StampCell = "A2"
	}
}
