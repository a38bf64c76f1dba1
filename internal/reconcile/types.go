package reconcile

import "time"

// Interval is the billing interval of a plan.
type Interval string

const (
	IntervalMonthly      Interval = "month"
	IntervalYearly       Interval = "year"
	IntervalUndetermined Interval = ""
)

// SubscriptionFact is the canonical reconciled subscription entity, keyed by
// (CustomerID, CustomerSubscriptionID). Manual contract entries carry the
// zero identity and are appended, never merged.
type SubscriptionFact struct {
	CustomerSubscriptionID int64
	PlanID                 int64

	// Status is the source lifecycle state ("active", "canceled");
	// StatusLabel is its sheet vocabulary translation.
	Status      string
	StatusLabel string

	PurchaseDate     *time.Time
	ExpirationDate   *time.Time
	CancellationDate *time.Time

	PlanName      string
	Interval      Interval
	IntervalLabel string

	// PaymentSubscriptionID references the payment platform's subscription.
	PaymentSubscriptionID string

	CustomerID   int64
	CustomerName string
	Email        string
	Phone        string
	TaxID        TaxID
	CompanyName  string

	// Manual marks a CRM-sourced contract with no platform identity.
	Manual bool
}

// HasIdentity reports whether the fact carries a customer-subscription
// identity (manual contracts do not).
func (f *SubscriptionFact) HasIdentity() bool {
	return f.CustomerSubscriptionID != 0
}
