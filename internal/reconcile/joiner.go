package reconcile

import (
	"strings"
	"time"

	"github.com/edvin/subsync/internal/normalize"
)

// Joiner builds the canonical subscription table: a left join of plan
// metadata into customer-subscription records on plan identity, followed by
// exclusion filtering and projection into SubscriptionFact.
type Joiner struct {
	rules  *normalize.Rules
	offset time.Duration
}

// NewJoiner creates a Joiner. offsetHours is the fixed shift applied to
// source timestamps before the zone is dropped; it is a configured constant,
// not a DST-aware conversion.
func NewJoiner(rules *normalize.Rules, offsetHours int) *Joiner {
	return &Joiner{
		rules:  rules,
		offset: time.Duration(offsetHours) * time.Hour,
	}
}

// Join consumes flattened records. Every customer-subscription record is
// retained even without a plan match (interval becomes undetermined); when
// several plan records share an id, the first in input order wins. Output
// order follows customerSubs input order, so repeated runs over the same
// input produce identical tables.
func (j *Joiner) Join(customerSubs, plans []map[string]any) []SubscriptionFact {
	planIndex := make(map[int64]map[string]any, len(plans))
	for _, plan := range plans {
		id, ok := normalize.Int64Value(plan, "id")
		if !ok {
			continue
		}
		if _, exists := planIndex[id]; !exists {
			planIndex[id] = plan
		}
	}

	facts := make([]SubscriptionFact, 0, len(customerSubs))
	for _, rec := range customerSubs {
		planID, _ := normalize.Int64Value(rec, "subscription_id")
		if j.rules.PlanExcluded(planID) {
			continue
		}
		status := normalize.StringValue(rec, "status")
		if !j.rules.StatusAllowed(status) {
			continue
		}
		customerID, _ := normalize.Int64Value(rec, "user.id")
		if j.rules.CustomerExcluded(customerID) {
			continue
		}

		intervalRaw := ""
		if plan, ok := planIndex[planID]; ok {
			intervalRaw = normalize.StringValue(plan, "price.recurring_interval")
		}

		facts = append(facts, j.project(rec, planID, customerID, status, intervalRaw))
	}
	return facts
}

func (j *Joiner) project(rec map[string]any, planID, customerID int64, status, intervalRaw string) SubscriptionFact {
	csID, _ := normalize.Int64Value(rec, "id")

	fact := SubscriptionFact{
		CustomerSubscriptionID: csID,
		PlanID:                 planID,
		Status:                 status,
		StatusLabel:            j.rules.StatusLabel(status),
		PlanName:               normalize.StringValue(rec, "subscription.name"),
		PaymentSubscriptionID:  normalize.StringValue(rec, "stripe_subscription_id"),
		CustomerID:             customerID,
		CustomerName:           joinName(normalize.StringValue(rec, "user.name"), normalize.StringValue(rec, "user.surname")),
		Email:                  normalize.StringValue(rec, "user.email"),
		Phone:                  normalize.StringValue(rec, "user.default_phone.e164"),
		CompanyName:            normalize.StringValue(rec, "user.default_address.name"),
		TaxID:                  NormalizePlatformTaxID(normalize.StringValue(rec, "user.default_address.tax_number")),
	}

	switch intervalRaw {
	case "month":
		fact.Interval = IntervalMonthly
	case "year":
		fact.Interval = IntervalYearly
	default:
		fact.Interval = IntervalUndetermined
	}
	if intervalRaw != "" {
		fact.IntervalLabel = j.rules.IntervalLabel(intervalRaw)
	}

	fact.PurchaseDate = j.parseDate(normalize.StringValue(rec, "created_at"))
	fact.ExpirationDate = j.parseDate(normalize.StringValue(rec, "ends_at"))
	fact.CancellationDate = j.parseDate(normalize.StringValue(rec, "canceled_at"))

	// A lexically canceled subscription must never lack a cancellation date
	// while an expiration exists.
	if fact.CancellationDate == nil && fact.ExpirationDate != nil {
		d := *fact.ExpirationDate
		fact.CancellationDate = &d
	}

	return fact
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate parses a source timestamp, converts it to UTC wall time, applies
// the fixed offset and drops the zone. Unparsable or absent input is nil
// rather than an error.
func (j *Joiner) parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		naive := t.UTC().Add(j.offset)
		naive = time.Date(naive.Year(), naive.Month(), naive.Day(),
			naive.Hour(), naive.Minute(), naive.Second(), 0, time.UTC)
		return &naive
	}
	return nil
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
