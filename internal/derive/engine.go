package derive

import (
	"time"

	"golang.org/x/text/language"

	"github.com/edvin/subsync/internal/config"
	"github.com/edvin/subsync/internal/payments"
	"github.com/edvin/subsync/internal/reconcile"
)

// StatusSet holds the derived columns computed per subscription each run.
// Nothing here is incremental; the whole set is recomputed from the current
// invoice table and the clock.
type StatusSet struct {
	// ChosenMonthStatus is the invoice status in the configured target
	// month, or the undetermined label when the subscription carries no
	// payment reference.
	ChosenMonthStatus string
	// TwoMonthStatus is "paid" when a paid invoice exists in the
	// configured two-month window, else empty.
	TwoMonthStatus string
	// LastPaidMonth is the localized month name of the most recent paid
	// invoice in the interval-dependent lookback window.
	LastPaidMonth string
	// Lifecycle is the date-derived subscription state label.
	Lifecycle string
}

// Lifecycle state keys, resolved to labels through configuration.
const (
	lifecycleUndetermined   = "undetermined"
	lifecycleActive         = "active"
	lifecycleCanceled       = "canceled"
	lifecycleCanceledActive = "canceled-active"
)

var defaultLifecycleLabels = map[string]string{
	lifecycleUndetermined:   "Nieokreślony",
	lifecycleActive:         "Aktywna",
	lifecycleCanceled:       "Anulowana",
	lifecycleCanceledActive: "Anulowana (aktywna)",
}

var monthNames = map[language.Tag][12]string{
	language.Polish: {
		"styczeń", "luty", "marzec", "kwiecień", "maj", "czerwiec",
		"lipiec", "sierpień", "wrzesień", "październik", "listopad", "grudzień",
	},
	language.English: {
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
	},
}

// Engine computes StatusSet values from the invoice table and configured
// date windows. It is pure apart from the injected clock.
type Engine struct {
	windows config.WindowSettings
	labels  config.LabelSettings
	months  [12]string
	now     func() time.Time
}

func NewEngine(windows config.WindowSettings, labels config.LabelSettings, locale string) *Engine {
	months, ok := monthNames[language.Make(locale)]
	if !ok {
		months = monthNames[language.English]
	}
	return &Engine{
		windows: windows,
		labels:  labels,
		months:  months,
		now:     time.Now,
	}
}

// Derive computes one StatusSet per fact, in fact order. The invoice table
// is indexed by payment subscription reference with input order preserved,
// which fixes the tie-break for same-window invoices.
func (e *Engine) Derive(facts []reconcile.SubscriptionFact, invoices []payments.Invoice) []StatusSet {
	bySub := make(map[string][]payments.Invoice)
	for _, inv := range invoices {
		if inv.SubscriptionID == "" {
			continue
		}
		bySub[inv.SubscriptionID] = append(bySub[inv.SubscriptionID], inv)
	}

	sets := make([]StatusSet, len(facts))
	for i := range facts {
		f := &facts[i]
		if len(invoices) == 0 {
			// With no invoice table at all the invoice columns stay
			// blank for every row, payment reference or not. The
			// undetermined label would misread a degraded source as a
			// per-subscription condition.
			sets[i] = StatusSet{Lifecycle: e.Lifecycle(f)}
			continue
		}
		if f.Manual {
			// Manual contracts carry no payment reference by
			// construction; their invoice columns stay blank.
			sets[i] = StatusSet{Lifecycle: e.Lifecycle(f)}
			continue
		}
		sets[i] = StatusSet{
			ChosenMonthStatus: e.ChosenMonthStatus(f, bySub[f.PaymentSubscriptionID]),
			TwoMonthStatus:    e.TwoMonthStatus(f, bySub[f.PaymentSubscriptionID]),
			LastPaidMonth:     e.LastPaidMonth(f, bySub[f.PaymentSubscriptionID]),
			Lifecycle:         e.Lifecycle(f),
		}
	}
	return sets
}

// ChosenMonthStatus resolves the invoice status in the configured target
// month. Monthly plans match on calendar month and year; yearly plans match
// a window from the first of the target month in the yearly start year up to
// day 30 of the target month in the target year. The day-30 bound is carried
// over from the upstream sheet logic and is intentional.
func (e *Engine) ChosenMonthStatus(f *reconcile.SubscriptionFact, invs []payments.Invoice) string {
	if f.PaymentSubscriptionID == "" {
		return e.labels.Undetermined
	}
	w := e.windows.ChosenMonth

	switch f.Interval {
	case reconcile.IntervalMonthly:
		for _, inv := range invs {
			if inv.Created.Year() == w.Year && int(inv.Created.Month()) == w.Month {
				return inv.Status
			}
		}
	case reconcile.IntervalYearly:
		start := time.Date(w.YearlyStartYear, time.Month(w.Month), 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(w.Year, time.Month(w.Month), 30, 0, 0, 0, 0, time.UTC)
		for _, inv := range invs {
			if inWindow(inv.Created, start, end) {
				return inv.Status
			}
		}
	}
	return ""
}

// TwoMonthStatus reports "paid" when a paid invoice falls in the configured
// two-month window, empty otherwise.
func (e *Engine) TwoMonthStatus(f *reconcile.SubscriptionFact, invs []payments.Invoice) string {
	if f.PaymentSubscriptionID == "" {
		return e.labels.Undetermined
	}
	w := e.windows.TwoMonth

	var start, end time.Time
	switch f.Interval {
	case reconcile.IntervalMonthly:
		start = time.Date(w.Year, time.Month(w.Month1), 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(w.Year, time.Month(w.Month2), 31, 0, 0, 0, 0, time.UTC)
	case reconcile.IntervalYearly:
		start = time.Date(w.YearlyStartYear, time.Month(w.Month2), 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(w.Year, time.Month(w.Month2), 31, 0, 0, 0, 0, time.UTC)
	default:
		return ""
	}

	for _, inv := range invs {
		if inv.IsPaid() && inWindow(inv.Created, start, end) {
			return "paid"
		}
	}
	return ""
}

// LastPaidMonth renders the calendar month of the most recent paid invoice
// in the lookback window as a localized name. Monthly plans look at the
// configured year only; yearly plans look from the first of January of the
// yearly start year onward.
func (e *Engine) LastPaidMonth(f *reconcile.SubscriptionFact, invs []payments.Invoice) string {
	if f.PaymentSubscriptionID == "" {
		return ""
	}
	w := e.windows.LastInvoice

	var latest time.Time
	for _, inv := range invs {
		if !inv.IsPaid() {
			continue
		}
		switch f.Interval {
		case reconcile.IntervalMonthly:
			if inv.Created.Year() != w.Year {
				continue
			}
		case reconcile.IntervalYearly:
			if inv.Created.Before(time.Date(w.YearlyStartYear, time.January, 1, 0, 0, 0, 0, time.UTC)) {
				continue
			}
		}
		if inv.Created.After(latest) {
			latest = inv.Created
		}
	}
	if latest.IsZero() {
		return ""
	}
	return e.months[int(latest.Month())-1]
}

// Lifecycle classifies the subscription from the clock and its expiration
// date alone. The branches are evaluated in order and the first match wins;
// a future expiration therefore always classifies as canceled-but-active
// even though the active branch would also accept it.
func (e *Engine) Lifecycle(f *reconcile.SubscriptionFact) string {
	now := e.now()
	exp := f.ExpirationDate

	switch {
	case !f.HasIdentity():
		return e.lifecycleLabel(lifecycleUndetermined)
	case exp != nil && exp.After(now):
		return e.lifecycleLabel(lifecycleCanceledActive)
	case exp == nil || exp.After(now):
		return e.lifecycleLabel(lifecycleActive)
	case !exp.After(now):
		return e.lifecycleLabel(lifecycleCanceled)
	default:
		return e.lifecycleLabel(lifecycleUndetermined)
	}
}

func (e *Engine) lifecycleLabel(key string) string {
	if label, ok := e.labels.Lifecycle[key]; ok {
		return label
	}
	return defaultLifecycleLabels[key]
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
