package payments

import (
	"time"

	"github.com/edvin/subsync/internal/normalize"
)

// Invoice is a single billing document from the payments platform. Amounts
// are converted from minor units at parse time; Created keeps calendar-day
// precision because the source renders dates without a time component.
type Invoice struct {
	ID              string
	AmountDue       float64
	AmountPaid      float64
	AmountRemaining float64
	Created         time.Time
	CustomerID      string
	Description     string
	PlanActive      bool
	PlanInterval    string
	SubscriptionID  string
	AttemptCount    int64
	PaymentIntentID string
	Status          string
	Paid            bool
}

// IsPaid reports whether the invoice settled. The status string is the
// source of truth; the boolean flag is only carried for the sheet.
func (i *Invoice) IsPaid() bool {
	return i.Status == "paid"
}

// parseInvoice projects a raw invoice record into Invoice. Line-item detail
// (description, plan attributes) comes from the first line when present;
// records without lines keep zero values rather than failing.
func parseInvoice(rec map[string]any, offset time.Duration) Invoice {
	inv := Invoice{
		ID:              normalize.StringValue(rec, "id"),
		CustomerID:      normalize.StringValue(rec, "customer"),
		SubscriptionID:  normalize.StringValue(rec, "subscription"),
		PaymentIntentID: normalize.StringValue(rec, "payment_intent"),
		Status:          normalize.StringValue(rec, "status"),
	}
	if due, ok := normalize.FloatValue(rec, "amount_due"); ok {
		inv.AmountDue = due / 100
	}
	if paid, ok := normalize.FloatValue(rec, "amount_paid"); ok {
		inv.AmountPaid = paid / 100
	}
	if rem, ok := normalize.FloatValue(rec, "amount_remaining"); ok {
		inv.AmountRemaining = rem / 100
	}
	if attempts, ok := normalize.Int64Value(rec, "attempt_count"); ok {
		inv.AttemptCount = attempts
	}
	if paid, ok := rec["paid"].(bool); ok {
		inv.Paid = paid
	}
	if created, ok := normalize.Int64Value(rec, "created"); ok {
		shifted := time.Unix(created, 0).UTC().Add(offset)
		inv.Created = time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
	}

	if line := firstLine(rec); line != nil {
		inv.Description = normalize.StringValue(line, "description")
		if plan, ok := line["plan"].(map[string]any); ok {
			if active, ok := plan["active"].(bool); ok {
				inv.PlanActive = active
			}
			inv.PlanInterval = normalize.StringValue(plan, "interval")
		}
	}
	return inv
}

func firstLine(rec map[string]any) map[string]any {
	lines, ok := rec["lines"].(map[string]any)
	if !ok {
		return nil
	}
	data, ok := lines["data"].([]any)
	if !ok || len(data) == 0 {
		return nil
	}
	line, _ := data[0].(map[string]any)
	return line
}
