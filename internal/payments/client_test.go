package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/subsync/internal/config"
	"github.com/edvin/subsync/internal/fetch"
)

func rawInvoice(id string, created int64) map[string]any {
	return map[string]any{
		"id":               id,
		"amount_due":       float64(12900),
		"amount_paid":      float64(12900),
		"amount_remaining": float64(0),
		"created":          float64(created),
		"customer":         "cus_1",
		"subscription":     "sub_1",
		"attempt_count":    float64(1),
		"payment_intent":   "pi_1",
		"status":           "paid",
		"paid":             true,
		"lines": map[string]any{
			"data": []any{
				map[string]any{
					"description": "Pakiet Standard",
					"plan":        map[string]any{"active": true, "interval": "month"},
				},
			},
		},
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.PaymentsSource{
		BaseURL:      baseURL,
		InvoicesPath: "/v1/invoices",
		CreatedAfter: config.Date{Year: 2025, Month: 6, Day: 1},
	}
	return NewClient(zerolog.Nop(), cfg, "sk_test_123", 2, fetch.Options{PageSize: 2})
}

func TestInvoices_SendsBearerAndCreatedFilter(t *testing.T) {
	var gotAuth, gotCreated string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCreated = r.URL.Query().Get("created[gte]")
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}, "has_more": false})
	}))
	defer srv.Close()

	_, _, err := newTestClient(t, srv.URL).Invoices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, want, mustParseInt(t, gotCreated))
}

func TestInvoices_WalksCursorPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("starting_after") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"data":     []any{rawInvoice("in_1", 1750000000), rawInvoice("in_2", 1750086400)},
				"has_more": true,
			})
		case "in_2":
			json.NewEncoder(w).Encode(map[string]any{
				"data":     []any{rawInvoice("in_3", 1750172800)},
				"has_more": false,
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("starting_after"))
		}
	}))
	defer srv.Close()

	invoices, report, err := newTestClient(t, srv.URL).Invoices(context.Background())
	require.NoError(t, err)

	require.Len(t, invoices, 3)
	assert.Equal(t, 3, report.Fetched)
	assert.False(t, report.Truncated)
	assert.Equal(t, "in_3", invoices[2].ID)
}

func TestInvoices_ParsesFields(t *testing.T) {
	created := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data":     []any{rawInvoice("in_1", created.Unix())},
			"has_more": false,
		})
	}))
	defer srv.Close()

	invoices, _, err := newTestClient(t, srv.URL).Invoices(context.Background())
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	inv := invoices[0]
	assert.Equal(t, "in_1", inv.ID)
	assert.Equal(t, 129.0, inv.AmountDue)
	assert.Equal(t, 129.0, inv.AmountPaid)
	assert.Equal(t, 0.0, inv.AmountRemaining)
	assert.Equal(t, "cus_1", inv.CustomerID)
	assert.Equal(t, "sub_1", inv.SubscriptionID)
	assert.Equal(t, int64(1), inv.AttemptCount)
	assert.Equal(t, "pi_1", inv.PaymentIntentID)
	assert.Equal(t, "paid", inv.Status)
	assert.True(t, inv.Paid)
	assert.True(t, inv.IsPaid())
	assert.Equal(t, "Pakiet Standard", inv.Description)
	assert.True(t, inv.PlanActive)
	assert.Equal(t, "month", inv.PlanInterval)

	// 23:30 UTC plus the 2h shift rolls into the next calendar day,
	// truncated to midnight.
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), inv.Created)
}

func TestInvoices_MissingLinesKeepsDefaults(t *testing.T) {
	raw := rawInvoice("in_1", 1750000000)
	raw["lines"] = map[string]any{"data": []any{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{raw}, "has_more": false})
	}))
	defer srv.Close()

	invoices, _, err := newTestClient(t, srv.URL).Invoices(context.Background())
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	assert.Empty(t, invoices[0].Description)
	assert.False(t, invoices[0].PlanActive)
	assert.Empty(t, invoices[0].PlanInterval)
}

func mustParseInt(t *testing.T, s string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return n
}
