package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edvin/subsync/internal/config"
)

func TestFlatten_NestedObjects(t *testing.T) {
	rec := map[string]any{
		"id":     float64(12),
		"status": "active",
		"user": map[string]any{
			"id":    float64(7),
			"email": "jan@example.com",
			"default_address": map[string]any{
				"name":       "Firma Sp. z o.o.",
				"tax_number": "1234567890",
			},
		},
	}

	flat := Flatten(rec, ".")

	assert.Equal(t, float64(12), flat["id"])
	assert.Equal(t, "active", flat["status"])
	assert.Equal(t, float64(7), flat["user.id"])
	assert.Equal(t, "jan@example.com", flat["user.email"])
	assert.Equal(t, "Firma Sp. z o.o.", flat["user.default_address.name"])
	assert.Equal(t, "1234567890", flat["user.default_address.tax_number"])
}

func TestFlatten_ArraysStayOpaque(t *testing.T) {
	rec := map[string]any{
		"lines": map[string]any{
			"data": []any{map[string]any{"description": "plan"}},
		},
	}
	flat := Flatten(rec, ".")
	assert.Contains(t, flat, "lines.data")
	assert.Len(t, flat["lines.data"], 1)
}

func TestFlatten_NullsPreserved(t *testing.T) {
	rec := map[string]any{
		"user": map[string]any{"default_phone": nil},
	}
	flat := Flatten(rec, ".")
	v, ok := flat["user.default_phone"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestFlatten_DoesNotMutateInput(t *testing.T) {
	rec := map[string]any{"user": map[string]any{"id": float64(1)}}
	Flatten(rec, ".")
	assert.Contains(t, rec, "user")
	assert.NotContains(t, rec, "user.id")
}

func TestStringValue(t *testing.T) {
	rec := map[string]any{"a": "x", "b": nil, "n": float64(5)}
	assert.Equal(t, "x", StringValue(rec, "a"))
	assert.Equal(t, "", StringValue(rec, "b"))
	assert.Equal(t, "", StringValue(rec, "missing"))
	assert.Equal(t, "5", StringValue(rec, "n"))
}

func TestInt64Value(t *testing.T) {
	rec := map[string]any{"f": float64(42), "s": "42", "z": nil}

	v, ok := Int64Value(rec, "f")
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	_, ok = Int64Value(rec, "s")
	assert.False(t, ok)
	_, ok = Int64Value(rec, "z")
	assert.False(t, ok)
	_, ok = Int64Value(rec, "missing")
	assert.False(t, ok)
}

func TestRules_Exclusions(t *testing.T) {
	r := NewRules(config.RuleSettings{
		ExcludedPlanIDs:     []int64{260, 231},
		ExcludedCustomerIDs: []int64{9771},
		AllowedStatuses:     []string{"active", "canceled"},
	})

	assert.True(t, r.PlanExcluded(260))
	assert.False(t, r.PlanExcluded(1))
	assert.True(t, r.CustomerExcluded(9771))
	assert.False(t, r.CustomerExcluded(2))
	assert.True(t, r.StatusAllowed("active"))
	assert.True(t, r.StatusAllowed("canceled"))
	assert.False(t, r.StatusAllowed("initialized"))
}

func TestRules_LabelSubstitution(t *testing.T) {
	r := NewRules(config.RuleSettings{
		StatusLabels:   map[string]string{"active": "aktywna", "canceled": "anulowana"},
		IntervalLabels: map[string]string{"month": "miesięczny", "year": "roczny"},
	})

	assert.Equal(t, "aktywna", r.StatusLabel("active"))
	assert.Equal(t, "anulowana", r.StatusLabel("canceled"))
	assert.Equal(t, "other", r.StatusLabel("other"))
	assert.Equal(t, "roczny", r.IntervalLabel("year"))
	assert.Equal(t, "weekly", r.IntervalLabel("weekly"))
}
