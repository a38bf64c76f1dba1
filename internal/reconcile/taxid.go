package reconcile

import (
	"strconv"
	"strings"
)

// TaxID is a tax identifier that is either a formatted string or a numeric
// value. The two upstream conventions differ and must be preserved: a
// CRM-sourced identifier is rendered as a zero-padded 10-digit string, while
// a platform-sourced identifier is kept verbatim when it contains formatting
// characters and coerced to a number when it is pure digits.
type TaxID struct {
	str   string
	num   int64
	isNum bool
	set   bool
}

func StringTaxID(s string) TaxID {
	if s == "" {
		return TaxID{}
	}
	return TaxID{str: s, set: true}
}

func NumericTaxID(n int64) TaxID {
	return TaxID{num: n, isNum: true, set: true}
}

func (t TaxID) IsZero() bool { return !t.set }

// Value returns the sheet representation: nil, an int64 or a string.
func (t TaxID) Value() any {
	if !t.set {
		return nil
	}
	if t.isNum {
		return t.num
	}
	return t.str
}

func (t TaxID) String() string {
	if !t.set {
		return ""
	}
	if t.isNum {
		return strconv.FormatInt(t.num, 10)
	}
	return t.str
}

// NormalizePlatformTaxID applies the booking-platform convention: pure
// digits coerce to a number, anything with formatting characters stays a
// string, empty stays empty.
func NormalizePlatformTaxID(raw string) TaxID {
	s := strings.TrimSpace(raw)
	if s == "" {
		return TaxID{}
	}
	if isDigits(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return NumericTaxID(n)
		}
	}
	return StringTaxID(s)
}

// NormalizeCRMTaxID applies the CRM convention: a numeric identifier is
// rendered as a fixed-width, zero-padded 10-character digit string; string
// identifiers pass through; anything else is empty.
func NormalizeCRMTaxID(raw any) string {
	switch v := raw.(type) {
	case float64:
		if v <= 0 {
			return ""
		}
		return padTaxNumber(strconv.FormatInt(int64(v), 10))
	case int64:
		if v <= 0 {
			return ""
		}
		return padTaxNumber(strconv.FormatInt(v, 10))
	case int:
		if v <= 0 {
			return ""
		}
		return padTaxNumber(strconv.Itoa(v))
	case string:
		return v
	default:
		return ""
	}
}

func padTaxNumber(s string) string {
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
