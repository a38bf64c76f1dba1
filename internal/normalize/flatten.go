package normalize

import "fmt"

// Flatten collapses nested objects in a decoded JSON record into a single
// level using dotted-path keys, e.g. user.default_address.name. Arrays are
// kept opaque under their parent key. Pure: the input record is not mutated.
func Flatten(record map[string]any, sep string) map[string]any {
	flat := make(map[string]any, len(record))
	flattenInto(flat, "", record, sep)
	return flat
}

func flattenInto(dst map[string]any, prefix string, src map[string]any, sep string) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + sep + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(dst, key, nested, sep)
			continue
		}
		dst[key] = v
	}
}

// FlattenAll flattens every record with the standard "." separator.
func FlattenAll(records []map[string]any) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, rec := range records {
		out[i] = Flatten(rec, ".")
	}
	return out
}

// StringValue returns the field as a string, or "" when absent or null.
func StringValue(record map[string]any, key string) string {
	v, ok := record[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int64Value returns the field as an int64. JSON numbers decode as float64;
// both are accepted. Returns false when absent, null or non-numeric.
func Int64Value(record map[string]any, key string) (int64, bool) {
	v, ok := record[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// FloatValue returns the field as a float64, or false when absent or null.
func FloatValue(record map[string]any, key string) (float64, bool) {
	v, ok := record[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
