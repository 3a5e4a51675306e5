package tools

import (
	"encoding/json"
	"math"
)

// Args is a normalized argument bundle: required fields are present and
// absent optional fields already carry their catalog default. JSON numbers
// arrive as float64, catalog defaults as int or float64.
type Args map[string]any

// String returns the string value of key, or "".
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the integer value of key, or 0.
func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(math.Round(f))
		}
	}
	return 0
}

// Float returns the numeric value of key and whether one was present.
func (a Args) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Bool returns the boolean value of key, or false.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Object returns the object value of key, or nil.
func (a Args) Object(key string) map[string]any {
	m, _ := a[key].(map[string]any)
	return m
}

// Strings returns the string items of an array value, skipping non-strings.
func (a Args) Strings(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
