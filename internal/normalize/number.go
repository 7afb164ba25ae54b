package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts an upstream monetary value to float64.
//
// Numbers are taken as-is. Strings follow the Brazilian convention: "." is a
// thousands separator and "," the decimal separator ("1.234,56" → 1234.56);
// a leading "R$" is ignored. Anything unparsable yields fallback.
func ParseAmount(v any, fallback float64) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return fallback
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "R$")
		s = strings.ReplaceAll(s, " ", "")
		if s == "" {
			return fallback
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fallback
		}
		f = parsed
	default:
		return fallback
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return f
}

// ParseInt converts an upstream integer-ish value, rounding numbers.
func ParseInt(v any, fallback int) int {
	if s, ok := v.(string); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i
		}
	}
	f := ParseAmount(v, math.NaN())
	if math.IsNaN(f) {
		return fallback
	}
	return int(math.Round(f))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
