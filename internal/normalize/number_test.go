package normalize_test

import (
	"encoding/json"
	"testing"

	"github.com/boddenberg/iptu-bfa-go/internal/normalize"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		fallback float64
		want     float64
	}{
		{"brazilian thousands and decimals", "1.234,56", 0, 1234.56},
		{"brazilian zero", "0,00", 0, 0},
		{"currency prefix", "R$ 1.000,10", 0, 1000.10},
		{"unparsable uses fallback", "abc", -1, -1},
		{"blank uses fallback", "  ", 7, 7},
		{"native number unchanged", 1234.5, 0, 1234.5},
		{"json number", json.Number("99.9"), 0, 99.9},
		{"nil uses fallback", nil, 3, 3},
		{"composite uses fallback", map[string]any{"v": 1}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize.ParseAmount(tt.in, tt.fallback); got != tt.want {
				t.Errorf("ParseAmount(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	if got := normalize.ParseInt("12", 0); got != 12 {
		t.Errorf("expected 12, got %d", got)
	}
	if got := normalize.ParseInt(json.Number("3"), 0); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := normalize.ParseInt("x", 5); got != 5 {
		t.Errorf("expected fallback 5, got %d", got)
	}
}

func TestSanitizers(t *testing.T) {
	if got := normalize.SanitizeDigits("123.456.789-09"); got != "12345678909" {
		t.Errorf("SanitizeDigits = %q", got)
	}
	if got := normalize.SanitizeDigits(nil); got != "" {
		t.Errorf("SanitizeDigits(nil) = %q", got)
	}
	if got := normalize.SanitizeDigits(json.Number("42")); got != "42" {
		t.Errorf("SanitizeDigits(json.Number) = %q", got)
	}
	if got := normalize.SanitizeString("  Rua A  "); got != "Rua A" {
		t.Errorf("SanitizeString = %q", got)
	}
	if got := normalize.SanitizeString([]any{"x"}); got != "" {
		t.Errorf("SanitizeString(composite) = %q", got)
	}
}
