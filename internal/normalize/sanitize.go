// Package normalize turns the loosely-typed JSON returned by the Prodata
// vendor into the fixed records of package domain.
//
// Every logical field is resolved through an ordered list of candidate
// upstream keys (see aliases.go); the first key present with a non-empty
// value wins. Untyped JSON never leaves this package.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SanitizeDigits keeps only the ASCII digits of v's textual form.
// nil and composite values yield "".
func SanitizeDigits(v any) string {
	s, ok := scalarString(v)
	if !ok {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// SanitizeString returns v's textual form trimmed, or "" when v is nil,
// blank or composite.
func SanitizeString(v any) string {
	s, ok := scalarString(v)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// present reports whether v counts as a non-empty upstream value.
func present(v any) bool {
	return SanitizeString(v) != ""
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
