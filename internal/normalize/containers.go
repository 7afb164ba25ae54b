package normalize

import "sort"

// AsRecord returns v as a JSON object, or nil.
func AsRecord(v any) map[string]any {
	rec, _ := v.(map[string]any)
	return rec
}

// FindArray looks for the first non-empty array stored under one of keys.
// The top-level object is depth 1; when no key matches there, nested object
// values are searched (in key order) down to maxDepth.
func FindArray(v any, keys []string, maxDepth int) []any {
	return findArray(v, keys, 1, maxDepth)
}

func findArray(v any, keys []string, depth, maxDepth int) []any {
	rec := AsRecord(v)
	if rec == nil || depth > maxDepth {
		return nil
	}
	for _, k := range keys {
		if arr, ok := rec[k].([]any); ok && len(arr) > 0 {
			return arr
		}
	}
	if depth == maxDepth {
		return nil
	}

	names := make([]string, 0, len(rec))
	for k, child := range rec {
		if _, ok := child.(map[string]any); ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	for _, k := range names {
		if arr := findArray(rec[k], keys, depth+1, maxDepth); arr != nil {
			return arr
		}
	}
	return nil
}

// EnsureArray coerces a payload into a list: arrays pass through, objects
// yield the first array under keys or else themselves, anything else is empty.
func EnsureArray(v any, keys []string) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		for _, k := range keys {
			if arr, ok := t[k].([]any); ok {
				return arr
			}
		}
		return []any{t}
	default:
		return nil
	}
}

// records keeps the object entries of a list.
func records(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec := AsRecord(item); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// withNested returns rec followed by the objects nested under keys.
func withNested(rec map[string]any, keys []string) []map[string]any {
	if rec == nil {
		return nil
	}
	out := []map[string]any{rec}
	for _, k := range keys {
		if child := AsRecord(rec[k]); child != nil {
			out = append(out, child)
		}
	}
	return out
}
