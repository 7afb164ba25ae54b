package normalize

import "fmt"

// Kind selects how a matched upstream value is parsed.
type Kind int

const (
	KindString Kind = iota
	KindDigits
	KindAmount
	KindInt
)

// Alias maps one logical field to its priority-ordered candidate keys.
type Alias struct {
	Field string
	Keys  []string
	Kind  Kind
}

// Table is the alias list of one output record type.
type Table struct {
	Name    string
	Aliases []Alias
}

// Keys returns the candidate keys of field, or nil when unknown.
func (t Table) Keys(field string) []string {
	for _, a := range t.Aliases {
		if a.Field == field {
			return a.Keys
		}
	}
	return nil
}

// Has reports whether any record carries a non-empty value for field.
func (t Table) Has(field string, records ...map[string]any) bool {
	_, ok := firstMatch(t.Keys(field), records)
	return ok
}

// Extract resolves every alias of the table against records. For each field
// the records are tried in order, and within a record the keys in priority
// order; the first non-empty value wins.
func (t Table) Extract(records ...map[string]any) Values {
	vals := Values{
		strs:    make(map[string]string),
		amounts: make(map[string]float64),
		ints:    make(map[string]int),
	}
	for _, a := range t.Aliases {
		raw, ok := firstMatch(a.Keys, records)
		if !ok {
			continue
		}
		switch a.Kind {
		case KindString:
			vals.strs[a.Field] = SanitizeString(raw)
		case KindDigits:
			vals.strs[a.Field] = SanitizeDigits(raw)
		case KindAmount:
			vals.amounts[a.Field] = ParseAmount(raw, 0)
		case KindInt:
			vals.ints[a.Field] = ParseInt(raw, 0)
		}
	}
	return vals
}

func (t Table) clone() Table {
	out := Table{Name: t.Name, Aliases: make([]Alias, len(t.Aliases))}
	for i, a := range t.Aliases {
		out.Aliases[i] = Alias{Field: a.Field, Kind: a.Kind, Keys: append([]string(nil), a.Keys...)}
	}
	return out
}

func (t *Table) setKeys(field string, keys []string) error {
	for i := range t.Aliases {
		if t.Aliases[i].Field == field {
			t.Aliases[i].Keys = append([]string(nil), keys...)
			return nil
		}
	}
	return fmt.Errorf("table %s has no field %q", t.Name, field)
}

func firstMatch(keys []string, records []map[string]any) (any, bool) {
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, k := range keys {
			if v, ok := rec[k]; ok && present(v) {
				return v, true
			}
		}
	}
	return nil, false
}

// Values holds the parsed fields of one record.
type Values struct {
	strs    map[string]string
	amounts map[string]float64
	ints    map[string]int
}

// Str returns a string or digits field ("" when absent).
func (v Values) Str(field string) string { return v.strs[field] }

// Amount returns a monetary field and whether it was present upstream.
func (v Values) Amount(field string) (float64, bool) {
	f, ok := v.amounts[field]
	return f, ok
}

// AmountOr returns a monetary field, 0 when absent.
func (v Values) AmountOr(field string) float64 { return v.amounts[field] }

// Int returns an integer field and whether it was present upstream.
func (v Values) Int(field string) (int, bool) {
	i, ok := v.ints[field]
	return i, ok
}
