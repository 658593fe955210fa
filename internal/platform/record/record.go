// Package record defines the open field/value records that flow through the
// dashboard pipeline, and the ordered collections that hold them.
package record

import (
	"encoding/json"
	"strconv"
)

// TimestampField is the key rewritten whenever a record is mutated.
const TimestampField = "timestamp"

// Record is one agent or patient event as a field name to value mapping.
// Values are whatever encoding/json produces with UseNumber enabled:
// string, json.Number, bool, nil, or nested []any / map[string]any.
type Record map[string]any

// Collection is an ordered sequence of records from one source.
type Collection []Record

// Has reports whether the record carries a non-null value for field.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// String returns the canonical string form of field and whether it is present.
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	return Canonical(v), true
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Clone returns a deep copy of the collection. The result is never nil.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for i, r := range c {
		out[i] = r.Clone()
	}
	return out
}

// HasField reports whether any record in the collection carries field.
func (c Collection) HasField(field string) bool {
	for _, r := range c {
		if r.Has(field) {
			return true
		}
	}
	return false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Record:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Canonical renders a scalar value the way category options and filter
// comparisons see it. Nested values render as compact JSON.
func Canonical(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
