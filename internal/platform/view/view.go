// Package view derives filter options from published collections and answers
// filter queries against them. Nothing in this package mutates its inputs.
package view

import (
	"fmt"
	"slices"

	"github.com/winniio/dashboard/internal/platform/record"
)

// SchemaWarning signals that a filter field is absent from every record, so
// the unfiltered collection was returned instead.
type SchemaWarning struct {
	Field string
}

func (w SchemaWarning) String() string {
	return fmt.Sprintf("Missing '%s' column in data.", w.Field)
}

// Message renders the warning for a named kind of data, e.g. "agent".
func (w SchemaWarning) Message(subject string) string {
	if subject == "" {
		return w.String()
	}
	return fmt.Sprintf("Missing '%s' column in %s data.", w.Field, subject)
}

// DistinctValues returns the unique values of field across c, sorted
// lexicographically. Records that lack the field contribute nothing.
func DistinctValues(c record.Collection, field string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range c {
		v, ok := r.String(field)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// FilterBy returns the records of c whose field equals value, in their
// original order. When no record carries field at all, c is returned
// unfiltered together with a SchemaWarning.
func FilterBy(c record.Collection, field, value string) (record.Collection, *SchemaWarning) {
	if !c.HasField(field) {
		out := make(record.Collection, len(c))
		copy(out, c)
		return out, &SchemaWarning{Field: field}
	}
	out := record.Collection{}
	for _, r := range c {
		if v, ok := r.String(field); ok && v == value {
			out = append(out, r)
		}
	}
	return out, nil
}
