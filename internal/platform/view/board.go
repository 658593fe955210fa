package view

import (
	"sync/atomic"
	"time"

	"github.com/winniio/dashboard/internal/platform/record"
)

// SelectAll is the selection that bypasses filtering.
const SelectAll = "All"

// Panel is one filterable table of a published snapshot.
type Panel struct {
	Name        string
	Subject     string // used in warning text, e.g. "agent"
	FilterField string
	Records     record.Collection
	Options     []string
	Mutated     int
	Warnings    []string
}

// NewPanel builds a panel and its filter options from c. The caller must not
// modify c afterwards.
func NewPanel(name, subject, filterField string, c record.Collection) Panel {
	if c == nil {
		c = record.Collection{}
	}
	return Panel{
		Name:        name,
		Subject:     subject,
		FilterField: filterField,
		Records:     c,
		Options:     DistinctValues(c, filterField),
	}
}

// Snapshot is the immutable result of one published cycle.
type Snapshot struct {
	Cycle       uint64
	StartedAt   time.Time
	PublishedAt time.Time
	Panels      []Panel
}

// Panel returns the named panel.
func (s *Snapshot) Panel(name string) (Panel, bool) {
	if s == nil {
		return Panel{}, false
	}
	for _, p := range s.Panels {
		if p.Name == name {
			return p, true
		}
	}
	return Panel{}, false
}

// PanelView is the answer to a filter query on one panel.
type PanelView struct {
	Name        string            `json:"name"`
	FilterField string            `json:"filter_field"`
	Options     []string          `json:"options"`
	Selected    string            `json:"selected"`
	Records     record.Collection `json:"records"`
	Total       int               `json:"total"`
	Mutated     int               `json:"mutated"`
	Warnings    []string          `json:"warnings"`
}

// Query filters the named panel by selected. An empty selection picks the
// first option, SelectAll returns every record, and any other value filters
// even if nothing matches it this cycle.
func (s *Snapshot) Query(panel, selected string) (PanelView, bool) {
	p, ok := s.Panel(panel)
	if !ok {
		return PanelView{}, false
	}
	if selected == "" && len(p.Options) > 0 {
		selected = p.Options[0]
	}

	v := PanelView{
		Name:        p.Name,
		FilterField: p.FilterField,
		Options:     p.Options,
		Selected:    selected,
		Total:       len(p.Records),
		Mutated:     p.Mutated,
		Warnings:    append([]string{}, p.Warnings...),
	}
	if selected == SelectAll {
		if !p.Records.HasField(p.FilterField) {
			v.Warnings = append(v.Warnings, SchemaWarning{Field: p.FilterField}.Message(p.Subject))
		}
		v.Records = p.Records
		return v, true
	}
	filtered, warn := FilterBy(p.Records, p.FilterField, selected)
	if warn != nil {
		v.Warnings = append(v.Warnings, warn.Message(p.Subject))
	}
	v.Records = filtered
	return v, true
}

// Fault describes a cycle that failed before publishing.
type Fault struct {
	Cycle   uint64    `json:"cycle"`
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Board holds the latest published snapshot and the latest fault. Readers
// never block the publisher.
type Board struct {
	snap  atomic.Pointer[Snapshot]
	fault atomic.Pointer[Fault]
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// Publish replaces the current snapshot and clears any fault.
func (b *Board) Publish(s *Snapshot) {
	b.snap.Store(s)
	b.fault.Store(nil)
}

// Fail records a fault while keeping the last good snapshot visible.
func (b *Board) Fail(f Fault) {
	b.fault.Store(&f)
}

// Snapshot returns the latest snapshot, or nil before the first publish.
func (b *Board) Snapshot() *Snapshot {
	return b.snap.Load()
}

// Fault returns the latest fault, or nil when the last cycle succeeded.
func (b *Board) Fault() *Fault {
	return b.fault.Load()
}
