// Package dashboard binds the agent and patient feeds to filterable panels,
// publishes every refresh cycle to the board and to WebSocket clients, and
// serves the dashboard API.
package dashboard

import (
	"github.com/winniio/dashboard/internal/domain/agent"
	"github.com/winniio/dashboard/internal/domain/patient"
	"github.com/winniio/dashboard/internal/platform/record"
	"github.com/winniio/dashboard/internal/platform/scheduler"
)

// Panel names.
const (
	PanelAgents   = "agents"
	PanelPatients = "patients"
)

// Topic is the WebSocket topic cycle events are broadcast on.
const Topic = "dashboard"

// PanelDef describes one panel: the feed that fills it, the field it is
// filtered by and the query parameter carrying the selection.
type PanelDef struct {
	Name        string
	Subject     string
	FilterField string
	QueryParam  string
	Feed        scheduler.Feed
	// Check reports invalid records as warnings. Optional.
	Check func(record.Collection) []string
}

// Sources names the store sources of the two feeds.
type Sources struct {
	Agents   string
	Patients string
}

// DefaultPanels returns the agents-by-room and patients-by-status panels.
func DefaultPanels(src Sources, probability float64) []PanelDef {
	return []PanelDef{
		{
			Name:        PanelAgents,
			Subject:     "agent",
			FilterField: agent.FieldCurrentRoom,
			QueryParam:  "room",
			Check:       agent.Check,
			Feed: scheduler.Feed{
				Name:        PanelAgents,
				Source:      src.Agents,
				Field:       agent.FieldStatus,
				Values:      agent.Statuses,
				Probability: probability,
				Optional:    true,
			},
		},
		{
			Name:        PanelPatients,
			Subject:     "patient",
			FilterField: patient.FieldStatus,
			QueryParam:  "status",
			Check:       patient.Check,
			Feed: scheduler.Feed{
				Name:        PanelPatients,
				Source:      src.Patients,
				Field:       patient.FieldStatus,
				Values:      patient.Statuses,
				Probability: probability,
				Optional:    true,
			},
		},
	}
}

// Feeds extracts the scheduler feeds of defs, in order.
func Feeds(defs []PanelDef) []scheduler.Feed {
	feeds := make([]scheduler.Feed, len(defs))
	for i, s := range defs {
		feeds[i] = s.Feed
	}
	return feeds
}

func panelDefByName(defs []PanelDef, name string) (PanelDef, bool) {
	for _, s := range defs {
		if s.Name == name {
			return s, true
		}
	}
	return PanelDef{}, false
}
