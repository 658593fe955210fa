package agent

import (
	"fmt"

	"github.com/winniio/dashboard/internal/platform/record"
	"github.com/winniio/dashboard/internal/platform/validation"
)

// Field names of an agent record.
const (
	FieldID          = "agent_id"
	FieldName        = "name"
	FieldCurrentRoom = "current_room"
	FieldRole        = "role"
	FieldStatus      = "status"
)

const (
	StatusOnDuty  = "On Duty"
	StatusOffDuty = "Off Duty"
)

// Statuses are the values the mutation engine may assign to an agent.
var Statuses = []string{StatusOnDuty, StatusOffDuty}

// Agent is a healthcare worker shown on the dashboard.
type Agent struct {
	AgentID     string `json:"agent_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	CurrentRoom string `json:"current_room" validate:"required"`
	Role        string `json:"role"`
	Status      string `json:"status" validate:"oneof='On Duty' 'Off Duty'"`
}

func (a *Agent) Validate() error {
	return validation.Struct(a)
}

func (a *Agent) ToRecord() record.Record {
	return record.Record{
		FieldID:          a.AgentID,
		FieldName:        a.Name,
		FieldCurrentRoom: a.CurrentRoom,
		FieldRole:        a.Role,
		FieldStatus:      a.Status,
	}
}

// FromRecord reads the known agent fields from r. Non-string values use
// their canonical rendering.
func FromRecord(r record.Record) Agent {
	get := func(f string) string {
		v, _ := r.String(f)
		return v
	}
	return Agent{
		AgentID:     get(FieldID),
		Name:        get(FieldName),
		CurrentRoom: get(FieldCurrentRoom),
		Role:        get(FieldRole),
		Status:      get(FieldStatus),
	}
}

// Check validates every record of c and returns one warning per invalid
// record. Records are never dropped.
func Check(c record.Collection) []string {
	var warnings []string
	for i, r := range c {
		a := FromRecord(r)
		if err := a.Validate(); err != nil {
			for _, msg := range validation.Describe(err) {
				warnings = append(warnings, fmt.Sprintf("agent #%d (%s): %s", i+1, a.AgentID, msg))
			}
		}
	}
	return warnings
}
