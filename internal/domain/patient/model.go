package patient

import (
	"fmt"

	"github.com/winniio/dashboard/internal/platform/record"
	"github.com/winniio/dashboard/internal/platform/validation"
)

// Field names of a patient event record.
const (
	FieldID        = "patient_id"
	FieldEvent     = "event"
	FieldLocation  = "location"
	FieldTimestamp = record.TimestampField
	FieldStatus    = "status"
)

const (
	StatusActive    = "Active"
	StatusIdle      = "Idle"
	StatusCompleted = "Completed"
)

// Statuses are the values the mutation engine may assign to a patient event.
var Statuses = []string{StatusActive, StatusIdle, StatusCompleted}

// Event is the latest known activity of one patient.
type Event struct {
	PatientID string `json:"patient_id" validate:"required"`
	Event     string `json:"event"`
	Location  string `json:"location"`
	Timestamp string `json:"timestamp" validate:"omitempty,timestamp"`
	Status    string `json:"status" validate:"oneof=Active Idle Completed"`
}

func (e *Event) Validate() error {
	return validation.Struct(e)
}

func (e *Event) ToRecord() record.Record {
	return record.Record{
		FieldID:        e.PatientID,
		FieldEvent:     e.Event,
		FieldLocation:  e.Location,
		FieldTimestamp: e.Timestamp,
		FieldStatus:    e.Status,
	}
}

func FromRecord(r record.Record) Event {
	get := func(f string) string {
		v, _ := r.String(f)
		return v
	}
	return Event{
		PatientID: get(FieldID),
		Event:     get(FieldEvent),
		Location:  get(FieldLocation),
		Timestamp: get(FieldTimestamp),
		Status:    get(FieldStatus),
	}
}

// Check returns one warning per invalid field of each record in c.
func Check(c record.Collection) []string {
	var warnings []string
	for i, r := range c {
		e := FromRecord(r)
		if err := e.Validate(); err != nil {
			for _, msg := range validation.Describe(err) {
				warnings = append(warnings, fmt.Sprintf("patient #%d (%s): %s", i+1, e.PatientID, msg))
			}
		}
	}
	return warnings
}
