package eventlog

import (
	"time"

	"github.com/google/uuid"

	"github.com/winniio/dashboard/internal/platform/record"
	"github.com/winniio/dashboard/internal/platform/validation"
)

// TimestampLayout matches the timestamps the mutation engine writes.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one line of the append-only event log.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	AgentID     string    `json:"agent_id" validate:"required"`
	PatientID   string    `json:"patient_id" validate:"required"`
	Description string    `json:"description" validate:"required,max=1024"`
	Timestamp   string    `json:"timestamp" validate:"required,timestamp"`
}

func (e *Entry) Validate() error {
	return validation.Struct(e)
}

func (e *Entry) ToRecord() record.Record {
	return record.Record{
		"id":          e.ID.String(),
		"agent_id":    e.AgentID,
		"patient_id":  e.PatientID,
		"description": e.Description,
		"timestamp":   e.Timestamp,
	}
}

// FromRecord reads an entry back from storage. Entries written before IDs
// were assigned come back with uuid.Nil.
func FromRecord(r record.Record) Entry {
	get := func(f string) string {
		v, _ := r.String(f)
		return v
	}
	id, _ := uuid.Parse(get("id"))
	return Entry{
		ID:          id,
		AgentID:     get("agent_id"),
		PatientID:   get("patient_id"),
		Description: get("description"),
		Timestamp:   get("timestamp"),
	}
}

// CreateRequest is the body of POST /events.
type CreateRequest struct {
	AgentID     string `json:"agent_id"`
	PatientID   string `json:"patient_id"`
	Description string `json:"description"`
}

func stamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
