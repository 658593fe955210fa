package patient

import (
	"testing"

	"github.com/winniio/dashboard/internal/platform/record"
)

func TestEvent_Validate(t *testing.T) {
	e := Event{PatientID: "P1", Event: "Check-in", Location: "Reception", Timestamp: "2024-05-01T09:30:00.000000Z", Status: StatusActive}
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := FromRecord(e.ToRecord()); got != e {
		t.Errorf("round trip = %+v", got)
	}
}

func TestEvent_EmptyTimestampAllowed(t *testing.T) {
	e := Event{PatientID: "P1", Status: StatusIdle}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestCheck(t *testing.T) {
	c := record.Collection{
		{"patient_id": "P1", "status": "Active", "timestamp": "2024-05-01T09:30:00Z"},
		{"patient_id": "P2", "status": "Discharged", "timestamp": "soon"},
		{"status": "Idle"},
	}
	warnings := Check(c)
	if len(warnings) != 3 {
		t.Fatalf("warnings = %v", warnings)
	}
	if warnings[2] != "patient #3 (): 'patient_id' is required" {
		t.Errorf("warning = %q", warnings[2])
	}
}
