// Package sandbox provides synthetic ward data for demo environments. It
// produces reproducible agents and patient events so a fresh data directory
// renders a populated dashboard.
package sandbox

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/winniio/dashboard/internal/domain/agent"
	"github.com/winniio/dashboard/internal/domain/patient"
	"github.com/winniio/dashboard/internal/platform/mutation"
	"github.com/winniio/dashboard/internal/platform/record"
	"github.com/winniio/dashboard/internal/platform/store"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and placement of generated data.
type SeedConfig struct {
	AgentCount     int    `json:"agentCount"`
	PatientCount   int    `json:"patientCount"`
	AgentsSource   string `json:"agentsSource"`
	PatientsSource string `json:"patientsSource"`
	// Force overwrites sources that already exist.
	Force bool   `json:"force"`
	Seed  uint64 `json:"seed"`
}

// DefaultSeedConfig returns a SeedConfig sized for a single ward.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		AgentCount:     8,
		PatientCount:   12,
		AgentsSource:   "agents.json",
		PatientsSource: "patient.json",
	}
}

// ---------------------------------------------------------------------------
// Reference data
// ---------------------------------------------------------------------------

var (
	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "Michael", "Jennifer",
		"David", "Linda", "William", "Elizabeth", "Amara", "Kenji",
		"Priya", "Mateo", "Ingrid", "Tariq",
	}

	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
		"Miller", "Davis", "Nakamura", "Okafor", "Lindqvist", "Haddad",
	}

	roles = []string{"Nurse", "Doctor", "Porter", "Technician", "Therapist"}

	rooms = []string{
		"ER-1", "ER-2", "ICU-1", "ICU-2", "Ward-A", "Ward-B",
		"Radiology", "Theatre-1", "Pharmacy",
	}

	patientEvents = []string{
		"Admitted", "Vitals Check", "Medication", "Lab Draw",
		"Imaging", "Surgery", "Transfer", "Discharge Review",
	}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic agents and patient events.
type DataGenerator struct {
	rng      *rand.Rand
	now      time.Time
	counters map[string]int
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen. Timestamps are spread over the hour before
// now.
func NewDataGenerator(seed uint64, now time.Time) *DataGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &DataGenerator{
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		now:      now.UTC(),
		counters: make(map[string]int),
	}
}

func (g *DataGenerator) nextID(prefix string) string {
	g.counters[prefix]++
	return fmt.Sprintf("%s%03d", prefix, g.counters[prefix])
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.IntN(len(pool))]
}

// GenerateAgent produces one healthcare worker.
func (g *DataGenerator) GenerateAgent() agent.Agent {
	return agent.Agent{
		AgentID:     g.nextID("A"),
		Name:        g.pick(firstNames) + " " + g.pick(lastNames),
		CurrentRoom: g.pick(rooms),
		Role:        g.pick(roles),
		Status:      g.pick(agent.Statuses),
	}
}

// GeneratePatient produces the latest event of one patient.
func (g *DataGenerator) GeneratePatient() patient.Event {
	offset := time.Duration(g.rng.IntN(3600)) * time.Second
	return patient.Event{
		PatientID: g.nextID("P"),
		Event:     g.pick(patientEvents),
		Location:  g.pick(rooms),
		Timestamp: g.now.Add(-offset).Format(mutation.TimestampLayout),
		Status:    g.pick(patient.Statuses),
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// SeedResult summarizes what a Seed call wrote.
type SeedResult struct {
	Agents   int           `json:"agents"`
	Patients int           `json:"patients"`
	Skipped  []string      `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Seeder writes generated collections to a store.
type Seeder struct {
	store  store.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewSeeder creates a Seeder over st.
func NewSeeder(st store.Store, logger zerolog.Logger) *Seeder {
	return &Seeder{store: st, logger: logger, now: time.Now}
}

// Generate builds the agent and patient collections for config without
// touching the store.
func (s *Seeder) Generate(config SeedConfig) (agents, patients record.Collection) {
	g := NewDataGenerator(config.Seed, s.now())
	agents = make(record.Collection, 0, config.AgentCount)
	for i := 0; i < config.AgentCount; i++ {
		a := g.GenerateAgent()
		agents = append(agents, a.ToRecord())
	}
	patients = make(record.Collection, 0, config.PatientCount)
	for i := 0; i < config.PatientCount; i++ {
		p := g.GeneratePatient()
		patients = append(patients, p.ToRecord())
	}
	return agents, patients
}

// Seed generates data and saves it. A source that already exists is left
// alone unless config.Force is set.
func (s *Seeder) Seed(ctx context.Context, config SeedConfig) (*SeedResult, error) {
	if config.AgentCount < 0 || config.PatientCount < 0 {
		return nil, fmt.Errorf("seed counts must not be negative (agents %d, patients %d)", config.AgentCount, config.PatientCount)
	}
	start := time.Now()
	agents, patients := s.Generate(config)
	result := &SeedResult{}

	for _, target := range []struct {
		source string
		c      record.Collection
		count  *int
	}{
		{config.AgentsSource, agents, &result.Agents},
		{config.PatientsSource, patients, &result.Patients},
	} {
		if !config.Force {
			exists, err := s.exists(ctx, target.source)
			if err != nil {
				return nil, err
			}
			if exists {
				s.logger.Info().Str("source", target.source).Msg("source exists, skipping seed")
				result.Skipped = append(result.Skipped, target.source)
				continue
			}
		}
		if err := s.store.Save(ctx, target.source, target.c); err != nil {
			return nil, fmt.Errorf("seeding %s: %w", target.source, err)
		}
		*target.count = len(target.c)
		s.logger.Info().Str("source", target.source).Int("records", len(target.c)).Msg("seeded source")
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (s *Seeder) exists(ctx context.Context, source string) (bool, error) {
	_, err := s.store.Load(ctx, source)
	switch {
	case err == nil:
		return true, nil
	case store.IsNotFound(err):
		return false, nil
	case store.IsFormat(err):
		// A corrupt source counts as present; overwriting it needs Force.
		return true, nil
	default:
		return false, fmt.Errorf("checking %s: %w", source, err)
	}
}
