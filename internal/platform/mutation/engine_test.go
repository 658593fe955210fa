package mutation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/winniio/dashboard/internal/platform/record"
)

func uniform(n int) record.Collection {
	c := make(record.Collection, n)
	for i := range c {
		c[i] = record.Record{"patient_id": fmt.Sprintf("P%04d", i), "status": "Active", "timestamp": "2020-01-01T00:00:00Z"}
	}
	return c
}

func TestMutate_ProbabilityConverges(t *testing.T) {
	const (
		n      = 2000
		trials = 10
		eps    = 0.05
	)
	e := New()
	var total float64
	for i := 0; i < trials; i++ {
		in := uniform(n)
		out, mutated := e.Mutate(in, "status", []string{"Idle"}, DefaultProbability)
		changed := 0
		for _, r := range out {
			if r["status"] != "Active" {
				changed++
			}
		}
		if changed != mutated {
			t.Fatalf("reported %d mutations, observed %d", mutated, changed)
		}
		total += float64(changed) / n
	}
	avg := total / trials
	if math.Abs(avg-DefaultProbability) > eps {
		t.Errorf("average mutated fraction %.3f outside %.2f±%.2f", avg, DefaultProbability, eps)
	}
}

func TestMutate_DoesNotModifyInput(t *testing.T) {
	in := uniform(200)
	before := in.Clone()
	New(WithSeed(7)).Mutate(in, "status", []string{"Idle", "Completed"}, 1)
	if !reflect.DeepEqual(in, before) {
		t.Fatal("input collection was modified")
	}
}

func TestMutate_TimestampIsUTCAfterStart(t *testing.T) {
	start := time.Now().UTC().Truncate(time.Microsecond)
	out, mutated := New().Mutate(uniform(50), "status", []string{"Idle"}, 1)
	if mutated != 50 {
		t.Fatalf("expected all 50 records mutated at p=1, got %d", mutated)
	}
	for _, r := range out {
		ts := r["timestamp"].(string)
		if !strings.HasSuffix(ts, "Z") {
			t.Fatalf("timestamp %q lacks Z designator", ts)
		}
		parsed, err := time.Parse(TimestampLayout, ts)
		if err != nil {
			t.Fatalf("timestamp %q does not parse: %v", ts, err)
		}
		if parsed.Before(start) {
			t.Fatalf("timestamp %s is before cycle start %s", parsed, start)
		}
	}
}

func TestMutate_InjectedClock(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 891011000, time.FixedZone("CET", 3600))
	out, _ := New(WithClock(func() time.Time { return fixed })).Mutate(uniform(1), "status", []string{"Idle"}, 1)
	if got := out[0]["timestamp"]; got != "2025-03-04T04:06:07.891011Z" {
		t.Errorf("timestamp = %v", got)
	}
}

func TestMutate_NoTimestampFieldNotAdded(t *testing.T) {
	in := record.Collection{{"agent_id": "A1", "status": "On Duty"}}
	out, _ := New().Mutate(in, "status", []string{"Off Duty"}, 1)
	if _, ok := out[0]["timestamp"]; ok {
		t.Error("timestamp was added to a record that had none")
	}
	if out[0]["status"] != "Off Duty" {
		t.Errorf("status = %v", out[0]["status"])
	}
}

func TestMutate_SkipsRecordsWithoutField(t *testing.T) {
	in := record.Collection{{"agent_id": "A1"}, {"agent_id": "A2", "status": "On Duty"}}
	out, mutated := New().Mutate(in, "status", []string{"Off Duty"}, 1)
	if mutated != 1 {
		t.Fatalf("expected 1 mutation, got %d", mutated)
	}
	if _, ok := out[0]["status"]; ok {
		t.Error("field was written into a record that lacked it")
	}
	if len(out[0]) != 1 || len(out[1]) != 2 {
		t.Errorf("field sets changed: %v", out)
	}
}

func TestMutate_EmptyAllowedIsNoop(t *testing.T) {
	in := uniform(10)
	out, mutated := New().Mutate(in, "status", nil, 1)
	if mutated != 0 {
		t.Fatalf("expected no mutations, got %d", mutated)
	}
	if !reflect.DeepEqual(in, out) {
		t.Error("expected unchanged copy")
	}
}

func TestMutate_ProbabilityBounds(t *testing.T) {
	e := New()
	if _, n := e.Mutate(uniform(100), "status", []string{"Idle"}, 0); n != 0 {
		t.Errorf("p=0 mutated %d records", n)
	}
	if _, n := e.Mutate(uniform(100), "status", []string{"Idle"}, -3); n != 0 {
		t.Errorf("p<0 mutated %d records", n)
	}
	if _, n := e.Mutate(uniform(100), "status", []string{"Idle"}, 7); n != 100 {
		t.Errorf("p>1 mutated %d records, want 100", n)
	}
	if _, n := e.Mutate(uniform(100), "status", []string{"Idle"}, math.NaN()); n != 0 {
		t.Errorf("p=NaN mutated %d records", n)
	}
}

func TestMutate_SeedIsReproducible(t *testing.T) {
	allowed := []string{"Active", "Idle", "Completed"}
	a, _ := New(WithSeed(42)).Mutate(uniform(300), "status", allowed, 0.3)
	b, _ := New(WithSeed(42)).Mutate(uniform(300), "status", allowed, 0.3)
	for i := range a {
		if a[i]["status"] != b[i]["status"] {
			t.Fatalf("record %d differs between seeded runs: %v vs %v", i, a[i]["status"], b[i]["status"])
		}
	}
}

func TestMutate_ValuesDrawnFromAllowed(t *testing.T) {
	allowed := []string{"Active", "Idle", "Completed"}
	seen := map[any]int{}
	out, _ := New(WithRand(rand.New(rand.NewPCG(1, 2)))).Mutate(uniform(3000), "status", allowed, 1)
	for _, r := range out {
		seen[r["status"]]++
	}
	if len(seen) != len(allowed) {
		t.Fatalf("expected all %d allowed values, saw %v", len(allowed), seen)
	}
	for _, v := range allowed {
		if seen[v] < 800 {
			t.Errorf("value %q drawn %d times, expected roughly 1000", v, seen[v])
		}
	}
}

func TestMutate_ConcurrentUse(t *testing.T) {
	e := New(WithSeed(9))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Mutate(uniform(100), "status", []string{"Idle"}, 0.5)
		}()
	}
	wg.Wait()
}
