package view

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"

	"github.com/winniio/dashboard/internal/platform/record"
)

func scenario() record.Collection {
	return record.Collection{
		{"id": "A1", "status": "Active"},
		{"id": "A2", "status": "Idle"},
		{"id": "A3", "status": "Active"},
	}
}

func ids(c record.Collection) []string {
	out := []string{}
	for _, r := range c {
		out = append(out, r["id"].(string))
	}
	return out
}

func randomCollection(rng *rand.Rand, n int) record.Collection {
	rooms := []string{"ICU", "Ward A", "Reception", "Ward B", "OR"}
	c := make(record.Collection, n)
	for i := range c {
		c[i] = record.Record{"id": fmt.Sprintf("R%03d", i), "room": rooms[rng.IntN(len(rooms))]}
	}
	return c
}

func TestDistinctValues_Scenario(t *testing.T) {
	got := DistinctValues(scenario(), "status")
	want := []string{"Active", "Idle"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DistinctValues = %v, want %v", got, want)
	}
}

func TestDistinctValues_SortedUniqueProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 50; i++ {
		c := randomCollection(rng, rng.IntN(40))
		got := DistinctValues(c, "room")

		want := map[string]bool{}
		for _, r := range c {
			want[r["room"].(string)] = true
		}
		if len(got) != len(want) {
			t.Fatalf("got %d values, want %d", len(got), len(want))
		}
		for _, v := range got {
			if !want[v] {
				t.Fatalf("unexpected value %q", v)
			}
		}
		if !slices.IsSorted(got) {
			t.Fatalf("values not sorted: %v", got)
		}
	}
}

func TestDistinctValues_MissingFieldIsEmpty(t *testing.T) {
	got := DistinctValues(scenario(), "current_room")
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty slice, got %#v", got)
	}
}

func TestDistinctValues_SkipsRecordsWithoutField(t *testing.T) {
	c := record.Collection{{"status": "Idle"}, {"id": "x"}, {"status": nil}, {"status": "Active"}}
	got := DistinctValues(c, "status")
	if !reflect.DeepEqual(got, []string{"Active", "Idle"}) {
		t.Errorf("DistinctValues = %v", got)
	}
}

func TestDistinctValues_Numbers(t *testing.T) {
	c := record.Collection{{"floor": json.Number("2")}, {"floor": json.Number("10")}, {"floor": json.Number("2")}}
	got := DistinctValues(c, "floor")
	if !reflect.DeepEqual(got, []string{"10", "2"}) {
		t.Errorf("DistinctValues = %v, want lexicographic [10 2]", got)
	}
}

func TestFilterBy_Scenario(t *testing.T) {
	got, warn := FilterBy(scenario(), "status", "Active")
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}
	if !reflect.DeepEqual(ids(got), []string{"A1", "A3"}) {
		t.Errorf("FilterBy ids = %v, want [A1 A3]", ids(got))
	}
}

func TestFilterBy_MissingFieldWarns(t *testing.T) {
	c := scenario()
	got, warn := FilterBy(c, "missing_field", "x")
	if warn == nil || warn.Field != "missing_field" {
		t.Fatalf("expected SchemaWarning for missing_field, got %v", warn)
	}
	if !reflect.DeepEqual(got, c) {
		t.Errorf("expected unchanged collection, got %v", got)
	}
}

func TestFilterBy_EmptyCollectionWarns(t *testing.T) {
	got, warn := FilterBy(record.Collection{}, "status", "Active")
	if warn == nil {
		t.Fatal("expected SchemaWarning for empty collection")
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestFilterBy_SubsequenceAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	for i := 0; i < 50; i++ {
		c := randomCollection(rng, 1+rng.IntN(40))
		v := c[rng.IntN(len(c))]["room"].(string)

		once, _ := FilterBy(c, "room", v)
		if len(once) > len(c) {
			t.Fatalf("filtered length %d exceeds input %d", len(once), len(c))
		}
		j := 0
		for _, r := range once {
			if r["room"] != v {
				t.Fatalf("record %v does not match %q", r, v)
			}
			for j < len(c) && c[j]["id"] != r["id"] {
				j++
			}
			if j == len(c) {
				t.Fatalf("result is not a subsequence of input")
			}
			j++
		}

		twice, _ := FilterBy(once, "room", v)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("FilterBy not idempotent")
		}
	}
}

func TestFilterBy_DoesNotModifyInput(t *testing.T) {
	c := scenario()
	before := c.Clone()
	FilterBy(c, "status", "Idle")
	FilterBy(c, "nope", "Idle")
	if !reflect.DeepEqual(c, before) {
		t.Fatal("input was modified")
	}
}

func TestSchemaWarning_Message(t *testing.T) {
	w := SchemaWarning{Field: "current_room"}
	if got := w.Message("agent"); got != "Missing 'current_room' column in agent data." {
		t.Errorf("Message = %q", got)
	}
	if got := w.Message(""); got != "Missing 'current_room' column in data." {
		t.Errorf("Message(\"\") = %q", got)
	}
}
