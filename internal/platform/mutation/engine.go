// Package mutation simulates a live feed by randomly rewriting one field of
// a subset of records on every refresh cycle.
package mutation

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/winniio/dashboard/internal/platform/record"
)

// DefaultProbability is the per-record chance of a simulated change.
const DefaultProbability = 0.3

// TimestampLayout renders mutation times in UTC with microsecond precision
// and a trailing Z.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Rand is the random source the engine draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Engine applies Bernoulli mutations. It is safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rnd Rand
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source.
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rnd = r }
}

// WithSeed uses a reproducible PCG source. A zero seed keeps the
// entropy-seeded global source.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		if seed != 0 {
			e.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
	}
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine drawing from the runtime's entropy-seeded source
// unless an option overrides it.
func New(opts ...Option) *Engine {
	e := &Engine{rnd: globalRand{}, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mutate returns a deep copy of c in which each record independently, with
// probability p, has field set to a uniformly chosen allowed value. A
// mutated record that carries a timestamp gets the current UTC time.
//
// Records without field are left alone so the field set never changes.
// An empty allowed list makes the call a plain copy. The second return value
// counts mutated records.
func (e *Engine) Mutate(c record.Collection, field string, allowed []string, p float64) (record.Collection, int) {
	out := c.Clone()
	if len(allowed) == 0 || len(out) == 0 {
		return out, 0
	}
	p = clamp(p)

	e.mu.Lock()
	defer e.mu.Unlock()

	stamp := e.now().UTC().Format(TimestampLayout)
	mutated := 0
	for _, r := range out {
		if e.rnd.Float64() >= p {
			continue
		}
		if _, ok := r[field]; !ok {
			continue
		}
		r[field] = allowed[e.rnd.IntN(len(allowed))]
		if _, ok := r[record.TimestampField]; ok {
			r[record.TimestampField] = stamp
		}
		mutated++
	}
	return out, mutated
}

func clamp(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
