// Package scheduler drives the refresh loop: load every feed from the store,
// mutate a copy, hand the frame to a publisher, wait, repeat.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/winniio/dashboard/internal/platform/record"
	"github.com/winniio/dashboard/internal/platform/store"
)

// DefaultInterval is the wait between the end of one cycle and the start of
// the next.
const DefaultInterval = 2 * time.Second

// State is the scheduler's position in its cycle.
type State int32

const (
	Idle State = iota
	Loading
	Mutating
	Published
	Waiting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Mutating:
		return "mutating"
	case Published:
		return "published"
	case Waiting:
		return "waiting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Feed binds a store source to the field the mutation engine rewrites.
type Feed struct {
	Name        string
	Source      string
	Field       string
	Values      []string
	Probability float64
	// Optional feeds treat a missing source as empty instead of failing.
	Optional bool
}

// FeedFrame is the cycle output for one feed.
type FeedFrame struct {
	Feed     Feed
	Records  record.Collection
	Mutated  int
	Warnings []string
}

// Frame is everything one cycle produced.
type Frame struct {
	Cycle       uint64
	StartedAt   time.Time
	PublishedAt time.Time
	Feeds       []FeedFrame
}

// Feed returns the frame for the named feed.
func (f Frame) Feed(name string) (FeedFrame, bool) {
	for _, ff := range f.Feeds {
		if ff.Feed.Name == name {
			return ff, true
		}
	}
	return FeedFrame{}, false
}

// Publisher receives the output of every cycle.
type Publisher interface {
	Publish(ctx context.Context, f Frame) error
	Fail(ctx context.Context, cycle uint64, err error)
}

// Mutator is the subset of the mutation engine the scheduler needs.
type Mutator interface {
	Mutate(c record.Collection, field string, allowed []string, p float64) (record.Collection, int)
}

// Clock abstracts time for the wait between cycles.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Scheduler runs refresh cycles one at a time.
type Scheduler struct {
	store     store.Store
	mutator   Mutator
	feeds     []Feed
	publisher Publisher
	interval  time.Duration
	clock     Clock
	logger    zerolog.Logger
	metrics   *Metrics

	state atomic.Int32
	cycle atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the wait between cycles. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a scheduler over feeds. Feeds are processed in the given order.
func New(st store.Store, m Mutator, feeds []Feed, p Publisher, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     st,
		mutator:   m,
		feeds:     append([]Feed(nil), feeds...),
		publisher: p,
		interval:  DefaultInterval,
		clock:     realClock{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state. Safe to call from any goroutine.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Cycles returns the number of cycles started so far.
func (s *Scheduler) Cycles() uint64 {
	return s.cycle.Load()
}

// Interval returns the configured wait between cycles.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run executes cycles until ctx is cancelled. A failed cycle is reported and
// the loop continues after the normal wait.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Int("feeds", len(s.feeds)).Msg("refresh scheduler started")
	defer func() {
		s.setState(Idle)
		s.logger.Info().Uint64("cycles", s.Cycles()).Msg("refresh scheduler stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		// Errors were already reported through the publisher and the log.
		_ = s.Step(ctx)

		s.setState(Waiting)
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.interval):
		}
	}
}

// Step runs exactly one cycle and returns its error, if any. The publisher's
// Fail hook has already been called when a non-nil error is returned.
func (s *Scheduler) Step(ctx context.Context) (err error) {
	cycle := s.cycle.Add(1)
	started := s.clock.Now()
	log := s.logger.With().Uint64("cycle", cycle).Logger()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle %d panicked: %v", cycle, r)
		}
		d := s.clock.Now().Sub(started)
		if err != nil {
			s.metrics.observeCycle(ResultFailed, d)
			log.Error().Err(err).Dur("duration", d).Msg("refresh cycle failed")
			s.publisher.Fail(ctx, cycle, err)
			return
		}
		s.metrics.observeCycle(ResultPublished, d)
	}()

	frame := Frame{Cycle: cycle, StartedAt: started, Feeds: make([]FeedFrame, 0, len(s.feeds))}
	for _, feed := range s.feeds {
		s.setState(Loading)
		c, warnings, err := s.load(ctx, feed)
		if err != nil {
			return fmt.Errorf("loading feed %q: %w", feed.Name, err)
		}

		s.setState(Mutating)
		out, n := s.mutator.Mutate(c, feed.Field, feed.Values, feed.Probability)
		frame.Feeds = append(frame.Feeds, FeedFrame{Feed: feed, Records: out, Mutated: n, Warnings: warnings})
	}

	frame.PublishedAt = s.clock.Now()
	if err := s.publisher.Publish(ctx, frame); err != nil {
		return fmt.Errorf("publishing cycle %d: %w", cycle, err)
	}
	s.setState(Published)

	for _, ff := range frame.Feeds {
		s.metrics.observeFeed(ff.Feed.Name, len(ff.Records), ff.Mutated)
		log.Debug().Str("feed", ff.Feed.Name).Int("records", len(ff.Records)).Int("mutated", ff.Mutated).Msg("feed refreshed")
	}
	return nil
}

func (s *Scheduler) load(ctx context.Context, feed Feed) (record.Collection, []string, error) {
	c, err := s.store.Load(ctx, feed.Source)
	if err == nil {
		return c, nil, nil
	}
	var nf *store.NotFoundError
	if feed.Optional && errors.As(err, &nf) {
		s.logger.Warn().Str("feed", feed.Name).Str("source", feed.Source).Msg("optional feed missing, using empty collection")
		return record.Collection{}, []string{fmt.Sprintf("Source '%s' not found; showing no %s.", feed.Source, feed.Name)}, nil
	}
	return nil, nil, err
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}
