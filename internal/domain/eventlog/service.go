package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/winniio/dashboard/internal/platform/store"
	"github.com/winniio/dashboard/internal/platform/validation"
	"github.com/winniio/dashboard/internal/platform/websocket"
	"github.com/winniio/dashboard/pkg/pagination"
)

// Topic is the WebSocket topic new entries are announced on.
const Topic = "events"

// ErrInvalidEntry is wrapped by every validation failure of Append.
var ErrInvalidEntry = errors.New("invalid event")

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	AgentID   string
	PatientID string
}

func (f Filter) match(e Entry) bool {
	return (f.AgentID == "" || f.AgentID == e.AgentID) &&
		(f.PatientID == "" || f.PatientID == e.PatientID)
}

type Service struct {
	store  store.Store
	source string
	events websocket.EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(st store.Store, source string, logger zerolog.Logger) *Service {
	return &Service{store: st, source: source, logger: logger, now: time.Now}
}

// SetPublisher announces appended entries on the events topic.
func (s *Service) SetPublisher(p websocket.EventPublisher) { s.events = p }

// Append assigns an ID and timestamp to the request and adds it to the log.
func (s *Service) Append(ctx context.Context, req CreateRequest) (*Entry, error) {
	e := &Entry{
		ID:          uuid.New(),
		AgentID:     strings.TrimSpace(req.AgentID),
		PatientID:   strings.TrimSpace(req.PatientID),
		Description: strings.TrimSpace(req.Description),
		Timestamp:   stamp(s.now()),
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEntry, strings.Join(validation.Describe(err), "; "))
	}
	if err := s.store.Append(ctx, s.source, e.ToRecord()); err != nil {
		return nil, fmt.Errorf("appending to %s: %w", s.source, err)
	}
	s.logger.Info().Str("event_id", e.ID.String()).Str("agent_id", e.AgentID).Str("patient_id", e.PatientID).Msg("event logged")

	if s.events != nil {
		data, _ := json.Marshal(e)
		if err := s.events.Publish(ctx, websocket.Event{Type: "eventlog.appended", Topic: Topic, Data: data}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to announce event")
		}
	}
	return e, nil
}

// List returns the page of entries matching f, oldest first, along with the
// total number of matches.
func (s *Service) List(ctx context.Context, f Filter, pg pagination.Params) ([]Entry, int, error) {
	c, err := store.LoadOptional(ctx, s.store, s.source)
	if err != nil {
		return nil, 0, fmt.Errorf("loading %s: %w", s.source, err)
	}
	matched := make([]Entry, 0, len(c))
	for _, r := range c {
		if e := FromRecord(r); f.match(e) {
			matched = append(matched, e)
		}
	}
	total := len(matched)
	start, end := pg.Window(total)
	return matched[start:end], total, nil
}
