package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/winniio/dashboard/internal/platform/scheduler"
	"github.com/winniio/dashboard/internal/platform/view"
	"github.com/winniio/dashboard/internal/platform/websocket"
)

const (
	EventPublished = "dashboard.published"
	EventFailed    = "dashboard.failed"
)

// PanelSummary is the per-panel payload of a published event.
type PanelSummary struct {
	Name     string `json:"name"`
	Records  int    `json:"records"`
	Mutated  int    `json:"mutated"`
	Options  int    `json:"options"`
	Warnings int    `json:"warnings"`
}

// Publisher turns scheduler frames into board snapshots and notifies
// WebSocket subscribers. It implements scheduler.Publisher.
type Publisher struct {
	board  *view.Board
	defs   []PanelDef
	events websocket.EventPublisher
	logger zerolog.Logger
}

// NewPublisher creates a publisher. events may be nil.
func NewPublisher(board *view.Board, defs []PanelDef, events websocket.EventPublisher, logger zerolog.Logger) *Publisher {
	return &Publisher{board: board, defs: defs, events: events, logger: logger}
}

// Publish builds a snapshot from f and makes it the board's current one.
func (p *Publisher) Publish(ctx context.Context, f scheduler.Frame) error {
	snap := &view.Snapshot{
		Cycle:       f.Cycle,
		StartedAt:   f.StartedAt,
		PublishedAt: f.PublishedAt,
		Panels:      make([]view.Panel, 0, len(f.Feeds)),
	}
	summaries := make([]PanelSummary, 0, len(f.Feeds))
	for _, ff := range f.Feeds {
		def, ok := panelDefByName(p.defs, ff.Feed.Name)
		if !ok {
			return fmt.Errorf("no panel configured for feed %q", ff.Feed.Name)
		}
		panel := view.NewPanel(def.Name, def.Subject, def.FilterField, ff.Records)
		panel.Mutated = ff.Mutated
		panel.Warnings = append(panel.Warnings, ff.Warnings...)
		if def.Check != nil {
			panel.Warnings = append(panel.Warnings, def.Check(ff.Records)...)
		}
		snap.Panels = append(snap.Panels, panel)
		summaries = append(summaries, PanelSummary{
			Name:     panel.Name,
			Records:  len(panel.Records),
			Mutated:  panel.Mutated,
			Options:  len(panel.Options),
			Warnings: len(panel.Warnings),
		})
	}

	p.board.Publish(snap)
	p.broadcast(ctx, EventPublished, f.Cycle, f.PublishedAt, map[string]any{"panels": summaries})
	return nil
}

// Fail records the cycle failure on the board and notifies subscribers.
func (p *Publisher) Fail(ctx context.Context, cycle uint64, err error) {
	at := time.Now().UTC()
	p.board.Fail(view.Fault{Cycle: cycle, At: at, Message: err.Error()})
	p.broadcast(ctx, EventFailed, cycle, at, map[string]any{"message": err.Error()})
}

func (p *Publisher) broadcast(ctx context.Context, typ string, cycle uint64, at time.Time, payload any) {
	if p.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("type", typ).Msg("failed to encode dashboard event")
		return
	}
	ev := websocket.Event{Type: typ, Topic: Topic, Cycle: cycle, Timestamp: at.UTC(), Data: data}
	if err := p.events.Publish(ctx, ev); err != nil {
		p.logger.Warn().Err(err).Str("type", typ).Msg("failed to publish dashboard event")
	}
}
