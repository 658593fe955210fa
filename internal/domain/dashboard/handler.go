package dashboard

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/winniio/dashboard/internal/platform/scheduler"
	"github.com/winniio/dashboard/internal/platform/view"
)

// Response is the body of GET /dashboard.
type Response struct {
	Cycle       uint64           `json:"cycle"`
	PublishedAt time.Time        `json:"published_at"`
	Fault       *view.Fault      `json:"fault"`
	Panels      []view.PanelView `json:"panels"`
}

// PanelResponse is the body of GET /panels/:panel.
type PanelResponse struct {
	Cycle       uint64         `json:"cycle"`
	PublishedAt time.Time      `json:"published_at"`
	Fault       *view.Fault    `json:"fault"`
	Panel       view.PanelView `json:"panel"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	State           string      `json:"state"`
	Cycles          uint64      `json:"cycles"`
	IntervalSeconds float64     `json:"interval_seconds"`
	PublishedCycle  uint64      `json:"published_cycle"`
	Fault           *view.Fault `json:"fault"`
}

// StatusSource reports scheduler progress.
type StatusSource interface {
	State() scheduler.State
	Cycles() uint64
	Interval() time.Duration
}

type Handler struct {
	board  *view.Board
	defs   []PanelDef
	status StatusSource
}

func NewHandler(board *view.Board, defs []PanelDef) *Handler {
	return &Handler{board: board, defs: defs}
}

// SetStatusSource enables GET /status.
func (h *Handler) SetStatusSource(s StatusSource) { h.status = s }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/panels/:panel", h.GetPanel)
	api.GET("/status", h.GetStatus)
}

func (h *Handler) snapshot() (*view.Snapshot, error) {
	snap := h.board.Snapshot()
	if snap != nil {
		return snap, nil
	}
	msg := "dashboard has not been published yet"
	if f := h.board.Fault(); f != nil {
		msg += ": " + f.Message
	}
	return nil, echo.NewHTTPError(http.StatusServiceUnavailable, msg)
}

// GetDashboard returns every panel, each filtered by its own query parameter
// (room for agents, status for patients).
func (h *Handler) GetDashboard(c echo.Context) error {
	snap, err := h.snapshot()
	if err != nil {
		return err
	}
	resp := Response{
		Cycle:       snap.Cycle,
		PublishedAt: snap.PublishedAt,
		Fault:       h.board.Fault(),
		Panels:      make([]view.PanelView, 0, len(h.defs)),
	}
	for _, def := range h.defs {
		v, ok := snap.Query(def.Name, c.QueryParam(def.QueryParam))
		if !ok {
			continue
		}
		resp.Panels = append(resp.Panels, v)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPanel(c echo.Context) error {
	name := c.Param("panel")
	def, ok := panelDefByName(h.defs, name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown panel "+name)
	}
	snap, err := h.snapshot()
	if err != nil {
		return err
	}
	selected := c.QueryParam("value")
	if selected == "" {
		selected = c.QueryParam(def.QueryParam)
	}
	v, ok := snap.Query(def.Name, selected)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "panel "+name+" missing from the current snapshot")
	}
	return c.JSON(http.StatusOK, PanelResponse{
		Cycle:       snap.Cycle,
		PublishedAt: snap.PublishedAt,
		Fault:       h.board.Fault(),
		Panel:       v,
	})
}

func (h *Handler) GetStatus(c echo.Context) error {
	resp := StatusResponse{State: scheduler.Idle.String(), Fault: h.board.Fault()}
	if h.status != nil {
		resp.State = h.status.State().String()
		resp.Cycles = h.status.Cycles()
		resp.IntervalSeconds = h.status.Interval().Seconds()
	}
	if snap := h.board.Snapshot(); snap != nil {
		resp.PublishedCycle = snap.Cycle
	}
	return c.JSON(http.StatusOK, resp)
}
