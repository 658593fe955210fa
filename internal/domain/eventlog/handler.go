package eventlog

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/winniio/dashboard/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/events", h.ListEvents)
	api.POST("/events", h.CreateEvent)
}

func (h *Handler) CreateEvent(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.Append(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidEntry) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListEvents(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{AgentID: c.QueryParam("agent_id"), PatientID: c.QueryParam("patient_id")}
	items, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, total)
	return c.JSON(http.StatusOK, resp)
}
