package api

import (
	"net/http"

	"github.com/chatdeck/chatdeck/internal/status"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/labstack/echo/v4"
)

// HealthHandler reports daemon state and store counters.
type HealthHandler struct {
	db      *store.DB
	machine *status.Machine
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(db *store.DB, machine *status.Machine) *HealthHandler {
	return &HealthHandler{db: db, machine: machine}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	contacts, err := h.db.ContactCount()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	messages, err := h.db.MessageCount()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"state":    h.machine.Current(),
		"contacts": contacts,
		"messages": messages,
	})
}
