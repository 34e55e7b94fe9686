package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/chatdeck/chatdeck/internal/filter"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/chatdeck/chatdeck/internal/timeline"
	"github.com/chatdeck/chatdeck/internal/view"
	"github.com/labstack/echo/v4"
)

// ContactsHandler serves the stateless roster reads used for initial page
// loads; the live console session runs over the WebSocket handler.
type ContactsHandler struct {
	db  *store.DB
	svc *timeline.Service
}

// NewContactsHandler creates the roster read handler.
func NewContactsHandler(db *store.DB, svc *timeline.Service) *ContactsHandler {
	return &ContactsHandler{db: db, svc: svc}
}

func (h *ContactsHandler) Register(e *echo.Echo) {
	e.GET("/api/contacts", h.List)
	e.GET("/api/contacts/:id", h.Get)
}

func (h *ContactsHandler) List(c echo.Context) error {
	kind, err := filter.ParseKind(c.QueryParam("filter"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	search := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))

	set, err := filter.Compute(h.db, kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	entries, err := h.svc.Roster(time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var rows []view.Entry
	for _, agg := range entries {
		if !set.Matches(&agg.Contact) {
			continue
		}
		if search != "" && !view.MatchesSearch(&agg.Contact, search) {
			continue
		}
		rows = append(rows, view.Entry{Contact: agg.Contact, Preview: agg.Preview, Unread: agg.Unread})
	}

	return c.JSON(http.StatusOK, map[string]any{"items": entryDTOs(rows)})
}

func (h *ContactsHandler) Get(c echo.Context) error {
	contact, err := h.db.GetContact(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if contact == nil {
		return echo.NewHTTPError(http.StatusNotFound, "contact not found")
	}
	entry := view.Entry{Contact: *contact, Preview: contact.LastMessagePreview}
	return c.JSON(http.StatusOK, entryDTO(&entry))
}
