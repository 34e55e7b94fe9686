package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chatdeck/chatdeck/internal/compose"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/chatdeck/chatdeck/internal/timeline"
	"github.com/labstack/echo/v4"
)

// MessagesHandler serves thread reads, the read-state transition and
// message submission.
type MessagesHandler struct {
	db     *store.DB
	svc    *timeline.Service
	sender *compose.Sender
}

// NewMessagesHandler creates the messages handler.
func NewMessagesHandler(db *store.DB, svc *timeline.Service, sender *compose.Sender) *MessagesHandler {
	return &MessagesHandler{db: db, svc: svc, sender: sender}
}

func (h *MessagesHandler) Register(e *echo.Echo) {
	e.GET("/api/contacts/:id/messages", h.Thread)
	e.POST("/api/contacts/:id/read", h.MarkRead)
	e.POST("/api/messages", h.Send)
}

func (h *MessagesHandler) Thread(c echo.Context) error {
	contact, err := h.db.GetContact(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if contact == nil {
		return echo.NewHTTPError(http.StatusNotFound, "contact not found")
	}

	msgs, hasMore, err := h.svc.Thread(contact)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"messages": messageDTOs(msgs),
		"has_more": hasMore,
	})
}

func (h *MessagesHandler) MarkRead(c echo.Context) error {
	contact, err := h.db.GetContact(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if contact == nil {
		return echo.NewHTTPError(http.StatusNotFound, "contact not found")
	}

	n, err := h.svc.MarkRead(contact.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"marked": n})
}

type sendRequest struct {
	ContactID string `json:"contact_id"`
	Text      string `json:"text"`
}

func (h *MessagesHandler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.ContactID == "" || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contact_id and text are required")
	}

	contact, err := h.db.GetContact(req.ContactID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if contact == nil {
		return echo.NewHTTPError(http.StatusNotFound, "contact not found")
	}

	msg, err := h.sender.Send(c.Request().Context(), contact, req.Text)
	if err != nil {
		var sendErr *compose.SendError
		if errors.As(err, &sendErr) {
			// The original text rides along so the console can restore
			// the input for a retry.
			return c.JSON(http.StatusBadGateway, map[string]any{
				"error": sendErr.Error(),
				"text":  sendErr.Text,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, messageDTO(msg))
}
