package api

import (
	"errors"
	"net/http"

	"github.com/chatdeck/chatdeck/internal/ingest"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/labstack/echo/v4"
)

// IngestHandler receives write-backs from the external workflow engine:
// delivery records for sent messages, inbound messages and contact upserts.
type IngestHandler struct {
	engine *ingest.Engine
}

// NewIngestHandler creates the ingest handler.
func NewIngestHandler(engine *ingest.Engine) *IngestHandler {
	return &IngestHandler{engine: engine}
}

func (h *IngestHandler) Register(e *echo.Echo) {
	e.POST("/api/ingest/messages", h.Message)
	e.POST("/api/ingest/contacts", h.Contact)
	e.DELETE("/api/ingest/contacts/:id", h.DeactivateContact)
}

type ingestMessageRequest struct {
	ID            string `json:"id"`
	ProviderMsgID string `json:"provider_msg_id"`
	FromNumber    string `json:"from"`
	ToNumber      string `json:"to"`
	Direction     string `json:"direction"`
	Type          string `json:"type"`
	Body          string `json:"body"`
	MediaURL      string `json:"media_url"`
	ButtonText    string `json:"button_text"`
	Status        string `json:"status"`
	SentAt        int64  `json:"sent_at_unix_ms"`
	DeliveredAt   int64  `json:"delivered_at_unix_ms"`
	ReadAt        int64  `json:"read_at_unix_ms"`
	FailedAt      int64  `json:"failed_at_unix_ms"`
	ContactID     string `json:"contact_id"`
}

func (h *IngestHandler) Message(c echo.Context) error {
	var req ingestMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg := &store.Message{
		ID:            req.ID,
		ProviderMsgID: req.ProviderMsgID,
		FromNumber:    req.FromNumber,
		ToNumber:      req.ToNumber,
		Direction:     req.Direction,
		Type:          req.Type,
		Body:          req.Body,
		MediaURL:      req.MediaURL,
		ButtonText:    req.ButtonText,
		Status:        req.Status,
		SentAt:        req.SentAt,
		DeliveredAt:   req.DeliveredAt,
		ReadAt:        req.ReadAt,
		FailedAt:      req.FailedAt,
		ContactID:     req.ContactID,
	}
	if msg.Type == "" {
		msg.Type = "text"
	}
	if msg.Status == "" {
		msg.Status = store.StatusSent
	}

	inserted, err := h.engine.IngestMessage(msg)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":       msg.ID,
		"inserted": inserted,
	})
}

type ingestContactRequest struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Tags  string `json:"tags"`
	Notes string `json:"notes"`
}

func (h *IngestHandler) Contact(c echo.Context) error {
	var req ingestContactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	contact := &store.Contact{
		ID:     req.ID,
		Phone:  req.Phone,
		Name:   req.Name,
		Tags:   req.Tags,
		Notes:  req.Notes,
		Active: true,
	}
	if err := h.engine.IngestContact(contact); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"id": contact.ID})
}

func (h *IngestHandler) DeactivateContact(c echo.Context) error {
	err := h.engine.DeactivateContact(c.Param("id"))
	if errors.Is(err, ingest.ErrContactNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"id": c.Param("id")})
}
