package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chatdeck/chatdeck/internal/bus"
	"github.com/chatdeck/chatdeck/internal/filter"
	"github.com/chatdeck/chatdeck/internal/status"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/chatdeck/chatdeck/internal/timeline"
	"github.com/chatdeck/chatdeck/internal/view"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// pushInterval debounces snapshot pushes to the browser.
const pushInterval = 250 * time.Millisecond

// WSHandler runs one live console session per WebSocket connection. Each
// session owns its roster and chat view-state; commands switch the selected
// contact and the active filter, snapshots are pushed on change.
type WSHandler struct {
	db           *store.DB
	svc          *timeline.Service
	bus          *bus.Bus
	machine      *status.Machine
	logger       *zap.Logger
	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewWSHandler creates the WebSocket console handler.
func NewWSHandler(db *store.DB, svc *timeline.Service, b *bus.Bus, machine *status.Machine, logger *zap.Logger, pollInterval time.Duration) *WSHandler {
	return &WSHandler{
		db:           db,
		svc:          svc,
		bus:          b,
		machine:      machine,
		logger:       logger,
		pollInterval: pollInterval,
		upgrader: websocket.Upgrader{
			// The console is same-origin; auth lives in front of the daemon.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/api/ws", h.Serve)
}

type wsCommand struct {
	Type      string `json:"type"`
	ContactID string `json:"contact_id,omitempty"`
	Filter    string `json:"filter,omitempty"`
	Query     string `json:"q,omitempty"`
}

type wsEvent struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	Kind       string `json:"kind"`
	OccurredAt int64  `json:"occurred_at_unix_ms"`
}

func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ctx := c.Request().Context()
	roster := view.NewRoster(h.svc, h.db, h.bus, h.machine, h.logger, h.pollInterval)
	chat := view.NewChat(h.svc, h.bus, h.logger)
	defer roster.Stop()
	defer chat.Close()

	if err := roster.Start(ctx); err != nil {
		// The initial load is the one blocking failure we surface.
		h.logger.Error("console session initial load failed", zap.Error(err))
		_ = conn.WriteJSON(map[string]string{"type": "error", "error": err.Error()})
		return nil
	}

	events, unsub := h.bus.Subscribe("", 256)
	defer unsub()

	cmds := make(chan wsCommand, 16)
	readFailed := make(chan struct{})
	go func() {
		defer close(readFailed)
		for {
			var cmd wsCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := h.pushRoster(conn, roster); err != nil {
		return nil
	}

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	dirtyRoster := false
	dirtyThread := false

	for {
		select {
		case evt := <-events:
			dirtyRoster = true
			dirtyThread = true
			if err := h.pushEvent(conn, evt); err != nil {
				return nil
			}
		case cmd := <-cmds:
			switch cmd.Type {
			case "select_contact":
				contact, err := h.db.GetContact(cmd.ContactID)
				if err != nil || contact == nil {
					_ = conn.WriteJSON(map[string]string{"type": "error", "error": "contact not found"})
					continue
				}
				chat.Select(contact)
				dirtyThread = true
			case "set_filter":
				kind, err := filter.ParseKind(cmd.Filter)
				if err != nil {
					_ = conn.WriteJSON(map[string]string{"type": "error", "error": err.Error()})
					continue
				}
				roster.SetFilter(kind)
				dirtyRoster = true
			case "set_search":
				roster.SetSearch(cmd.Query)
				dirtyRoster = true
			}
		case <-ticker.C:
			if dirtyRoster {
				if err := h.pushRoster(conn, roster); err != nil {
					return nil
				}
				dirtyRoster = false
			}
			if dirtyThread && !chat.Loading() {
				if err := h.pushThread(conn, chat); err != nil {
					return nil
				}
				dirtyThread = false
			}
		case <-readFailed:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *WSHandler) pushEvent(conn *websocket.Conn, evt bus.Event) error {
	return conn.WriteJSON(wsEvent{
		Type:       "event",
		EventID:    uuid.New().String(),
		Kind:       evt.Kind,
		OccurredAt: evt.Timestamp.UnixMilli(),
	})
}

func (h *WSHandler) pushRoster(conn *websocket.Conn, roster *view.Roster) error {
	payload, err := json.Marshal(map[string]any{
		"type":  "roster",
		"items": entryDTOs(roster.Snapshot()),
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *WSHandler) pushThread(conn *websocket.Conn, chat *view.Chat) error {
	contact := chat.Contact()
	if contact == nil {
		return nil
	}
	msgs, hasMore := chat.Messages()
	payload, err := json.Marshal(map[string]any{
		"type":       "thread",
		"contact_id": contact.ID,
		"messages":   messageDTOs(msgs),
		"has_more":   hasMore,
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
