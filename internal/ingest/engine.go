// Package ingest handles write-backs from the external workflow engine:
// new message records, delivery status updates and contact upserts. Every
// accepted row is published on the bus so live views update without a
// reload.
package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/chatdeck/chatdeck/internal/bus"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/chatdeck/chatdeck/internal/timeline"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrContactNotFound is returned when an operation references a contact id
// the store does not have.
var ErrContactNotFound = errors.New("contact not found")

// Engine performs idempotent ingestion of workflow records into the store.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEngine creates a new ingest engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{db: db, bus: b, logger: logger}
}

// IngestMessage upserts one message record. Repeated delivery of the same
// provider message id updates delivery fields instead of duplicating the
// row. Returns whether a new row was inserted.
func (e *Engine) IngestMessage(m *store.Message) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Direction != store.DirectionInbound && m.Direction != store.DirectionOutbound {
		return false, fmt.Errorf("invalid direction %q", m.Direction)
	}
	if m.ContactID == "" {
		e.attachContact(m)
	}

	inserted, err := e.db.UpsertByProviderID(m)
	if err != nil {
		return false, fmt.Errorf("upsert message: %w", err)
	}

	kind := bus.KindMessageUpdated
	if inserted {
		kind = bus.KindMessageInserted
		if m.ContactID != "" {
			if err := e.db.BumpContactCounter(m.ContactID, m.Direction); err != nil {
				e.logger.Warn("counter bump failed", zap.String("contact_id", m.ContactID), zap.Error(err))
			}
			if err := e.db.UpdateContactCache(m.ContactID, timeline.EffectiveTimestamp(m), timeline.Preview(m)); err != nil {
				e.logger.Warn("contact cache update failed", zap.String("contact_id", m.ContactID), zap.Error(err))
			}
		}
	}

	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: m})
	return inserted, nil
}

// IngestContact upserts a contact record and publishes the change.
func (e *Engine) IngestContact(c *store.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Phone == "" {
		return fmt.Errorf("contact phone is required")
	}
	if err := e.db.UpsertContact(c); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	e.bus.Publish(bus.Event{Kind: bus.KindContactUpdated, Timestamp: time.Now(), Payload: c})
	return nil
}

// DeactivateContact drops a contact from the roster. The row and its
// messages stay in the store; deactivation is the only removal there is.
func (e *Engine) DeactivateContact(id string) error {
	c, err := e.db.GetContact(id)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}
	if c == nil {
		return ErrContactNotFound
	}
	if err := e.db.DeactivateContact(id); err != nil {
		return fmt.Errorf("deactivate contact: %w", err)
	}
	c.Active = false
	e.bus.Publish(bus.Event{Kind: bus.KindContactUpdated, Timestamp: time.Now(), Payload: c})
	return nil
}

// attachContact resolves the owning contact for a phone-number-only record.
// Inbound rows match on the sender, outbound on the recipient. A miss is
// fine: the reconciler unions the phone address space at read time.
func (e *Engine) attachContact(m *store.Message) {
	phone := m.FromNumber
	if m.Direction == store.DirectionOutbound {
		phone = m.ToNumber
	}
	if phone == "" {
		return
	}
	c, err := e.db.GetContactByPhone(phone)
	if err != nil {
		e.logger.Warn("contact lookup failed", zap.String("phone", phone), zap.Error(err))
		return
	}
	if c != nil {
		m.ContactID = c.ID
	}
}
