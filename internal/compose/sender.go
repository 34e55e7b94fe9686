// Package compose submits outbound messages to the automation webhook that
// performs the actual WhatsApp delivery. The delivery record (provider
// message id, status) is written back later by the workflow engine through
// the ingest endpoint, not by this package.
package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chatdeck/chatdeck/internal/bus"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendError carries the original message text so the console can restore
// the input for a retry. There is no automatic retry.
type SendError struct {
	Text string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

type webhookPayload struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	ContactID string `json:"contactId,omitempty"`
}

// Sender posts outbound text to the automation webhook and keeps the store
// in sync with an optimistic placeholder message.
type Sender struct {
	db         *store.DB
	bus        *bus.Bus
	client     *http.Client
	logger     *zap.Logger
	webhookURL string
	fromNumber string
}

// NewSender creates a webhook sender.
func NewSender(db *store.DB, b *bus.Bus, logger *zap.Logger, webhookURL, fromNumber string) *Sender {
	return &Sender{
		db:         db,
		bus:        b,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		webhookURL: webhookURL,
		fromNumber: fromNumber,
	}
}

// Send inserts an optimistic outbound placeholder, posts to the webhook and
// returns the placeholder. A non-2xx response or network failure marks the
// placeholder failed and returns a SendError with the original text.
func (s *Sender) Send(ctx context.Context, contact *store.Contact, text string) (*store.Message, error) {
	now := time.Now().UnixMilli()
	placeholder := &store.Message{
		ID:         uuid.New().String(),
		FromNumber: s.fromNumber,
		ToNumber:   contact.Phone,
		Direction:  store.DirectionOutbound,
		Type:       "text",
		Body:       text,
		Status:     store.StatusSent,
		SentAt:     now,
		ContactID:  contact.ID,
	}

	// Optimistic insert: the thread shows the message immediately.
	if err := s.db.InsertMessage(placeholder); err != nil {
		return nil, &SendError{Text: text, Err: fmt.Errorf("insert placeholder: %w", err)}
	}
	if err := s.db.BumpContactCounter(contact.ID, store.DirectionOutbound); err != nil {
		s.logger.Warn("outbound counter bump failed", zap.String("contact_id", contact.ID), zap.Error(err))
	}
	s.publish(bus.KindMessageInserted, placeholder)

	if err := s.post(ctx, contact, text); err != nil {
		s.logger.Error("webhook send failed", zap.String("contact_id", contact.ID), zap.Error(err))
		if markErr := s.db.MarkMessageFailed(placeholder.ID, time.Now().UnixMilli()); markErr != nil {
			s.logger.Warn("failed to mark placeholder failed", zap.String("msg_id", placeholder.ID), zap.Error(markErr))
		} else {
			placeholder.Status = store.StatusFailed
			s.publish(bus.KindMessageUpdated, placeholder)
		}
		return nil, &SendError{Text: text, Err: err}
	}

	s.logger.Info("message submitted",
		zap.String("contact_id", contact.ID),
		zap.String("msg_id", placeholder.ID))
	return placeholder, nil
}

func (s *Sender) post(ctx context.Context, contact *store.Contact, text string) error {
	body, err := json.Marshal(webhookPayload{
		To:        contact.Phone,
		Message:   text,
		ContactID: contact.ID,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

func (s *Sender) publish(kind string, m *store.Message) {
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   m,
	})
}
