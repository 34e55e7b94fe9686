package view

import (
	"sort"
	"sync"

	"github.com/chatdeck/chatdeck/internal/bus"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/chatdeck/chatdeck/internal/timeline"
	"go.uber.org/zap"
)

// ThreadLoader loads reconciled threads and performs the read-state
// transition. Satisfied by timeline.Service.
type ThreadLoader interface {
	Thread(c *store.Contact) ([]store.Message, bool, error)
	MarkRead(contactID string) (int64, error)
}

// Chat is the open-conversation view-state: the reconciled thread for one
// selected contact, kept current by a contact-scoped bus subscription.
type Chat struct {
	svc    ThreadLoader
	bus    *bus.Bus
	logger *zap.Logger

	mu      sync.Mutex
	gen     int
	contact *store.Contact
	msgs    []store.Message
	hasMore bool
	loading bool
	unsub   func()
}

// NewChat creates the chat view-state with no contact selected.
func NewChat(svc ThreadLoader, b *bus.Bus, logger *zap.Logger) *Chat {
	return &Chat{svc: svc, bus: b, logger: logger}
}

// Select switches the view to a contact. The prior subscription is torn
// down before the new one is established, the thread is fetched
// asynchronously, and a late response for a previously selected contact is
// dropped by generation check. Unread inbound messages are marked read in
// the background; a failure there is logged, never surfaced.
func (c *Chat) Select(contact *store.Contact) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.contact = contact
	c.msgs = nil
	c.hasMore = false
	c.loading = true

	target := *contact
	ch, unsub := c.bus.SubscribeFunc("message.", 256, func(evt bus.Event) bool {
		msg, ok := evt.Payload.(*store.Message)
		return ok && messageBelongsTo(msg, &target)
	})
	done := make(chan struct{})
	c.unsub = func() {
		unsub()
		close(done)
	}
	c.mu.Unlock()

	go c.consume(ch, done, gen)

	go func() {
		msgs, hasMore, err := c.svc.Thread(&target)

		c.mu.Lock()
		if gen != c.gen {
			// The selection moved on while this fetch was in flight.
			c.mu.Unlock()
			return
		}
		c.loading = false
		if err != nil {
			c.mu.Unlock()
			c.logger.Error("thread load failed", zap.String("contact_id", target.ID), zap.Error(err))
			return
		}
		// Live events may have landed before the fetch finished; merge
		// rather than overwrite.
		for _, m := range c.msgs {
			msgs = mergeMessage(msgs, m)
		}
		c.msgs = msgs
		c.hasMore = hasMore
		c.mu.Unlock()

		if n, err := c.svc.MarkRead(target.ID); err != nil {
			c.logger.Warn("mark read failed", zap.String("contact_id", target.ID), zap.Error(err))
		} else if n > 0 {
			c.logger.Info("marked read", zap.String("contact_id", target.ID), zap.Int64("messages", n))
		}
	}()
}

func (c *Chat) consume(ch <-chan bus.Event, done <-chan struct{}, gen int) {
	for {
		select {
		case evt := <-ch:
			msg, ok := evt.Payload.(*store.Message)
			if !ok {
				continue
			}
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.msgs = mergeMessage(c.msgs, *msg)
			c.mu.Unlock()
		case <-done:
			return
		}
	}
}

// Messages returns a copy of the current thread and the more-available flag.
func (c *Chat) Messages() ([]store.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.Message, len(c.msgs))
	copy(out, c.msgs)
	return out, c.hasMore
}

// Loading reports whether the thread fetch for the current selection is
// still in flight.
func (c *Chat) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Contact returns the currently selected contact, or nil.
func (c *Chat) Contact() *store.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contact
}

// Close tears down the live subscription.
func (c *Chat) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.contact = nil
	c.msgs = nil
}

// mergeMessage inserts a message into a thread unless a message with the
// same id or the same provider message id is already present, then restores
// chronological order. Idempotent against duplicate delivery.
func mergeMessage(msgs []store.Message, m store.Message) []store.Message {
	for _, existing := range msgs {
		if existing.ID == m.ID {
			return msgs
		}
		if m.ProviderMsgID != "" && existing.ProviderMsgID == m.ProviderMsgID {
			return msgs
		}
	}
	msgs = append(msgs, m)
	sort.SliceStable(msgs, func(i, j int) bool {
		return timeline.EffectiveTimestamp(&msgs[i]) < timeline.EffectiveTimestamp(&msgs[j])
	})
	return msgs
}
