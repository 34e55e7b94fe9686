package view

import (
	"sync"
	"testing"
	"time"

	"github.com/chatdeck/chatdeck/internal/bus"
	"github.com/chatdeck/chatdeck/internal/store"
	"go.uber.org/zap"
)

type mockThreadLoader struct {
	mu       sync.Mutex
	threads  map[string][]store.Message
	blocked  map[string]chan struct{}
	markedID []string
}

func newMockThreadLoader() *mockThreadLoader {
	return &mockThreadLoader{
		threads: make(map[string][]store.Message),
		blocked: make(map[string]chan struct{}),
	}
}

func (m *mockThreadLoader) Thread(c *store.Contact) ([]store.Message, bool, error) {
	m.mu.Lock()
	gate := m.blocked[c.ID]
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]store.Message, len(m.threads[c.ID]))
	copy(msgs, m.threads[c.ID])
	return msgs, false, nil
}

func (m *mockThreadLoader) MarkRead(contactID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedID = append(m.markedID, contactID)
	return 1, nil
}

func (m *mockThreadLoader) marked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.markedID))
	copy(out, m.markedID)
	return out
}

func TestChatSelectLoadsThreadAndMarksRead(t *testing.T) {
	loader := newMockThreadLoader()
	loader.threads["c1"] = []store.Message{
		{ID: "m1", ContactID: "c1", SentAt: 1000},
		{ID: "m2", ContactID: "c1", SentAt: 2000},
	}
	c := NewChat(loader, bus.New(), zap.NewNop())
	defer c.Close()

	c.Select(&store.Contact{ID: "c1", Phone: "555"})

	waitFor(t, func() bool { return !c.Loading() }, "thread load")
	msgs, _ := c.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m1" {
		t.Fatalf("got %d messages", len(msgs))
	}
	waitFor(t, func() bool {
		m := loader.marked()
		return len(m) == 1 && m[0] == "c1"
	}, "mark read call")
}

func TestChatStaleFetchDropped(t *testing.T) {
	loader := newMockThreadLoader()
	gate := make(chan struct{})
	loader.blocked["a"] = gate
	loader.threads["a"] = []store.Message{{ID: "old-a", ContactID: "a", SentAt: 1000}}
	loader.threads["b"] = []store.Message{{ID: "b1", ContactID: "b", SentAt: 2000}}

	c := NewChat(loader, bus.New(), zap.NewNop())
	defer c.Close()

	// Switch away while the first fetch is still in flight.
	c.Select(&store.Contact{ID: "a", Phone: "111"})
	c.Select(&store.Contact{ID: "b", Phone: "222"})

	waitFor(t, func() bool { return !c.Loading() }, "second thread load")
	close(gate)
	time.Sleep(50 * time.Millisecond)

	msgs, _ := c.Messages()
	if len(msgs) != 1 || msgs[0].ID != "b1" {
		t.Fatalf("late response overwrote the view: %v", msgs)
	}
	if got := c.Contact(); got == nil || got.ID != "b" {
		t.Error("selected contact changed")
	}
}

func TestChatMergesLiveEventDuringFetch(t *testing.T) {
	loader := newMockThreadLoader()
	gate := make(chan struct{})
	loader.blocked["c1"] = gate
	loader.threads["c1"] = []store.Message{{ID: "m1", ContactID: "c1", SentAt: 1000}}

	b := bus.New()
	c := NewChat(loader, b, zap.NewNop())
	defer c.Close()

	c.Select(&store.Contact{ID: "c1", Phone: "555"})

	// Lands before the fetch returns; must survive the merge.
	b.Publish(bus.Event{Kind: bus.KindMessageInserted, Payload: &store.Message{
		ID: "live", ContactID: "c1", SentAt: 3000,
	}})
	waitFor(t, func() bool {
		msgs, _ := c.Messages()
		return len(msgs) == 1
	}, "live event buffered")

	close(gate)
	waitFor(t, func() bool {
		msgs, _ := c.Messages()
		return len(msgs) == 2 && msgs[0].ID == "m1" && msgs[1].ID == "live"
	}, "fetch merged with live event")
}

func TestChatLiveEventsScopedToSelection(t *testing.T) {
	loader := newMockThreadLoader()
	b := bus.New()
	c := NewChat(loader, b, zap.NewNop())
	defer c.Close()

	c.Select(&store.Contact{ID: "c1", Phone: "555"})
	waitFor(t, func() bool { return !c.Loading() }, "thread load")

	b.Publish(bus.Event{Kind: bus.KindMessageInserted, Payload: &store.Message{
		ID: "other", ContactID: "c2", FromNumber: "999", SentAt: 1000,
	}})
	b.Publish(bus.Event{Kind: bus.KindMessageInserted, Payload: &store.Message{
		ID: "mine", ContactID: "c1", SentAt: 2000,
	}})

	waitFor(t, func() bool {
		msgs, _ := c.Messages()
		return len(msgs) == 1 && msgs[0].ID == "mine"
	}, "scoped live event")
}

func TestChatDuplicateEventIdempotent(t *testing.T) {
	loader := newMockThreadLoader()
	loader.threads["c1"] = []store.Message{
		{ID: "m1", ContactID: "c1", ProviderMsgID: "wamid.1", SentAt: 1000},
	}
	b := bus.New()
	c := NewChat(loader, b, zap.NewNop())
	defer c.Close()

	c.Select(&store.Contact{ID: "c1", Phone: "555"})
	waitFor(t, func() bool { return !c.Loading() }, "thread load")

	// Same row redelivered under a different local id.
	b.Publish(bus.Event{Kind: bus.KindMessageInserted, Payload: &store.Message{
		ID: "dup", ContactID: "c1", ProviderMsgID: "wamid.1", SentAt: 1000,
	}})
	b.Publish(bus.Event{Kind: bus.KindMessageInserted, Payload: &store.Message{
		ID: "m2", ContactID: "c1", SentAt: 2000,
	}})

	waitFor(t, func() bool {
		msgs, _ := c.Messages()
		return len(msgs) == 2 && msgs[1].ID == "m2"
	}, "dedup by provider id")
}

func TestChatCloseStopsLiveUpdates(t *testing.T) {
	loader := newMockThreadLoader()
	b := bus.New()
	c := NewChat(loader, b, zap.NewNop())

	c.Select(&store.Contact{ID: "c1", Phone: "555"})
	waitFor(t, func() bool { return !c.Loading() }, "thread load")
	c.Close()

	b.Publish(bus.Event{Kind: bus.KindMessageInserted, Payload: &store.Message{
		ID: "late", ContactID: "c1", SentAt: 1000,
	}})
	time.Sleep(50 * time.Millisecond)

	if msgs, _ := c.Messages(); len(msgs) != 0 {
		t.Errorf("closed chat kept receiving events: %v", msgs)
	}
	if c.Contact() != nil {
		t.Error("closed chat kept a selection")
	}
}

func TestMergeMessageOrdersByEffectiveTimestamp(t *testing.T) {
	msgs := []store.Message{
		{ID: "a", SentAt: 1000},
		{ID: "c", SentAt: 3000},
	}
	msgs = mergeMessage(msgs, store.Message{ID: "b", CreatedAt: 2000})
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, msgs[i].ID, id)
		}
	}
	if msgs = mergeMessage(msgs, store.Message{ID: "b"}); len(msgs) != 3 {
		t.Errorf("duplicate id inserted, len = %d", len(msgs))
	}
}
