package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageInserted, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageInserted {
			t.Errorf("got kind %q, want %q", evt.Kind, KindMessageInserted)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("contact.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageInserted})
	b.Publish(Event{Kind: KindContactUpdated})

	select {
	case evt := <-ch:
		if evt.Kind != KindContactUpdated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindContactUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure message event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestSubscribeFuncPredicate(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeFunc("message.", 10, func(evt Event) bool {
		s, ok := evt.Payload.(string)
		return ok && s == "wanted"
	})
	defer unsub()

	b.Publish(Event{Kind: KindMessageInserted, Payload: "other"})
	b.Publish(Event{Kind: KindMessageInserted, Payload: "wanted"})

	select {
	case evt := <-ch:
		if evt.Payload != "wanted" {
			t.Errorf("got payload %v, want wanted", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("predicate leaked event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()

	b.Publish(Event{Kind: KindMessageInserted})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}
