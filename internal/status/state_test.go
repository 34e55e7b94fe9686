package status

import (
	"errors"
	"testing"
	"time"

	"github.com/chatdeck/chatdeck/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want %s", m.Current(), Booting)
	}
}

func TestValidTransitions(t *testing.T) {
	m := NewMachine(nil)
	steps := []State{Ready, Degraded, Ready, Error, Booting}
	for _, to := range steps {
		if err := m.Transition(to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	if m.Current() != Booting {
		t.Errorf("final state = %s", m.Current())
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Degraded); err == nil {
		t.Error("BOOTING -> DEGRADED should be rejected")
	}
	if m.Current() != Booting {
		t.Errorf("state changed on invalid transition: %s", m.Current())
	}
}

func TestSameStateIsNoOp(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("console.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Booting); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		t.Errorf("no-op transition published %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransitionPublishesChange(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("console.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Ready); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type %T", evt.Payload)
		}
		if change.From != Booting || change.To != Ready {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("no status event published")
	}
}

func TestObserveCycle(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err != nil {
		t.Fatal(err)
	}

	m.ObserveCycle(errors.New("refresh failed"))
	if m.Current() != Degraded {
		t.Errorf("state = %s, want %s after failed cycle", m.Current(), Degraded)
	}

	m.ObserveCycle(nil)
	if m.Current() != Ready {
		t.Errorf("state = %s, want %s after clean cycle", m.Current(), Ready)
	}
}

func TestObserveCycleWhileBootingIsIgnored(t *testing.T) {
	m := NewMachine(nil)
	m.ObserveCycle(errors.New("early failure"))
	if m.Current() != Booting {
		t.Errorf("state = %s, cycle result must not move a booting machine", m.Current())
	}
}
