package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/chatdeck/chatdeck/internal/bus"
)

// State represents a console daemon runtime state.
type State string

const (
	Booting State = "BOOTING"
	Ready   State = "READY"
	// Degraded means background refresh or event delivery is failing and the
	// console is running on polling alone. Never fatal.
	Degraded State = "DEGRADED"
	Error    State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:  {Ready, Error},
	Ready:    {Degraded, Error},
	Degraded: {Ready, Error},
	Error:    {Booting},
}

// Machine tracks and enforces daemon runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// ObserveCycle records the outcome of one background refresh cycle, moving
// between Ready and Degraded. Invalid transitions (e.g. still Booting) are
// ignored; a cycle result must never crash anything.
func (m *Machine) ObserveCycle(err error) {
	if err != nil {
		_ = m.Transition(Degraded)
		return
	}
	_ = m.Transition(Ready)
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
