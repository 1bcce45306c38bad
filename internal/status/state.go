package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wamsg/internal/bus"
)

// State represents a session runtime state. A CLI invocation walks
// forward through these once; there is no reconnect loop — a dropped
// connection ends the invocation.
type State string

const (
	Booting      State = "BOOTING"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Syncing      State = "SYNCING"
	Ready        State = "READY"
	Closed       State = "CLOSED"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      {AuthRequired, Connecting, Error},
	AuthRequired: {Connecting, Closed, Error},
	Connecting:   {Syncing, AuthRequired, Closed, Error},
	Syncing:      {Ready, AuthRequired, Closed, Error},
	Ready:        {AuthRequired, Closed, Error},
	Closed:       {},
	Error:        {},
}

// Machine tracks and enforces session state transitions.
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

// Open reports whether the session has reached a usable state.
func (m *Machine) Open() bool {
	s := m.Current()
	return s == Syncing || s == Ready
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

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
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
