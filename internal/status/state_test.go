package status

import (
	"testing"

	"github.com/matheus3301/wamsg/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, AuthRequired},
		{Booting, Connecting},
		{Booting, Error},
		{AuthRequired, Connecting},
		{Connecting, Syncing},
		{Connecting, AuthRequired},
		{Syncing, Ready},
		{Ready, Closed},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(BOOTING -> READY) should fail")
	}
}

func TestClosedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Ready)
	if err := m.Transition(Closed); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Connecting); err == nil {
		t.Error("Transition out of CLOSED should fail")
	}
}

func TestOpen(t *testing.T) {
	m := NewMachine(nil)
	if m.Open() {
		t.Error("Open() = true in BOOTING")
	}
	walkTo(t, m, Syncing)
	if !m.Open() {
		t.Error("Open() = false in SYNCING")
	}
	if err := m.Transition(Ready); err != nil {
		t.Fatal(err)
	}
	if !m.Open() {
		t.Error("Open() = false in READY")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(AuthRequired); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != AuthRequired {
		t.Errorf("change = %v -> %v, want BOOTING -> AUTH_REQUIRED", change.From, change.To)
	}
}

// TestConnectLifecycle simulates a returning user with credentials:
// BOOTING → CONNECTING → SYNCING → READY → CLOSED.
func TestConnectLifecycle(t *testing.T) {
	m := NewMachine(nil)
	steps := []State{Connecting, Syncing, Ready, Closed}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

// TestLoggedOutDuringConnect verifies that a logout signal while
// connecting lands in AUTH_REQUIRED rather than an error state.
func TestLoggedOutDuringConnect(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connecting)
	if err := m.Transition(AuthRequired); err != nil {
		t.Fatalf("CONNECTING -> AUTH_REQUIRED: %v", err)
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:      {},
		AuthRequired: {AuthRequired},
		Connecting:   {AuthRequired, Connecting},
		Syncing:      {Connecting, Syncing},
		Ready:        {Connecting, Syncing, Ready},
		Closed:       {Connecting, Syncing, Ready, Closed},
		Error:        {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
