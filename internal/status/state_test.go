package status

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/nexus/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{Connecting, Online}},
		{[]State{Connecting, Failed}},
		{[]State{Connecting, Online, Closed}},
		{[]State{Connecting, Online, Failed}},
		{[]State{Connecting, Online, Closed, Connecting}},
		{[]State{Failed}},
	}
	for _, tt := range tests {
		name := ""
		for _, s := range tt.path {
			name += "->" + string(s)
		}
		t.Run(name, func(t *testing.T) {
			m := NewMachine(nil)
			for _, s := range tt.path {
				if err := m.Transition(s); err != nil {
					t.Fatalf("Transition(%s) error = %v", s, err)
				}
			}
			if m.Current() != tt.path[len(tt.path)-1] {
				t.Errorf("state = %s, want %s", m.Current(), tt.path[len(tt.path)-1])
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Online); err == nil {
		t.Error("Transition(IDLE -> ONLINE) should fail")
	}
	if m.Current() != Idle {
		t.Errorf("state changed on invalid transition: %s", m.Current())
	}
}

// TestFailedIsTerminal verifies there is no way out of FAILED: a connection
// error disables real-time features until restart.
func TestFailedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Transition(Connecting)
	if err := m.Fail(errors.New("handshake refused")); err != nil {
		t.Fatal(err)
	}
	for _, to := range []State{Idle, Connecting, Online, Closed} {
		if err := m.Transition(to); err == nil {
			t.Errorf("Transition(FAILED -> %s) should fail", to)
		}
	}
	if m.LastError() != "handshake refused" {
		t.Errorf("LastError() = %q", m.LastError())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("engine.", 10)
	defer unsub()

	m := NewMachine(b)
	_ = m.Transition(Connecting)
	if err := m.Fail(errors.New("boom")); err != nil {
		t.Fatal(err)
	}

	var changes []StatusChange
	for len(changes) < 2 {
		select {
		case evt := <-ch:
			if evt.Kind != bus.ConnectionChanged {
				t.Errorf("event kind = %q, want %s", evt.Kind, bus.ConnectionChanged)
			}
			change, ok := evt.Payload.(StatusChange)
			if !ok {
				t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
			}
			changes = append(changes, change)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for status events")
		}
	}
	if changes[0].From != Idle || changes[0].To != Connecting {
		t.Errorf("first change = %+v", changes[0])
	}
	if changes[1].To != Failed || changes[1].Error != "boom" {
		t.Errorf("second change = %+v", changes[1])
	}
}
