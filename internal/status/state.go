package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/nexus/internal/bus"
)

// State is the lifecycle state of the real-time connection.
type State string

const (
	Idle       State = "IDLE"
	Connecting State = "CONNECTING"
	Online     State = "ONLINE"
	Closed     State = "CLOSED"
	// Failed is terminal: real-time features stay off until the client restarts.
	Failed State = "FAILED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:       {Connecting, Failed},
	Connecting: {Online, Failed},
	Online:     {Closed, Failed},
	Closed:     {Connecting},
	Failed:     {},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	lastErr string
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// LastError returns the error message recorded by the last Fail.
func (m *Machine) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	return m.transition(to, "")
}

// Fail moves to Failed and records cause for the user-visible banner.
func (m *Machine) Fail(cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return m.transition(Failed, msg)
}

func (m *Machine) transition(to State, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if errMsg != "" {
		m.lastErr = errMsg
	}
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.ConnectionChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From:  from,
				To:    to,
				Error: errMsg,
			},
		})
	}
	return nil
}

// StatusChange is the payload for connection change events.
type StatusChange struct {
	From  State
	To    State
	Error string
}
