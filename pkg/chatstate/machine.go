// Package chatstate models the chat view's lifecycle as an explicit finite
// state machine, replacing the original's ad hoc boolean-flag combinations
// (welcome vs. loading vs. chat view) with named states and transitions.
package chatstate

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type State string

const (
	// StateIdle: no conversation selected (welcome screen).
	StateIdle State = "idle"
	// StateLoading: a conversation is being fetched.
	StateLoading State = "loading"
	// StateTransitioning: messages loaded, view switching over.
	StateTransitioning State = "transitioning"
	// StateActive: the conversation is displayed and interactive.
	StateActive State = "active"
	// StateError: loading failed; the user can retry.
	StateError State = "error"
)

type Trigger string

const (
	TriggerSelect    Trigger = "select"
	TriggerLoaded    Trigger = "loaded"
	TriggerDisplayed Trigger = "displayed"
	TriggerFail      Trigger = "fail"
	TriggerRetry     Trigger = "retry"
	TriggerClear     Trigger = "clear"
)

var transitions = map[State]map[Trigger]State{
	StateIdle: {
		TriggerSelect: StateLoading,
	},
	StateLoading: {
		TriggerLoaded: StateTransitioning,
		TriggerFail:   StateError,
		TriggerClear:  StateIdle,
	},
	StateTransitioning: {
		TriggerDisplayed: StateActive,
		TriggerFail:      StateError,
		TriggerClear:     StateIdle,
	},
	StateActive: {
		// Selecting another conversation goes back through loading.
		TriggerSelect: StateLoading,
		TriggerFail:   StateError,
		TriggerClear:  StateIdle,
	},
	StateError: {
		TriggerRetry:  StateLoading,
		TriggerSelect: StateLoading,
		TriggerClear:  StateIdle,
	},
}

// Machine is a small, mutex-guarded FSM starting in StateIdle.
type Machine struct {
	mu    sync.Mutex
	state State
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies a trigger. Undefined transitions return an error and leave the
// state unchanged.
func (m *Machine) Fire(trigger Trigger) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[m.state][trigger]
	if !ok {
		return m.state, errors.Errorf("no transition from %s on %s", m.state, trigger)
	}

	log.Trace().
		Str("from", string(m.state)).
		Str("trigger", string(trigger)).
		Str("to", string(next)).
		Msg("chat view state transition")

	m.state = next
	return next, nil
}
