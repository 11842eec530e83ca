package indexer

import (
	"fmt"
	"time"

	"kiwi/internal/logging"
	"kiwi/internal/metrics"
)

// State is a sync run phase.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateConnecting State = "connecting"
	StateScanning   State = "scanning"
	StateDetecting  State = "detecting"
	StateDeleting   State = "deleting"
	StateUpserting  State = "upserting"
	StateRelating   State = "relating"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// transitions lists the forward edges. Failed is reachable from every
// non-terminal state and is not listed.
var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateConnecting},
	StateConnecting: {StateScanning},
	StateScanning:   {StateDetecting},
	StateDetecting:  {StateDeleting, StateFinalizing},
	StateDeleting:   {StateUpserting},
	StateUpserting:  {StateRelating},
	StateRelating:   {StateFinalizing},
	StateFinalizing: {StateCompleted},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether a run may move from one state to another.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// stateMachine tracks the current phase of one run and records how long
// each phase took.
type stateMachine struct {
	runID     string
	current   State
	enteredAt time.Time
	history   []State
	now       func() time.Time
}

func newStateMachine(runID string, now func() time.Time) *stateMachine {
	return &stateMachine{
		runID:     runID,
		current:   StateIdle,
		enteredAt: now(),
		history:   []State{StateIdle},
		now:       now,
	}
}

// advance moves to the next state. Leaving a working phase records its
// duration.
func (m *stateMachine) advance(to State) error {
	if !CanTransition(m.current, to) {
		return fmt.Errorf("invalid sync state transition %s -> %s", m.current, to)
	}

	now := m.now()
	if m.current != StateIdle {
		elapsed := now.Sub(m.enteredAt)
		metrics.SyncPhaseDuration.WithLabelValues(string(m.current)).Observe(elapsed.Seconds())
		logging.Debug("Sync %s: %s finished in %v", m.runID, m.current, elapsed)
	}

	m.current = to
	m.enteredAt = now
	m.history = append(m.history, to)
	return nil
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) History() []State {
	return append([]State(nil), m.history...)
}
