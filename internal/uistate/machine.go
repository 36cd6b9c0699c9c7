// Package uistate tracks the controller's UI state and decides which actions
// are permitted. A Machine is owned by the UI goroutine; it has no locks.
package uistate

import (
	"errors"
	"fmt"
)

// State is the controller state shown to the user.
type State int

const (
	Stopped State = iota
	Starting
	RunningIdle
	RunningBusy
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case RunningIdle:
		return "running"
	case RunningBusy:
		return "busy"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Running reports whether s is one of the Running-* states.
func (s State) Running() bool {
	return s == RunningIdle || s == RunningBusy
}

// ErrNotPermitted is returned when an action is not allowed in the current state.
var ErrNotPermitted = errors.New("action not permitted")

// Machine holds the UI state, the bot roster and the set of in-flight dispatches.
type Machine struct {
	state    State
	roster   []string
	inflight map[uint64]struct{}
	crashed  bool
}

// New returns a Machine in the Stopped state with an empty roster.
func New() *Machine {
	return &Machine{
		state:    Stopped,
		roster:   []string{},
		inflight: make(map[uint64]struct{}),
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Roster returns the current bot roster. Callers must not modify it.
func (m *Machine) Roster() []string { return m.roster }

// Busy returns the number of in-flight dispatches.
func (m *Machine) Busy() int { return len(m.inflight) }

// Crashed reports whether the last transition to Stopped was an unexpected exit.
func (m *Machine) Crashed() bool { return m.crashed }

// CanStart reports whether a start is permitted; only Stopped allows it.
func (m *Machine) CanStart() bool { return m.state == Stopped }

// CanStop allows stopping while Starting so a worker that never reports bots
// can still be shut down.
func (m *Machine) CanStop() bool { return m.state == Starting || m.state.Running() }

// CanDispatch reports whether commands may be dispatched to the worker.
func (m *Machine) CanDispatch() bool { return m.state.Running() }

// CanRefresh reports whether a manual roster refresh is permitted.
func (m *Machine) CanRefresh() bool { return m.state.Running() }

// BotControlsEnabled reports whether bot-scoped controls should be enabled.
func (m *Machine) BotControlsEnabled() bool {
	return m.CanDispatch() && len(m.roster) > 0
}

func (m *Machine) deny(action string) error {
	return fmt.Errorf("%s while %s: %w", action, m.state, ErrNotPermitted)
}

// Start moves Stopped to Starting. Call StartFailed if the launch fails.
func (m *Machine) Start() error {
	if !m.CanStart() {
		return m.deny("start")
	}
	m.state = Starting
	m.crashed = false
	return nil
}

// StartFailed returns to Stopped after a failed launch.
func (m *Machine) StartFailed() {
	if m.state == Starting {
		m.reset()
	}
}

// RosterRefreshed replaces the roster. While Starting, a roster with at least
// one bot moves the machine to Running-Idle. Results arriving while Stopped or
// Stopping are stale and ignored; the return value reports whether they were applied.
func (m *Machine) RosterRefreshed(ids []string) bool {
	switch m.state {
	case Stopped, Stopping:
		return false
	}
	m.roster = append([]string{}, ids...)
	if m.state == Starting && len(m.roster) > 0 {
		m.state = RunningIdle
	}
	return true
}

// DispatchBegan records an in-flight dispatch and moves to Running-Busy.
func (m *Machine) DispatchBegan(id uint64) error {
	if !m.CanDispatch() {
		return m.deny("dispatch")
	}
	m.inflight[id] = struct{}{}
	m.state = RunningBusy
	return nil
}

// DispatchEnded removes a dispatch; the last one returns to Running-Idle.
// Unknown IDs (for example completions arriving after a stop) are ignored.
func (m *Machine) DispatchEnded(id uint64) {
	if _, ok := m.inflight[id]; !ok {
		return
	}
	delete(m.inflight, id)
	if len(m.inflight) == 0 && m.state == RunningBusy {
		m.state = RunningIdle
	}
}

// Stop moves to Stopping.
func (m *Machine) Stop() error {
	if !m.CanStop() {
		return m.deny("stop")
	}
	m.state = Stopping
	return nil
}

// Exited handles the worker exit. An exit while Stopping completes the stop;
// an unexpected exit while Starting or Running-* is recorded as a crash.
// Either way the machine ends Stopped with an empty roster.
func (m *Machine) Exited(unexpected bool) {
	switch m.state {
	case Stopped:
		return
	case Stopping:
		m.reset()
	default:
		m.reset()
		m.crashed = unexpected
	}
}

func (m *Machine) reset() {
	m.state = Stopped
	m.roster = []string{}
	m.inflight = make(map[uint64]struct{})
}
