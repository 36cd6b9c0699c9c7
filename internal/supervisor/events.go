package supervisor

import "time"

// EventType identifies a supervisor lifecycle event.
type EventType int

const (
	EventStarted EventType = iota + 1
	EventOutput
	EventExited
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventOutput:
		return "output"
	case EventExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Event is delivered to the Observer. Output events carry Line; the Exited
// event carries ExitCode, Unexpected and the captured stderr tail.
type Event struct {
	Type       EventType
	At         time.Time
	PID        int
	Line       string
	ExitCode   int
	Unexpected bool
	Stderr     string
}

// Observer receives supervisor events. Calls for one run never overlap and
// arrive in order: Started, zero or more Output, then exactly one Exited.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans an event out to several observers in order.
type Observers []Observer

func (obs Observers) Observe(e Event) {
	for _, o := range obs {
		if o != nil {
			o.Observe(e)
		}
	}
}
