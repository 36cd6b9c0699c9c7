package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/farmctl/internal/command"
	"github.com/mattjoyce/farmctl/internal/config"
	"github.com/mattjoyce/farmctl/internal/log"
	"github.com/mattjoyce/farmctl/internal/transport"
)

// Route says where a result is displayed.
type Route int

const (
	// RouteStatus overwrites the transient status line.
	RouteStatus Route = iota
	// RouteLog appends to the log view.
	RouteLog
)

func (r Route) String() string {
	if r == RouteLog {
		return "log"
	}
	return "status"
}

// RouteFor maps a deployment mode onto its display route.
func RouteFor(mode config.Mode) Route {
	if mode == config.ModeRemote {
		return RouteLog
	}
	return RouteStatus
}

// Result is the outcome of one dispatch.
type Result struct {
	ID          uint64
	Command     command.Command
	Reply       string
	Err         error
	Route       Route
	StartedAt   time.Time
	CompletedAt time.Time
}

// Cancelled reports whether the dispatch was abandoned through its context.
func (r Result) Cancelled() bool {
	return errors.Is(r.Err, context.Canceled)
}

// Text is the reply, or a readable rendering of the failure.
func (r Result) Text() string {
	switch {
	case r.Err == nil:
		return r.Reply
	case r.Cancelled():
		return "cancelled"
	default:
		return "error: " + r.Err.Error()
	}
}

// Display renders the result as "!<verb> <bot>: <text>".
func (r Result) Display() string {
	return r.Command.Label() + ": " + r.Text()
}

// Duration is the wall time of the round-trip.
func (r Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Dispatcher fires commands at the worker asynchronously.
type Dispatcher struct {
	client transport.Client
	route  Route
	logger *slog.Logger

	nextID atomic.Uint64

	mu       sync.Mutex
	inflight map[uint64]context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Dispatcher that routes results according to mode.
func New(client transport.Client, mode config.Mode) *Dispatcher {
	return &Dispatcher{
		client:   client,
		route:    RouteFor(mode),
		logger:   log.WithComponent("dispatch"),
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Route returns the display route used for every result.
func (d *Dispatcher) Route() Route {
	return d.route
}

// Dispatch starts sending cmd and returns its ID immediately. done is called
// exactly once, from the dispatch goroutine, when the round-trip finishes.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command, done func(Result)) uint64 {
	id := d.nextID.Add(1)
	dctx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	d.inflight[id] = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		res := d.execute(dctx, id, cmd)

		d.mu.Lock()
		delete(d.inflight, id)
		d.mu.Unlock()
		cancel()

		if done != nil {
			done(res)
		}
	}()
	return id
}

// execute performs the round-trip, turning errors and panics into result text.
func (d *Dispatcher) execute(ctx context.Context, id uint64, cmd command.Command) (res Result) {
	logger := d.logger.With(slog.Uint64("dispatch_id", id), slog.String("verb", cmd.Verb()))
	if cmd.Bot() != "" {
		logger = logger.With(slog.String("bot", cmd.Bot()))
	}

	res = Result{ID: id, Command: cmd, Route: d.route, StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			res.Reply = ""
			res.Err = fmt.Errorf("transport panic: %v", r)
			logger.Error("dispatch panicked", "panic", r)
		}
		res.CompletedAt = time.Now()
	}()

	logger.Debug("dispatching command", "line", cmd.String())
	reply, err := d.client.Send(ctx, cmd.String())
	if err != nil {
		res.Err = err
		if res.Cancelled() {
			logger.Info("dispatch cancelled")
		} else {
			logger.Warn("dispatch failed", "error", err)
		}
		return res
	}

	res.Reply = reply
	logger.Debug("dispatch completed", "reply_bytes", len(reply))
	return res
}

// CancelAll cancels every in-flight dispatch and returns how many there were.
// Their callbacks still fire, with a cancellation error.
func (d *Dispatcher) CancelAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cancel := range d.inflight {
		cancel()
	}
	n := len(d.inflight)
	if n > 0 {
		d.logger.Info("cancelled in-flight dispatches", "count", n)
	}
	return n
}

// InFlight returns the number of dispatches not yet completed.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// Wait blocks until every dispatch started so far has completed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
