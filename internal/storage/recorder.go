package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattjoyce/farmctl/internal/log"
	"github.com/mattjoyce/farmctl/internal/supervisor"
)

const recordTimeout = 5 * time.Second

// RunRecorder is a supervisor.Observer that writes each worker run to the
// ledger. Output lines are not recorded.
type RunRecorder struct {
	store  *RunStore
	binary string
	logger *slog.Logger
	runID  string
}

// NewRunRecorder records runs of binary into store.
func NewRunRecorder(store *RunStore, binary string) *RunRecorder {
	return &RunRecorder{
		store:  store,
		binary: binary,
		logger: log.WithComponent("ledger"),
	}
}

// Observe implements supervisor.Observer.
func (r *RunRecorder) Observe(e supervisor.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	switch e.Type {
	case supervisor.EventStarted:
		id, err := r.store.Begin(ctx, r.binary, e.PID, e.At)
		if err != nil {
			r.logger.Error("failed to record worker start", "pid", e.PID, "error", err)
			return
		}
		r.runID = id
		log.WithRun(id).Info("worker run recorded", "pid", e.PID)
	case supervisor.EventExited:
		if r.runID == "" {
			return
		}
		if err := r.store.End(ctx, r.runID, e.At, e.ExitCode, e.Unexpected, e.Stderr); err != nil {
			r.logger.Error("failed to record worker exit", "run_id", r.runID, "error", err)
		}
		r.runID = ""
	}
}

// RunID returns the ID of the run in progress, if any.
func (r *RunRecorder) RunID() string {
	return r.runID
}
