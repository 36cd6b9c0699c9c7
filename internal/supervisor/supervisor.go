// Package supervisor owns a locally spawned worker process: it launches the
// worker, streams its stdout line by line to an Observer and terminates it
// with SIGTERM followed by SIGKILL after a grace period.
package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mattjoyce/farmctl/internal/log"
)

const (
	// maxStderrBytes caps the amount of stderr captured from the worker.
	maxStderrBytes = 64 * 1024

	// maxLineBytes caps a single stdout line.
	maxLineBytes = 1024 * 1024

	// defaultGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	defaultGracePeriod = 5 * time.Second

	// outputDrainDelay bounds how long output is read after the worker exits.
	// Processes the worker left behind holding its stdout or stderr are
	// killed when it elapses.
	outputDrainDelay = 500 * time.Millisecond
)

var (
	// ErrBinaryNotFound is returned when the executable path is invalid.
	ErrBinaryNotFound = errors.New("worker binary not found")

	// ErrLaunchFailed is returned when the OS refuses to spawn the worker.
	ErrLaunchFailed = errors.New("worker launch failed")

	// ErrAlreadyRunning is returned by Start while a worker is running.
	ErrAlreadyRunning = errors.New("worker already running")
)

type runState int

const (
	stateNotStarted runState = iota
	stateRunning
	stateStopping
	stateExited
)

// Config describes how to launch the worker.
type Config struct {
	Binary      string
	Args        []string
	WorkDir     string
	Env         []string
	GracePeriod time.Duration
}

// Supervisor launches and terminates one worker process at a time.
type Supervisor struct {
	cfg      Config
	observer Observer
	logger   *slog.Logger

	mu    sync.Mutex
	state runState
	cmd   *exec.Cmd
	done  chan struct{}
}

// New creates a Supervisor. observer may be nil.
func New(cfg Config, observer Observer) *Supervisor {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = defaultGracePeriod
	}
	if observer == nil {
		observer = ObserverFunc(func(Event) {})
	}
	return &Supervisor{
		cfg:      cfg,
		observer: observer,
		logger:   log.WithComponent("supervisor"),
	}
}

// Start spawns the worker and begins streaming its output. It fails with
// ErrBinaryNotFound or ErrLaunchFailed; after a failure the supervisor can be
// started again.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	cmd, stdout, stderr, err := s.launchLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	done := s.done
	s.mu.Unlock()

	// Started is emitted before the reader goroutine exists so it always
	// precedes the first Output event.
	s.observer.Observe(Event{Type: EventStarted, At: time.Now(), PID: cmd.Process.Pid})
	go s.wait(cmd, stdout, stderr, done)
	return nil
}

func (s *Supervisor) launchLocked() (*exec.Cmd, *os.File, *cappedBuffer, error) {
	if s.state == stateRunning || s.state == stateStopping {
		return nil, nil, nil, ErrAlreadyRunning
	}
	if err := ValidateBinary(s.cfg.Binary); err != nil {
		s.logger.Error("worker binary invalid", "binary", s.cfg.Binary, "error", err)
		return nil, nil, nil, err
	}

	// Don't use CommandContext - termination is managed by Stop.
	cmd := exec.Command(s.cfg.Binary, s.cfg.Args...)
	cmd.Dir = s.cfg.WorkDir
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.cfg.Env...)
	}

	// The worker leads its own process group. Reaping must not depend on
	// stdout EOF, so stdout is a plain pipe.
	setProcessGroup(cmd)
	cmd.WaitDelay = outputDrainDelay

	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: create stdout pipe: %v", ErrLaunchFailed, err)
	}
	cmd.Stdout = stdoutW
	stderr := &cappedBuffer{limit: maxStderrBytes}
	cmd.Stderr = stderr

	s.logger.Info("starting worker", "binary", s.cfg.Binary, "args", s.cfg.Args, "work_dir", s.cfg.WorkDir)
	err = cmd.Start()
	_ = stdoutW.Close()
	if err != nil {
		_ = stdout.Close()
		s.logger.Error("failed to start worker", "error", err)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil, fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
		}
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	s.cmd = cmd
	s.state = stateRunning
	s.done = make(chan struct{})
	s.logger.Info("worker started", "pid", cmd.Process.Pid)
	return cmd, stdout, stderr, nil
}

// wait reaps the worker while its stdout is streamed, then emits the exit
// event after the last output line.
func (s *Supervisor) wait(cmd *exec.Cmd, stdout *os.File, stderr *cappedBuffer, done chan struct{}) {
	pid := cmd.Process.Pid

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.readOutput(pid, stdout)
	}()

	waitErr := cmd.Wait()
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	select {
	case <-drained:
	case <-time.After(outputDrainDelay):
		s.logger.Warn("worker exited but its stdout is still held open, killing leftover processes", "pid", pid)
		_ = signalGroup(cmd, syscall.SIGKILL)
		_ = stdout.Close()
		<-drained
	}
	_ = stdout.Close()

	s.mu.Lock()
	unexpected := s.state != stateStopping
	s.state = stateExited
	s.mu.Unlock()

	stderrTail := stderr.String()
	switch {
	case unexpected:
		s.logger.Error("worker exited unexpectedly", "pid", pid, "exit_code", exitCode, "error", waitErr, "stderr", stderrTail)
	default:
		s.logger.Info("worker stopped", "pid", pid, "exit_code", exitCode)
	}

	s.observer.Observe(Event{
		Type:       EventExited,
		At:         time.Now(),
		PID:        pid,
		ExitCode:   exitCode,
		Unexpected: unexpected,
		Stderr:     stderrTail,
	})
	close(done)
}

// readOutput emits one Output event per stdout line until EOF or until the
// pipe is closed by wait.
func (s *Supervisor) readOutput(pid int, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		s.observer.Observe(Event{Type: EventOutput, At: time.Now(), PID: pid, Line: scanner.Text()})
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.logger.Warn("stdout stream interrupted", "pid", pid, "error", err)
		// Keep draining so the worker never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}
}

// Stop sends SIGTERM to the worker's process group, waits for the grace
// period and then sends SIGKILL. It returns once the worker has exited. Calling Stop when no worker is
// running is a no-op; concurrent callers all wait for the same exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	switch s.state {
	case stateRunning:
	case stateStopping:
		done := s.done
		s.mu.Unlock()
		<-done
		return
	default:
		s.mu.Unlock()
		return
	}
	s.state = stateStopping
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	logger := s.logger.With("pid", cmd.Process.Pid)
	logger.Info("stopping worker, sending SIGTERM")
	if err := signalGroup(cmd, syscall.SIGTERM); err != nil {
		logger.Warn("failed to send SIGTERM, killing", "error", err)
		if err := signalGroup(cmd, syscall.SIGKILL); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		<-done
		return
	}

	grace := time.NewTimer(s.cfg.GracePeriod)
	defer grace.Stop()

	select {
	case <-done:
		logger.Info("worker exited after SIGTERM")
	case <-grace.C:
		logger.Warn("worker did not exit after SIGTERM, sending SIGKILL", "grace_period", s.cfg.GracePeriod)
		if err := signalGroup(cmd, syscall.SIGKILL); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		<-done
	}
}

// Running reports whether a worker process is alive (including while stopping).
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning || s.state == stateStopping
}

// PID returns the current worker PID, or 0 if none is running.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil || s.state == stateExited {
		return 0
	}
	return s.cmd.Process.Pid
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
type cappedBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
