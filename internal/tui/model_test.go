package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/farmctl/internal/config"
	"github.com/mattjoyce/farmctl/internal/dispatch"
	"github.com/mattjoyce/farmctl/internal/log"
	"github.com/mattjoyce/farmctl/internal/supervisor"
	"github.com/mattjoyce/farmctl/internal/transport"
	"github.com/mattjoyce/farmctl/internal/transport/mocks"
	"github.com/mattjoyce/farmctl/internal/uistate"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", nil) // Suppress logs in tests
	os.Exit(m.Run())
}

const twoBots = "<ASF> Bot alice is idle.\n<ASF> Bot bob is farming."

type fakeWorker struct {
	startErr error
	running  bool
	starts   int
	stops    int
}

func (w *fakeWorker) Start() error {
	w.starts++
	if w.startErr != nil {
		return w.startErr
	}
	w.running = true
	return nil
}

func (w *fakeWorker) Stop() {
	w.stops++
	w.running = false
}

func (w *fakeWorker) Running() bool { return w.running }

type harness struct {
	client *mocks.MockClient
	worker *fakeWorker
	copied []string
}

func newHarness(t *testing.T, mode config.Mode) (*harness, Model) {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &harness{client: mocks.NewMockClient(ctrl), worker: &fakeWorker{}}
	opts := Options{
		Mode:       mode,
		Endpoint:   "http://127.0.0.1:1242",
		Client:     h.client,
		Dispatcher: dispatch.New(h.client, mode),
		StatusVerb: "statusall",
		Copy: func(s string) error {
			h.copied = append(h.copied, s)
			return nil
		},
	}
	if mode == config.ModeLocal {
		opts.Worker = h.worker
	}
	m := New(context.Background(), opts)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return h, m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok, "Update must return a Model")
	return nm, cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd, "expected a command")
	return update(t, m, cmd())
}

func press(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runningLocal drives a local model through start until bots are listed.
func runningLocal(t *testing.T) (*harness, Model) {
	t.Helper()
	h, m := newHarness(t, config.ModeLocal)
	h.client.EXPECT().Send(gomock.Any(), "statusall").Return(twoBots, nil)

	m, cmd := update(t, m, press("s"))
	require.Equal(t, uistate.Starting, m.machine.State())
	m, cmd = run(t, m, cmd) // startResultMsg
	m, cmd = run(t, m, cmd) // refreshDueMsg (no settle delay)
	m, _ = run(t, m, cmd)   // rosterMsg
	require.Equal(t, uistate.RunningIdle, m.machine.State())
	return h, m
}

func TestLocalStartReachesRunningIdle(t *testing.T) {
	h, m := runningLocal(t)
	assert.Equal(t, 1, h.worker.starts)
	assert.Equal(t, []string{"alice", "bob"}, m.machine.Roster())
	assert.Equal(t, "alice", m.selectedBot())
	assert.Contains(t, m.status, "2 bot(s) ready")
}

func TestStartFailureStaysStopped(t *testing.T) {
	h, m := newHarness(t, config.ModeLocal)
	h.worker.startErr = fmt.Errorf("%w: /opt/worker", supervisor.ErrBinaryNotFound)

	m, cmd := update(t, m, press("s"))
	m, cmd = run(t, m, cmd)
	assert.Nil(t, cmd)
	assert.Equal(t, uistate.Stopped, m.machine.State())
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "worker binary not found")
}

func TestPreflightBlocksStart(t *testing.T) {
	h, m := newHarness(t, config.ModeLocal)
	m.opts.Preflight = func(context.Context) error { return errors.New("worker already running (pid 99)") }

	m, cmd := update(t, m, press("s"))
	m, _ = run(t, m, cmd)
	assert.Equal(t, 0, h.worker.starts)
	assert.Equal(t, uistate.Stopped, m.machine.State())
	assert.Contains(t, m.status, "pid 99")
}

func TestStartingRetriesUntilBotsAppear(t *testing.T) {
	h, m := newHarness(t, config.ModeLocal)
	h.client.EXPECT().Send(gomock.Any(), "statusall").Return("", &transport.Error{Kind: transport.KindUnreachable, Op: "send", Err: errors.New("refused")})

	m, cmd := update(t, m, press("s"))
	m, cmd = run(t, m, cmd)
	m, cmd = run(t, m, cmd)
	m, cmd = run(t, m, cmd)
	assert.Equal(t, uistate.Starting, m.machine.State())
	assert.NotNil(t, cmd, "a retry should be scheduled")

	// Refresh results from a superseded start are ignored.
	m.startGen++
	m, cmd = update(t, m, rosterMsg{gen: m.startGen - 1, ids: []string{"alice"}})
	assert.Nil(t, cmd)
	assert.Equal(t, uistate.Starting, m.machine.State())
}

func TestStartKeyIgnoredWhileRunning(t *testing.T) {
	h, m := runningLocal(t)
	m, cmd := update(t, m, press("s"))
	assert.Nil(t, cmd)
	assert.True(t, m.statusErr)
	assert.Equal(t, 1, h.worker.starts)
}

func TestDispatchVerbAndResult(t *testing.T) {
	h, m := runningLocal(t)
	h.client.EXPECT().Send(gomock.Any(), "farm alice").Return("Done!", nil)

	m, cmd := update(t, m, press("f"))
	assert.Equal(t, uistate.RunningBusy, m.machine.State())
	assert.Equal(t, 1, m.machine.Busy())
	assert.Equal(t, "!farm alice: sent", m.status)

	m, _ = run(t, m, cmd)
	assert.Equal(t, uistate.RunningIdle, m.machine.State())
	assert.Equal(t, 0, m.machine.Busy())
	assert.Equal(t, "!farm alice: Done!", m.status)
	assert.False(t, m.statusErr)
}

func TestSlowVerbShowsHint(t *testing.T) {
	h, m := runningLocal(t)
	h.client.EXPECT().Send(gomock.Any(), "2faok alice").Return("ok", nil)

	m, cmd := update(t, m, press("4"))
	assert.Equal(t, "!2faok alice: "+dispatch.SlowHint, m.status)
	_, _ = run(t, m, cmd)
}

func TestDispatchErrorShownAsText(t *testing.T) {
	h, m := runningLocal(t)
	h.client.EXPECT().Send(gomock.Any(), "loot alice").Return("", &transport.Error{Kind: transport.KindTimeout, Op: "send", Err: context.DeadlineExceeded})

	m, cmd := update(t, m, press("l"))
	m, _ = run(t, m, cmd)
	assert.True(t, m.statusErr)
	assert.Equal(t, "!loot alice: error: send: timeout: context deadline exceeded", m.status)
	assert.Equal(t, uistate.RunningIdle, m.machine.State())
}

func TestPayloadVerbUsesInput(t *testing.T) {
	h, m := runningLocal(t)
	h.client.EXPECT().Send(gomock.Any(), "redeem bob KEY1,KEY2,KEY3").Return("OK", nil)

	m, _ = update(t, m, press("down"))
	require.Equal(t, "bob", m.selectedBot())
	m.input.SetValue("KEY1 KEY2,, KEY3")

	m, cmd := update(t, m, press("R"))
	_, _ = run(t, m, cmd)
}

func TestGlobalVerbRefreshesRoster(t *testing.T) {
	h, m := runningLocal(t)
	h.client.EXPECT().Send(gomock.Any(), "statusall").Return("Bot carol is idle.", nil)

	m, cmd := update(t, m, press("T"))
	m, _ = run(t, m, cmd)
	assert.Equal(t, []string{"carol"}, m.machine.Roster())
	assert.Equal(t, "carol", m.selectedBot())
}

func TestConcurrentDispatchesReturnToIdle(t *testing.T) {
	h, m := runningLocal(t)
	release := make(chan struct{})
	h.client.EXPECT().Send(gomock.Any(), "farm alice").DoAndReturn(func(context.Context, string) (string, error) {
		<-release
		return "slow", nil
	})
	h.client.EXPECT().Send(gomock.Any(), "farm bob").Return("fast", nil)

	m, slow := update(t, m, press("f"))
	m, _ = update(t, m, press("down"))
	m, fast := update(t, m, press("f"))
	assert.Equal(t, 2, m.machine.Busy())

	m, _ = run(t, m, fast)
	assert.Equal(t, uistate.RunningBusy, m.machine.State())
	assert.Equal(t, "!farm bob: fast", m.status)

	close(release)
	m, _ = run(t, m, slow)
	assert.Equal(t, uistate.RunningIdle, m.machine.State())
	assert.Equal(t, 0, m.machine.Busy())
	assert.Equal(t, "!farm alice: slow", m.status)
}

func TestVerbRejectedWhenStopped(t *testing.T) {
	_, m := newHarness(t, config.ModeLocal)
	m, cmd := update(t, m, press("f"))
	assert.Nil(t, cmd)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "not available while stopped")
}

func TestWorkerOutputAppendsToLog(t *testing.T) {
	_, m := runningLocal(t)
	m, _ = update(t, m, workerEventMsg{Type: supervisor.EventOutput, At: time.Now(), Line: "Bot alice is farming."})
	assert.Equal(t, "Bot alice is farming.", m.logLines[len(m.logLines)-1])
	assert.False(t, m.activity.Last().IsZero())
}

func TestUnexpectedExitClearsRoster(t *testing.T) {
	_, m := runningLocal(t)
	m, _ = update(t, m, workerEventMsg{Type: supervisor.EventExited, At: time.Now(), ExitCode: 2, Unexpected: true, Stderr: "fatal: boom\n"})

	assert.Equal(t, uistate.Stopped, m.machine.State())
	assert.True(t, m.machine.Crashed())
	assert.Empty(t, m.machine.Roster())
	assert.Equal(t, "", m.selectedBot())
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "worker crashed (exit code 2)")
	assert.Contains(t, strings.Join(m.logLines, "\n"), "fatal: boom")
	assert.Contains(t, m.View(), "CRASHED")

	// bot controls are disabled again
	m, cmd := update(t, m, press("f"))
	assert.Nil(t, cmd)
}

func TestStopFlow(t *testing.T) {
	h, m := runningLocal(t)

	m, cmd := update(t, m, press("x"))
	assert.Equal(t, uistate.Stopping, m.machine.State())
	stopped := cmd()
	assert.Equal(t, 1, h.worker.stops)

	m, _ = update(t, m, workerEventMsg{Type: supervisor.EventExited, At: time.Now(), ExitCode: 0})
	m, _ = update(t, m, stopped)
	assert.Equal(t, uistate.Stopped, m.machine.State())
	assert.False(t, m.machine.Crashed())
	assert.Empty(t, m.machine.Roster())
	assert.Equal(t, "worker stopped", m.status)

	// stop while stopped is refused
	m, cmd = update(t, m, press("x"))
	assert.Nil(t, cmd)
	assert.True(t, m.statusErr)
}

func TestStopBeforeWorkerLaunched(t *testing.T) {
	h, m := newHarness(t, config.ModeLocal)

	m, startCmd := update(t, m, press("s"))
	m, stopCmd := update(t, m, press("x"))
	m, _ = run(t, m, stopCmd)
	assert.Equal(t, uistate.Stopped, m.machine.State())

	// the late start result must not leave a worker running
	m, cleanup := run(t, m, startCmd)
	require.NotNil(t, cleanup)
	_, _ = run(t, m, cleanup)
	assert.False(t, h.worker.running)
}

func TestRemoteConnectAndDisconnect(t *testing.T) {
	h, m := newHarness(t, config.ModeRemote)
	h.client.EXPECT().Send(gomock.Any(), "statusall").Return(twoBots, nil)
	h.client.EXPECT().Send(gomock.Any(), "pause alice").Return("Paused", nil)

	m, cmd := update(t, m, press("s"))
	assert.Equal(t, uistate.Starting, m.machine.State())
	m, _ = run(t, m, cmd)
	assert.Equal(t, uistate.RunningIdle, m.machine.State())

	m, cmd = update(t, m, press("P"))
	m, _ = run(t, m, cmd)
	assert.Equal(t, "!pause alice: Paused", m.logLines[len(m.logLines)-1])

	m, cmd = update(t, m, press("x"))
	assert.Nil(t, cmd)
	assert.Equal(t, uistate.Stopped, m.machine.State())
	assert.Empty(t, m.machine.Roster())
}

func TestRemoteConnectFailure(t *testing.T) {
	h, m := newHarness(t, config.ModeRemote)
	h.client.EXPECT().Send(gomock.Any(), "statusall").Return("", &transport.Error{Kind: transport.KindUnreachable, Op: "send", Err: errors.New("connection refused")})

	m, cmd := update(t, m, press("s"))
	m, cmd = run(t, m, cmd)
	assert.Nil(t, cmd)
	assert.Equal(t, uistate.Stopped, m.machine.State())
	assert.Contains(t, m.status, "connect failed")
}

func TestStaleCompletionAfterDisconnect(t *testing.T) {
	h, m := newHarness(t, config.ModeRemote)
	h.client.EXPECT().Send(gomock.Any(), "statusall").Return(twoBots, nil)
	h.client.EXPECT().Send(gomock.Any(), "farm alice").Return("late", nil)

	m, cmd := update(t, m, press("s"))
	m, _ = run(t, m, cmd)
	m, pending := update(t, m, press("f"))
	m, _ = update(t, m, press("x"))
	require.Equal(t, uistate.Stopped, m.machine.State())

	m, _ = run(t, m, pending)
	assert.Equal(t, uistate.Stopped, m.machine.State())
	assert.Equal(t, 0, m.machine.Busy())
}

func TestInputSwallowsVerbKeys(t *testing.T) {
	_, m := runningLocal(t)

	m, _ = update(t, m, press("i"))
	require.True(t, m.input.Focused())
	m, cmd := update(t, m, press("f"))
	assert.Equal(t, uistate.RunningIdle, m.machine.State())
	assert.Equal(t, "f", m.input.Value())
	_ = cmd

	m, _ = update(t, m, press("enter"))
	assert.False(t, m.input.Focused())
}

func TestCopyLastResult(t *testing.T) {
	h, m := runningLocal(t)
	h.client.EXPECT().Send(gomock.Any(), "owns alice 440").Return("Owned: 440", nil)

	m, cmd := update(t, m, press("y"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "nothing to copy")

	m.input.SetValue("440")
	m, cmd = update(t, m, press("o"))
	m, _ = run(t, m, cmd)

	m, cmd = update(t, m, press("y"))
	m, _ = run(t, m, cmd)
	assert.Equal(t, []string{"Owned: 440"}, h.copied)
	assert.Contains(t, m.status, "copied")
}

func TestClearLog(t *testing.T) {
	_, m := runningLocal(t)
	m, _ = update(t, m, workerEventMsg{Type: supervisor.EventOutput, Line: "hello"})
	require.NotEmpty(t, m.logLines)
	m, _ = update(t, m, press("c"))
	assert.Empty(t, m.logLines)
}

func TestSelectionStaysInRange(t *testing.T) {
	_, m := runningLocal(t)
	m, _ = update(t, m, press("up"))
	assert.Equal(t, 0, m.selected)
	m, _ = update(t, m, press("down"))
	m, _ = update(t, m, press("down"))
	assert.Equal(t, 1, m.selected)
}

func TestLogIsCapped(t *testing.T) {
	_, m := newHarness(t, config.ModeLocal)
	for i := 0; i < maxLogLines+10; i++ {
		m.appendLog(fmt.Sprintf("line %d", i))
	}
	assert.Len(t, m.logLines, maxLogLines)
	assert.Equal(t, "line 10", m.logLines[0])
}

func TestView(t *testing.T) {
	_, m := runningLocal(t)
	out := m.View()
	for _, want := range []string{"FARMCTL", "alice", "bob", "RUNNING"} {
		assert.Contains(t, out, want)
	}

	fresh := New(context.Background(), Options{Dispatcher: dispatch.New(nil, config.ModeLocal)})
	assert.Equal(t, "Initializing farmctl...", fresh.View())
}

func TestSplitPayload(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, splitPayload(" A,B \t C,, "))
	assert.Empty(t, splitPayload("  "))
}

func TestTailLines(t *testing.T) {
	assert.Nil(t, tailLines("", 3))
	assert.Equal(t, []string{"c", "d"}, tailLines("a\nb\nc\nd\n", 2))
}
