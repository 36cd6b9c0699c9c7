package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/farmctl/internal/command"
	"github.com/mattjoyce/farmctl/internal/config"
	"github.com/mattjoyce/farmctl/internal/dispatch"
	"github.com/mattjoyce/farmctl/internal/log"
	"github.com/mattjoyce/farmctl/internal/roster"
	"github.com/mattjoyce/farmctl/internal/supervisor"
	"github.com/mattjoyce/farmctl/internal/transport"
	"github.com/mattjoyce/farmctl/internal/uistate"
)

const (
	maxLogLines = 1000

	// minRetryDelay bounds roster polling while the worker is starting.
	minRetryDelay = 500 * time.Millisecond

	botsPanelWidth = 26
)

// Worker is the locally supervised process. *supervisor.Supervisor implements it.
type Worker interface {
	Start() error
	Stop()
	Running() bool
}

// Options configures a Model.
type Options struct {
	Mode       config.Mode
	Endpoint   string
	Client     transport.Client
	Dispatcher *dispatch.Dispatcher

	// Worker is nil in remote mode.
	Worker Worker
	// Preflight runs before each local start; a non-nil error aborts it.
	Preflight func(context.Context) error

	SettleDelay time.Duration
	StatusVerb  string

	// Copy writes to the system clipboard; nil means clipboard.WriteAll.
	Copy func(string) error
}

// Model is the BubbleTea model for the controller.
type Model struct {
	ctx    context.Context
	opts   Options
	logger *slog.Logger

	width  int
	height int

	// State
	machine    *uistate.Machine
	selected   int
	startGen   int
	logLines   []string
	status     string
	statusErr  bool
	lastResult string

	// Widgets
	keys    keyMap
	help    help.Model
	input   textinput.Model
	logView viewport.Model

	// Live indicators
	ticker   Ticker
	activity Activity
	theme    Theme
}

// New creates a controller model. ctx bounds every transport call it makes.
func New(ctx context.Context, opts Options) Model {
	if opts.StatusVerb == "" {
		opts.StatusVerb = "statusall"
	}
	if opts.Worker == nil {
		opts.Worker = remoteWorker{}
	}

	input := textinput.New()
	input.Prompt = "payload> "
	input.Placeholder = "keys or app ids, separated by spaces or commas"
	input.CharLimit = 8192

	return Model{
		ctx:      ctx,
		opts:     opts,
		logger:   log.WithComponent("tui"),
		machine:  uistate.New(),
		logLines: make([]string, 0, 64),
		keys:     newKeyMap(),
		help:     help.New(),
		input:    input,
		logView:  viewport.New(0, 0),
		ticker:   NewTicker(),
		theme:    NewDefaultTheme(),
	}
}

func (m Model) local() bool {
	return m.opts.Mode != config.ModeRemote
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tickMsg:
		m.ticker.Tick()
		m.activity.Decay(time.Time(msg))
		return m, tick()

	case workerEventMsg:
		return m.handleWorkerEvent(supervisor.Event(msg))

	case startResultMsg:
		return m.handleStartResult(msg)

	case stoppedMsg:
		// The exit event normally arrives first; this covers a worker that was
		// never running when Stop was called.
		if msg.gen == m.startGen && m.machine.State() == uistate.Stopping && !m.opts.Worker.Running() {
			m.machine.Exited(false)
			m.clampSelection()
			m.setStatus("worker stopped")
		}

	case refreshDueMsg:
		if msg.gen != m.startGen {
			return m, nil
		}
		if m.machine.State() == uistate.Starting || m.machine.CanRefresh() {
			return m, fetchRoster(m.ctx, m.opts.Client, m.opts.StatusVerb, msg.gen)
		}

	case rosterMsg:
		return m.handleRoster(msg)

	case resultMsg:
		return m.handleResult(dispatch.Result(msg))

	case copiedMsg:
		if msg.err != nil {
			m.setError("copy failed: " + msg.err.Error())
		} else {
			m.setStatus("copied last result to clipboard")
		}
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		switch {
		case key.Matches(msg, m.keys.Submit), key.Matches(msg, m.keys.Cancel):
			m.input.Blur()
			return m, nil
		case msg.String() == "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Start):
		return m.start()
	case key.Matches(msg, m.keys.Stop):
		return m.stop()
	case key.Matches(msg, m.keys.Refresh):
		if !m.machine.CanRefresh() {
			m.setError("refresh is not available while " + m.machine.State().String())
			return m, nil
		}
		return m, fetchRoster(m.ctx, m.opts.Client, m.opts.StatusVerb, m.startGen)
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.machine.Roster())-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Input):
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Copy):
		if m.lastResult == "" {
			m.setError("nothing to copy yet")
			return m, nil
		}
		return m, copyText(m.opts.Copy, m.lastResult)
	case key.Matches(msg, m.keys.Clear):
		m.logLines = m.logLines[:0]
		m.logView.SetContent("")
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
	default:
		for i, b := range m.keys.Verbs {
			if key.Matches(msg, b) {
				return m.dispatchVerb(command.Verbs[i])
			}
		}
	}
	return m, nil
}

// start launches the local worker, or connects to the remote one.
func (m Model) start() (tea.Model, tea.Cmd) {
	if err := m.machine.Start(); err != nil {
		m.setError(err.Error())
		return m, nil
	}
	m.startGen++

	if !m.local() {
		m.setStatus("connecting to " + m.opts.Endpoint + "...")
		return m, fetchRoster(m.ctx, m.opts.Client, m.opts.StatusVerb, m.startGen)
	}
	m.setStatus("starting worker...")
	m.logger.Info("starting worker")
	return m, startWorker(m.ctx, m.opts.Worker, m.opts.Preflight, m.startGen)
}

// stop terminates the local worker, or disconnects from the remote one.
func (m Model) stop() (tea.Model, tea.Cmd) {
	if err := m.machine.Stop(); err != nil {
		m.setError(err.Error())
		return m, nil
	}
	m.startGen++

	if !m.local() {
		m.machine.Exited(false)
		m.clampSelection()
		m.setStatus("disconnected")
		return m, nil
	}
	m.setStatus("stopping worker...")
	m.logger.Info("stopping worker")
	return m, stopWorker(m.opts.Worker, m.startGen)
}

func (m Model) handleStartResult(msg startResultMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.startGen {
		// A stop overtook this start; make sure nothing is left running.
		if msg.err == nil {
			return m, stopWorker(m.opts.Worker, m.startGen)
		}
		return m, nil
	}
	if msg.err != nil {
		m.machine.StartFailed()
		m.setError("start failed: " + msg.err.Error())
		m.logger.Error("worker start failed", "error", msg.err)
		return m, nil
	}
	if m.machine.State() != uistate.Starting {
		return m, nil
	}
	m.setStatus("worker started, waiting for bots...")
	return m, refreshAfter(m.opts.SettleDelay, m.startGen)
}

func (m Model) handleRoster(msg rosterMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.startGen {
		return m, nil
	}

	switch m.machine.State() {
	case uistate.Starting:
		if msg.err == nil && len(msg.ids) > 0 {
			m.machine.RosterRefreshed(msg.ids)
			m.clampSelection()
			m.setStatus(fmt.Sprintf("%d bot(s) ready", len(msg.ids)))
			return m, nil
		}
		if !m.local() && msg.err != nil {
			_ = m.machine.Stop()
			m.machine.Exited(false)
			m.setError("connect failed: " + msg.err.Error())
			return m, nil
		}
		if msg.err != nil {
			m.logger.Debug("roster not available yet", "error", msg.err)
		}
		return m, refreshAfter(max(m.opts.SettleDelay, minRetryDelay), msg.gen)

	case uistate.RunningIdle, uistate.RunningBusy:
		if msg.err != nil {
			m.setError("refresh failed: " + msg.err.Error())
			return m, nil
		}
		m.machine.RosterRefreshed(msg.ids)
		m.clampSelection()
		m.setStatus(fmt.Sprintf("%d bot(s)", len(msg.ids)))
	}
	return m, nil
}

func (m Model) handleWorkerEvent(e supervisor.Event) (tea.Model, tea.Cmd) {
	switch e.Type {
	case supervisor.EventStarted:
		m.appendLog(m.theme.Dim.Render(fmt.Sprintf("worker started (pid %d)", e.PID)))

	case supervisor.EventOutput:
		m.activity.Pulse(e.At)
		m.appendLog(e.Line)

	case supervisor.EventExited:
		wasStopping := m.machine.State() == uistate.Stopping
		m.machine.Exited(e.Unexpected)
		m.startGen++
		m.clampSelection()

		if e.Unexpected && !wasStopping {
			m.appendLog(m.theme.Error.Render(fmt.Sprintf("worker crashed (exit code %d)", e.ExitCode)))
			for _, line := range tailLines(e.Stderr, 5) {
				m.appendLog(m.theme.Error.Render("  " + line))
			}
			m.setError(fmt.Sprintf("worker crashed (exit code %d)", e.ExitCode))
			return m, nil
		}
		m.appendLog(m.theme.Dim.Render(fmt.Sprintf("worker exited (code %d)", e.ExitCode)))
		m.setStatus("worker stopped")
	}
	return m, nil
}

// dispatchVerb sends v for the selected bot with the payload from the input.
func (m Model) dispatchVerb(v command.Verb) (tea.Model, tea.Cmd) {
	if !m.machine.CanDispatch() {
		m.setError(fmt.Sprintf("!%s is not available while %s", v.Name, m.machine.State()))
		return m, nil
	}

	bot := ""
	if v.Scope != command.ScopeGlobal {
		bot = m.selectedBot()
		if bot == "" {
			m.setError(fmt.Sprintf("!%s needs a bot; none selected", v.Name))
			return m, nil
		}
	}

	cmd, err := v.Build(bot, splitPayload(m.input.Value()))
	if err != nil {
		m.setError(fmt.Sprintf("!%s: %v", v.Name, err))
		return m, nil
	}

	results := make(chan dispatch.Result, 1)
	id := m.opts.Dispatcher.Dispatch(m.ctx, cmd, func(r dispatch.Result) { results <- r })
	if err := m.machine.DispatchBegan(id); err != nil {
		m.setError(err.Error())
	}
	m.setStatus(dispatch.PendingText(cmd))
	return m, waitForResult(results)
}

func (m Model) handleResult(r dispatch.Result) (tea.Model, tea.Cmd) {
	m.machine.DispatchEnded(r.ID)
	m.activity.Pulse(r.CompletedAt)
	m.lastResult = r.Text()

	if r.Cancelled() {
		return m, nil
	}

	if r.Route == dispatch.RouteLog {
		m.appendLog(r.Display())
	} else {
		m.status = r.Display()
		m.statusErr = r.Err != nil
	}

	// A status reply doubles as a roster refresh.
	if r.Err == nil && r.Command.Verb() == m.opts.StatusVerb && m.machine.CanRefresh() {
		m.machine.RosterRefreshed(roster.ExtractBotIDs(r.Reply))
		m.clampSelection()
	}
	return m, nil
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m *Model) appendLog(line string) {
	for _, l := range strings.Split(strings.TrimRight(line, "\r\n"), "\n") {
		m.logLines = append(m.logLines, strings.TrimRight(l, "\r"))
	}
	if over := len(m.logLines) - maxLogLines; over > 0 {
		m.logLines = append(m.logLines[:0], m.logLines[over:]...)
	}
	m.logView.SetContent(strings.Join(m.logLines, "\n"))
	m.logView.GotoBottom()
}

func (m Model) selectedBot() string {
	ids := m.machine.Roster()
	if m.selected < 0 || m.selected >= len(ids) {
		return ""
	}
	return ids[m.selected]
}

func (m *Model) clampSelection() {
	n := len(m.machine.Roster())
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// splitPayload turns free text into payload lines.
func splitPayload(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
}

func tailLines(s string, n int) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// errNoWorker is returned by remoteWorker, which stands in for a missing Worker.
var errNoWorker = errors.New("no local worker in remote mode")

type remoteWorker struct{}

func (remoteWorker) Start() error  { return errNoWorker }
func (remoteWorker) Stop()         {}
func (remoteWorker) Running() bool { return false }
