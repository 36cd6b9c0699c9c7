package tui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/farmctl/internal/dispatch"
	"github.com/mattjoyce/farmctl/internal/roster"
	"github.com/mattjoyce/farmctl/internal/supervisor"
	"github.com/mattjoyce/farmctl/internal/transport"
)

// --- Message types ---

type tickMsg time.Time

// workerEventMsg carries a supervisor event into the UI loop.
type workerEventMsg supervisor.Event

type startResultMsg struct {
	gen int
	err error
}

type stoppedMsg struct {
	gen int
}

type refreshDueMsg struct {
	gen int
}

type rosterMsg struct {
	gen int
	ids []string
	err error
}

type resultMsg dispatch.Result

type copiedMsg struct {
	err error
}

// --- Commands ---

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// startWorker runs the preflight check and launches the worker off the UI loop.
func startWorker(ctx context.Context, w Worker, preflight func(context.Context) error, gen int) tea.Cmd {
	return func() tea.Msg {
		if preflight != nil {
			if err := preflight(ctx); err != nil {
				return startResultMsg{gen: gen, err: err}
			}
		}
		return startResultMsg{gen: gen, err: w.Start()}
	}
}

// stopWorker blocks until the worker has exited.
func stopWorker(w Worker, gen int) tea.Cmd {
	return func() tea.Msg {
		w.Stop()
		return stoppedMsg{gen: gen}
	}
}

func refreshAfter(d time.Duration, gen int) tea.Cmd {
	if d <= 0 {
		return func() tea.Msg { return refreshDueMsg{gen: gen} }
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return refreshDueMsg{gen: gen} })
}

func fetchRoster(ctx context.Context, client transport.Client, statusVerb string, gen int) tea.Cmd {
	return func() tea.Msg {
		ids, _, err := roster.Fetch(ctx, client, statusVerb)
		return rosterMsg{gen: gen, ids: ids, err: err}
	}
}

// waitForResult delivers the single result of one dispatch.
func waitForResult(ch <-chan dispatch.Result) tea.Cmd {
	return func() tea.Msg {
		return resultMsg(<-ch)
	}
}

func copyText(copyFn func(string) error, text string) tea.Cmd {
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	return func() tea.Msg {
		return copiedMsg{err: copyFn(text)}
	}
}
