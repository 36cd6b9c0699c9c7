package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/farmctl/internal/log"
	"github.com/mattjoyce/farmctl/internal/supervisor"
)

// Bridge is a supervisor.Observer that forwards worker events into a running
// program. Events observed while no program is attached are dropped.
type Bridge struct {
	mu sync.Mutex
	p  *tea.Program
}

func NewBridge() *Bridge {
	return &Bridge{}
}

// Observe implements supervisor.Observer.
func (b *Bridge) Observe(e supervisor.Event) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p != nil {
		p.Send(workerEventMsg(e))
	}
}

func (b *Bridge) attach(p *tea.Program) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

// Run shows the controller until the user quits or ctx is cancelled. On the
// way out it cancels outstanding dispatches and stops the local worker.
func Run(ctx context.Context, opts Options, bridge *Bridge) error {
	logger := log.WithComponent("tui")

	m := New(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if bridge != nil {
		bridge.attach(p)
		defer bridge.attach(nil)
	}

	_, err := p.Run()

	if n := opts.Dispatcher.CancelAll(); n > 0 {
		logger.Info("abandoned in-flight commands on exit", "count", n)
	}
	opts.Dispatcher.Wait()
	if opts.Worker != nil && opts.Worker.Running() {
		logger.Info("stopping worker on exit")
		opts.Worker.Stop()
	}
	return err
}
