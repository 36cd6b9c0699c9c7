package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/farmctl/internal/uistate"
)

// layout sizes the log viewport from the window and help height.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	helpHeight := lipgloss.Height(m.help.View(m.keys))
	// header box (5) + panel borders (2) + input, status, help + margins (2)
	logHeight := m.height - 5 - 2 - 2 - helpHeight - 2
	if logHeight < 3 {
		logHeight = 3
	}
	logWidth := m.width - 4 - botsPanelWidth - 4
	if logWidth < 20 {
		logWidth = 20
	}
	m.logView.Width = logWidth
	m.logView.Height = logHeight
	m.input.Width = m.width - 4 - len(m.input.Prompt) - 1
	m.help.Width = m.width - 4
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing farmctl..."
	}

	header := m.renderHeader()
	bots := m.renderBots()
	logBox := m.theme.Border.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render("OUTPUT"),
		m.logView.View(),
	))
	body := lipgloss.JoinHorizontal(lipgloss.Top, bots, logBox)

	status := m.theme.Status.Render(" " + m.status)
	if m.statusErr {
		status = m.theme.Error.Render(" ⚠ " + m.status)
	}

	parts := []string{header, body, m.input.View(), status, m.help.View(m.keys)}
	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader() string {
	innerWidth := m.width - 6

	tickerStr := m.theme.Selected.Render(m.ticker.Current())
	clock := m.theme.Dim.Render(time.Now().Format("15:04:05"))
	titleText := fmt.Sprintf(" FARMCTL %s", tickerStr)
	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 2
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	where := m.opts.Endpoint
	if m.local() {
		where = "local worker, IPC " + where
	} else {
		where = "remote " + where
	}
	stateLine := fmt.Sprintf(" %s  %s", m.renderState(), m.theme.Dim.Render(where))

	lastActivity := "never"
	if !m.activity.Last().IsZero() {
		lastActivity = time.Since(m.activity.Last()).Round(time.Second).String() + " ago"
	}
	activityLine := fmt.Sprintf(" Bots: %d  In flight: %d  Last activity: %s %s",
		len(m.machine.Roster()),
		m.machine.Busy(),
		lastActivity,
		m.activity.Render(m.theme),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, stateLine, activityLine)
	return m.theme.Border.Width(innerWidth).Render(content)
}

func (m Model) renderState() string {
	if m.machine.State() == uistate.Stopped && m.machine.Crashed() {
		return m.theme.StateCrashed.Render("CRASHED")
	}
	label := strings.ToUpper(m.machine.State().String())
	switch m.machine.State() {
	case uistate.Starting, uistate.Stopping:
		return m.theme.StateStarting.Render(label)
	case uistate.RunningIdle:
		return m.theme.StateIdle.Render(label)
	case uistate.RunningBusy:
		return m.theme.StateBusy.Render(label)
	default:
		return m.theme.StateStopped.Render(label)
	}
}

func (m Model) renderBots() string {
	ids := m.machine.Roster()
	lines := []string{m.theme.Title.Render("BOTS")}
	if len(ids) == 0 {
		lines = append(lines, m.theme.Dim.Render("  no bots"))
	}
	for i, id := range ids {
		name := truncate(id, botsPanelWidth-4)
		if i == m.selected {
			lines = append(lines, m.theme.Selected.Render("▸ "+name))
			continue
		}
		lines = append(lines, "  "+name)
	}
	return m.theme.Border.
		Width(botsPanelWidth).
		Height(m.logView.Height + 1).
		Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
