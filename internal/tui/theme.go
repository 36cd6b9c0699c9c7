// Package tui implements the interactive farm controller: a bubbletea program
// that starts and stops the worker, shows its bots and output, and sends
// commands to it.
package tui

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the controller.
type Theme struct {
	// Worker state colors
	StateStopped  lipgloss.Style
	StateStarting lipgloss.Style
	StateIdle     lipgloss.Style
	StateBusy     lipgloss.Style
	StateCrashed  lipgloss.Style

	// UI elements
	Border   lipgloss.Style
	Title    lipgloss.Style
	Dim      lipgloss.Style
	Selected lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style

	// Indicators
	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StateStopped:  lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		StateStarting: lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		StateIdle:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StateBusy:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StateCrashed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")).Bold(true),
		Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		TickerActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		TickerInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}
