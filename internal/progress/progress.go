// Package progress shows a running batch in the terminal.
package progress

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"artgen/internal/generate"
)

var (
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// EventMsg wraps a unit event for the program.
type EventMsg generate.Event

// DoneMsg ends the view once the batch returns.
type DoneMsg struct {
	Err error
}

// Model is a bubbletea model counting units of one batch.
type Model struct {
	spinner  spinner.Model
	amount   int
	running  int
	done     int
	failed   []int
	finished bool
	err      error
}

// New returns a model for a batch of amount units.
func New(amount int) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = faintStyle
	return Model{spinner: s, amount: amount}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// The batch cannot be cancelled; ctrl+c only hides the view.
		if msg.Type == tea.KeyCtrlC {
			m.finished = true
			return m, tea.Quit
		}
	case EventMsg:
		switch msg.Kind {
		case generate.UnitStarted:
			m.running++
		case generate.UnitFinished:
			m.running--
			if msg.Err != nil {
				m.failed = append(m.failed, msg.Index)
			} else {
				m.done++
			}
		}
		return m, nil
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	switch {
	case m.finished && m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("failed after %d/%d: %v", m.done, m.amount, m.err)))
	case m.finished:
		b.WriteString(doneStyle.Render(fmt.Sprintf("generated %d/%d", m.done, m.amount)))
	default:
		fmt.Fprintf(&b, "%s generated %d/%d", m.spinner.View(), m.done, m.amount)
		if m.running > 0 {
			b.WriteString(faintStyle.Render(fmt.Sprintf("  (%d running)", m.running)))
		}
	}
	if len(m.failed) > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("  failed: %v", m.failed)))
	}
	b.WriteString("\n")
	return b.String()
}

// Done reports the generated count.
func (m Model) Done() int { return m.done }

// Observer forwards unit events to p.
func Observer(p *tea.Program) generate.Observer {
	return func(e generate.Event) {
		p.Send(EventMsg(e))
	}
}
