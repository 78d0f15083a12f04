package progress

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"artgen/internal/generate"
)

func send(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func TestCountsEvents(t *testing.T) {
	m, _ := send(t, New(3),
		EventMsg{Kind: generate.UnitStarted, Index: 0, Amount: 3},
		EventMsg{Kind: generate.UnitStarted, Index: 1, Amount: 3},
		EventMsg{Kind: generate.UnitFinished, Index: 0, Amount: 3},
	)
	if m.Done() != 1 || m.running != 1 {
		t.Errorf("done = %d, running = %d", m.Done(), m.running)
	}
	if v := m.View(); !strings.Contains(v, "generated 1/3") || !strings.Contains(v, "1 running") {
		t.Errorf("View = %q", v)
	}
}

func TestFailureShown(t *testing.T) {
	boom := errors.New("renderer crashed")
	m, _ := send(t, New(4),
		EventMsg{Kind: generate.UnitStarted, Index: 2},
		EventMsg{Kind: generate.UnitFinished, Index: 2, Err: boom},
	)
	if m.Done() != 0 {
		t.Errorf("failed unit counted as done")
	}
	m, cmd := send(t, m, DoneMsg{Err: boom})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg")
	}
	v := m.View()
	if !strings.Contains(v, "failed after 0/4") || !strings.Contains(v, "failed: [2]") {
		t.Errorf("View = %q", v)
	}
}

func TestDoneQuits(t *testing.T) {
	m, _ := send(t, New(1),
		EventMsg{Kind: generate.UnitStarted},
		EventMsg{Kind: generate.UnitFinished},
	)
	m, cmd := send(t, m, DoneMsg{})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !strings.Contains(m.View(), "generated 1/1") {
		t.Errorf("View = %q", m.View())
	}
}
