package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModelAdvancesUntilDone(t *testing.T) {
	m := model{title: "login"}
	next, cmd := m.Update(tickMsg{})
	if next.(model).frame != 1 || cmd == nil {
		t.Fatal("expected spinner to advance and schedule another tick")
	}

	next, cmd = next.Update(doneMsg{details: []string{"user=asha"}})
	fm := next.(model)
	if !fm.done || cmd == nil {
		t.Fatal("expected done model with quit command")
	}
	if _, cmd := fm.Update(tickMsg{}); cmd != nil {
		t.Fatal("finished model must stop ticking")
	}
	if !strings.Contains(fm.View(), "user=asha") {
		t.Fatalf("expected details in view, got %q", fm.View())
	}
}

func TestModelCtrlCCancels(t *testing.T) {
	next, _ := model{title: "x"}.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if fm := next.(model); !fm.done || fm.err == nil {
		t.Fatal("expected ctrl+c to finish with an error")
	}
}

func TestRenderShowsError(t *testing.T) {
	out := render("logout", nil, errors.New("store closed"))
	if !strings.Contains(out, "store closed") || !strings.Contains(out, "logout") {
		t.Fatalf("unexpected render %q", out)
	}
}
