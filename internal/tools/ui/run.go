package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(2)

	frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

const defaultTimeout = 3 * time.Minute

type tickMsg struct{}

type doneMsg struct {
	details []string
	err     error
}

type model struct {
	title   string
	frame   int
	done    bool
	details []string
	err     error
	run     func() tea.Msg
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.run, tick())
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(frames)
		return m, tick()
	case doneMsg:
		m.done, m.details, m.err = true, msg.details, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done, m.err = true, context.Canceled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	if !m.done {
		return fmt.Sprintf("%s %s\n", frames[m.frame], titleStyle.Render(m.title))
	}
	return render(m.title, m.details, m.err)
}

func render(title string, details []string, err error) string {
	var b strings.Builder
	if err != nil {
		b.WriteString(errStyle.Render("✗ "+title) + "\n")
	} else {
		b.WriteString(okStyle.Render("✓ "+title) + "\n")
	}
	for _, d := range details {
		b.WriteString(detailStyle.Render(d) + "\n")
	}
	if err != nil {
		b.WriteString(detailStyle.Render("error: "+err.Error()) + "\n")
	}
	return b.String()
}

// Run shows a spinner while fn runs and prints its details afterwards.
func Run(title string, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	m := model{
		title: title,
		run: func() tea.Msg {
			details, err := fn(ctx)
			return doneMsg{details: details, err: err}
		},
	}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		// no terminal: run inline
		details, runErr := fn(ctx)
		fmt.Print(render(title, details, runErr))
		return details, runErr
	}
	fm := final.(model)
	return fm.details, fm.err
}
