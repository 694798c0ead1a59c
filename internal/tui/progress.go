package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rudi-cli/rudi/internal/installer"
)

// progressLine is one finished or in-flight step rendered above the spinner.
type progressLine struct {
	text string
	err  bool
}

// progressEventMsg carries one installer.Event into the Bubble Tea program.
type progressEventMsg installer.Event

// progressDoneMsg signals that the install goroutine has returned.
type progressDoneMsg struct{ err error }

// ProgressModel drives a spinner line plus a scrolling log of finished phases,
// fed by an installer.ProgressFunc. It renders the phase/package event
// stream installer.Event carries; rudi's install path has no picker or
// agent-selection screen ahead of it -- it starts already knowing what to
// install.
type ProgressModel struct {
	spinner spinner.Model
	lines   []progressLine
	current string
	done    bool
	err     error
}

func NewProgressModel() ProgressModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(spinnerStyle),
	)
	return ProgressModel{spinner: s}
}

func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressEventMsg:
		m.applyEvent(installer.Event(msg))
		return m, nil
	case progressDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *ProgressModel) applyEvent(e installer.Event) {
	switch e.Phase {
	case installer.PhaseResolving:
		m.current = fmt.Sprintf("Resolving %s", e.Package)
	case installer.PhaseDownloading:
		m.current = fmt.Sprintf("Downloading %s", e.Package)
	case installer.PhaseExtracting:
		m.current = fmt.Sprintf("Extracting %s", e.Package)
	case installer.PhaseInstalling:
		m.current = fmt.Sprintf("[%d/%d] Installing %s", e.Current, e.Total, e.Package)
	case installer.PhaseLockfile:
		// Quiet: lockfile writes are an implementation detail.
	case installer.PhaseInstalled:
		m.lines = append(m.lines, progressLine{text: fmt.Sprintf("[%d/%d] Installed %s", e.Current, e.Total, e.Package)})
		m.current = ""
	}
}

func (m ProgressModel) View() string {
	var out string
	for _, l := range m.lines {
		if l.err {
			out += errorStyle.Render("  ✗ "+l.text) + "\n"
			continue
		}
		out += installedStyle.Render("  ✓ "+l.text) + "\n"
	}
	if m.done {
		if m.err != nil {
			out += errorStyle.Render("  ✗ "+m.err.Error()) + "\n"
		}
		return out
	}
	if m.current != "" {
		out += "  " + m.spinner.View() + " " + mutedStyle.Render(m.current) + "\n"
	}
	return out
}

// RunInstallProgress drives fn in the background, streaming its installer.Event
// callbacks into a Bubble Tea program, and returns fn's error once it finishes.
// The package to install is already known from the command line, so the
// program has nothing to do but render the phase stream to completion.
func RunInstallProgress(ctx context.Context, fn func(ctx context.Context, report installer.ProgressFunc) error) error {
	p := tea.NewProgram(NewProgressModel())

	errCh := make(chan error, 1)
	go func() {
		err := fn(ctx, func(e installer.Event) {
			p.Send(progressEventMsg(e))
		})
		p.Send(progressDoneMsg{err: err})
		errCh <- err
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	return <-errCh
}
