package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/conn-castle/dextctl/internal/messages"
	"github.com/conn-castle/dextctl/internal/orchestrate"
)

type phaseMsg struct {
	phase orchestrate.Phase
	note  string
}

type runDoneMsg struct{}

// installModel shows a spinner for the current phase and prints each progress note above it.
type installModel struct {
	spin   spinner.Model
	phase  orchestrate.Phase
	done   bool
	cancel context.CancelFunc
}

func newInstallModel(cancel context.CancelFunc) *installModel {
	spin := spinner.New()
	spin.Spinner = spinner.Line
	return &installModel{spin: spin, cancel: cancel}
}

func (m *installModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m *installModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case phaseMsg:
		m.phase = msg.phase
		return m, tea.Printf(messages.InstallPhaseFmt, msg.phase, msg.note)
	case runDoneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		// Ctrl+C cancels the run; the program keeps drawing until rollback finishes.
		if msg.String() == "ctrl+c" && m.cancel != nil {
			m.cancel()
		}
		return m, nil
	}
	return m, nil
}

func (m *installModel) View() string {
	if m.done {
		return ""
	}
	status := string(m.phase)
	if status == "" {
		status = messages.InstallSpinnerIdle
	}
	return fmt.Sprintf(messages.InstallSpinnerFmt, m.spin.View(), status)
}

// runSpinner drives run under a bubbletea program writing to out.
func runSpinner(ctx context.Context, out io.Writer, run installRun) (orchestrate.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newInstallModel(cancel), tea.WithOutput(out))
	results := make(chan orchestrate.Result, 1)
	go func() {
		res := run(ctx, func(phase orchestrate.Phase, note string) {
			program.Send(phaseMsg{phase: phase, note: note})
		})
		results <- res
		program.Send(runDoneMsg{})
	}()
	if _, err := program.Run(); err != nil {
		cancel()
		<-results
		return orchestrate.Result{}, err
	}
	return <-results, nil
}
