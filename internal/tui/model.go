// Package tui is the terminal front end of the test wizard.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"cdrpulse/internal/catalog"
	"cdrpulse/internal/wizard"
)

// taskDoneMsg is delivered when a submission task finishes.
type taskDoneMsg struct {
	task *wizard.Task
}

// Model is the bubbletea model wrapping a wizard.Machine.
type Model struct {
	ctx     context.Context
	machine *wizard.Machine

	width  int
	height int

	// Application step
	query     string
	filtering bool
	appCursor int

	// API and configure steps
	apiCursor   int
	fieldCursor int

	// Review step
	name string
	task *wizard.Task

	status string
	errMsg string
}

// New returns a model driving machine. ctx bounds every submission.
func New(ctx context.Context, machine *wizard.Machine) *Model {
	return &Model{ctx: ctx, machine: machine}
}

// Run starts the interactive program and blocks until the user quits.
func Run(ctx context.Context, machine *wizard.Machine) error {
	p := tea.NewProgram(New(ctx, machine), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case taskDoneMsg:
		if msg.task != m.task {
			return m, nil
		}
		m.task = nil
		if !msg.task.Applied() {
			return m, nil
		}
		if _, err := msg.task.Result(); err != nil {
			m.setError(err)
			return m, nil
		}
		m.status = "Test completed"
		m.errMsg = ""
	}
	return m, nil
}

// waitForTask blocks on the task in a command goroutine.
func waitForTask(task *wizard.Task) tea.Cmd {
	return func() tea.Msg {
		<-task.Done()
		return taskDoneMsg{task: task}
	}
}

func (m *Model) setError(err error) {
	m.errMsg = err.Error()
	m.status = ""
}

func (m *Model) clearMessages() {
	m.errMsg = ""
	m.status = ""
}

func (m *Model) applications() []catalog.Application {
	return m.machine.Catalog().Search(m.query)
}

func (m *Model) application() (catalog.Application, bool) {
	return m.machine.Catalog().Lookup(m.machine.Snapshot().ApplicationID)
}

// abandon drops the pending task so its completion is ignored.
func (m *Model) abandon() {
	if m.task != nil {
		m.task.Cancel()
		m.task = nil
	}
}
