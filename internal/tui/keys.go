package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"cdrpulse/internal/wizard"
)

// handleKeyPress routes key presses based on the current step
func (m *Model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		m.abandon()
		m.machine.Reset()
		return tea.Quit
	}

	if m.filtering {
		m.handleFilterKeys(msg)
		return nil
	}

	if msg.String() == "esc" {
		m.abandon()
		m.machine.Back()
		m.clearMessages()
		return nil
	}

	switch m.machine.Snapshot().Step {
	case wizard.StepDashboard:
		return m.handleDashboardKeys(msg)
	case wizard.StepApplication:
		m.handleApplicationKeys(msg)
	case wizard.StepAPIs:
		m.handleAPIKeys(msg)
	case wizard.StepConfigure:
		m.handleConfigureKeys(msg)
	case wizard.StepReview:
		return m.handleReviewKeys(msg)
	case wizard.StepResults:
		m.handleResultsKeys(msg)
	}
	return nil
}

func (m *Model) handleDashboardKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "enter", "n":
		if err := m.machine.Start(); err != nil {
			m.setError(err)
			return nil
		}
		m.query = ""
		m.appCursor = 0
		m.clearMessages()
	}
	return nil
}

func (m *Model) handleFilterKeys(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.filtering = false
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.query += " "
	case tea.KeyRunes:
		m.query += string(msg.Runes)
	}
	m.appCursor = 0
}

func (m *Model) handleApplicationKeys(msg tea.KeyMsg) {
	apps := m.applications()
	switch msg.String() {
	case "/":
		m.filtering = true
	case "up", "k":
		if m.appCursor > 0 {
			m.appCursor--
		}
	case "down", "j":
		if m.appCursor < len(apps)-1 {
			m.appCursor++
		}
	case "enter":
		if len(apps) == 0 {
			m.setError(errors.New("no application matches the search"))
			return
		}
		if err := m.machine.SelectApplication(apps[m.appCursor].ID); err != nil {
			m.setError(err)
			return
		}
		m.apiCursor = 0
		m.clearMessages()
	}
}

func (m *Model) handleAPIKeys(msg tea.KeyMsg) {
	app, _ := m.application()
	var err error
	switch msg.String() {
	case "up", "k":
		if m.apiCursor > 0 {
			m.apiCursor--
		}
	case "down", "j":
		if m.apiCursor < len(app.Endpoints)-1 {
			m.apiCursor++
		}
	case " ", "x":
		if len(app.Endpoints) > 0 {
			err = m.machine.ToggleAPI(app.Endpoints[m.apiCursor].ID)
		}
	case "a":
		err = m.machine.SelectAllAPIs()
	case "c":
		err = m.machine.ClearAPIs()
	case "enter":
		err = m.machine.ContinueToConfigure()
		if err == nil {
			m.fieldCursor = 0
		}
	default:
		return
	}
	if err != nil {
		m.setError(err)
		return
	}
	m.clearMessages()
}

func (m *Model) handleConfigureKeys(msg tea.KeyMsg) {
	field := loadFields[m.fieldCursor]
	load := m.machine.Snapshot().Load
	var err error
	switch msg.String() {
	case "up", "k":
		if m.fieldCursor > 0 {
			m.fieldCursor--
		}
	case "down", "j", "tab":
		if m.fieldCursor < len(loadFields)-1 {
			m.fieldCursor++
		}
	case "right", "l", "+":
		err = m.machine.SetLoad(field.adjust(load, 1))
	case "left", "h", "-":
		err = m.machine.SetLoad(field.adjust(load, -1))
	case "enter":
		err = m.machine.ContinueToReview()
		if err == nil {
			m.name = m.machine.DefaultName()
		}
	default:
		return
	}
	if err != nil {
		m.setError(err)
		return
	}
	m.clearMessages()
}

func (m *Model) handleReviewKeys(msg tea.KeyMsg) tea.Cmd {
	if m.task != nil {
		return nil
	}
	switch msg.Type {
	case tea.KeyEnter:
		task, err := m.machine.Save(m.ctx, m.name)
		if err != nil {
			m.setError(err)
			return nil
		}
		m.task = task
		m.clearMessages()
		return waitForTask(task)
	case tea.KeyBackspace:
		if r := []rune(m.name); len(r) > 0 {
			m.name = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.name += " "
	case tea.KeyRunes:
		m.name += string(msg.Runes)
	}
	return nil
}

func (m *Model) handleResultsKeys(msg tea.KeyMsg) {
	switch msg.String() {
	case "r":
		if err := m.machine.RunAgain(); err != nil {
			m.setError(err)
			return
		}
		m.clearMessages()
	case "n", "enter":
		m.machine.Reset()
		m.clearMessages()
		if err := m.machine.Start(); err != nil {
			m.setError(err)
		}
		m.query = ""
		m.appCursor = 0
	case "d":
		m.machine.Reset()
		m.clearMessages()
	}
}
