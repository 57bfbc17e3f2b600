package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cdrpulse/internal/catalog"
	"cdrpulse/internal/results"
	"cdrpulse/internal/wizard"
)

var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#006400", Dark: "#22c55e"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#8b0000", Dark: "#ef4444"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#b8860b", Dark: "#eab308"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#00008b", Dark: "#3b82f6"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "#008b8b", Dark: "#06b6d4"}
)

var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	styleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorGreen)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorYellow)

	styleSubtle = lipgloss.NewStyle().
			Foreground(colorGray)

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)
)

// View renders the TUI
func (m *Model) View() string {
	snap := m.machine.Snapshot()
	appName := ""
	if app, ok := m.application(); ok {
		appName = app.Name
	}

	var b strings.Builder
	b.WriteString(styleTitle.Render("CDR Pulse · Healthcare API Load Testing"))
	b.WriteString("\n")
	b.WriteString(styleSubtle.Render(strings.Join(wizard.Breadcrumbs(snap, appName), " › ")))
	b.WriteString("\n")
	if snap.Step != wizard.StepDashboard {
		b.WriteString(renderSteps(wizard.Steps(snap)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch snap.Step {
	case wizard.StepDashboard:
		b.WriteString(m.renderDashboard())
	case wizard.StepApplication:
		b.WriteString(m.renderApplications())
	case wizard.StepAPIs:
		b.WriteString(m.renderAPIs(snap))
	case wizard.StepConfigure:
		b.WriteString(m.renderConfigure(snap))
	case wizard.StepReview:
		b.WriteString(m.renderReview(snap))
	case wizard.StepResults:
		b.WriteString(m.renderResults(snap))
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar(snap.Step))
	return b.String()
}

func renderSteps(steps []wizard.StepView) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		label := fmt.Sprintf("%d %s", s.Number, s.Label)
		switch s.Status {
		case wizard.StatusCompleted:
			parts = append(parts, styleSuccess.Render("✓ "+label))
		case wizard.StatusActive:
			parts = append(parts, styleSelected.Render("● "+label))
		default:
			parts = append(parts, styleSubtle.Render("○ "+label))
		}
	}
	return strings.Join(parts, styleSubtle.Render(" ─ "))
}

func (m *Model) renderDashboard() string {
	apps := m.machine.Catalog().Applications()
	endpoints := 0
	for _, app := range apps {
		endpoints += len(app.Endpoints)
	}
	return fmt.Sprintf("Load test healthcare APIs in a few steps.\n\n%d applications · %d endpoints available\n\nPress enter to create a new test.",
		len(apps), endpoints)
}

func iconFor(app catalog.Application) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(catalog.ColorFor(app.Color))).
		Render(catalog.IconFor(app.Icon).Glyph)
}

func (m *Model) renderApplications() string {
	var b strings.Builder
	search := m.query
	if m.filtering {
		search += "█"
	}
	if search == "" {
		search = styleSubtle.Render("press / to search")
	}
	b.WriteString("Search: " + search + "\n\n")

	apps := m.applications()
	if len(apps) == 0 {
		b.WriteString(styleWarning.Render("No applications match your search."))
		return b.String()
	}
	for i, app := range apps {
		cursor := "  "
		name := app.Name
		if i == m.appCursor {
			cursor = "› "
			name = styleSelected.Render(name)
		}
		fmt.Fprintf(&b, "%s%s %s %s\n", cursor, iconFor(app), name,
			styleSubtle.Render(fmt.Sprintf("(%d endpoints)", len(app.Endpoints))))
		fmt.Fprintf(&b, "     %s\n", styleSubtle.Render(app.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}

func methodStyle(method string) lipgloss.Style {
	switch method {
	case "GET":
		return styleSuccess
	case "POST":
		return lipgloss.NewStyle().Foreground(colorBlue)
	case "PUT", "PATCH":
		return styleWarning
	case "DELETE":
		return styleError
	default:
		return styleSubtle
	}
}

func (m *Model) renderAPIs(snap wizard.Snapshot) string {
	app, _ := m.application()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", iconFor(app), app.Name)
	fmt.Fprintf(&b, "%d of %d endpoints selected\n\n", len(snap.SelectedAPIIDs), len(app.Endpoints))
	for i, ep := range app.Endpoints {
		cursor := "  "
		if i == m.apiCursor {
			cursor = "› "
		}
		box := "[ ]"
		if slices.Contains(snap.SelectedAPIIDs, ep.ID) {
			box = styleSuccess.Render("[x]")
		}
		fmt.Fprintf(&b, "%s%s %s %s  %s %s\n", cursor, box,
			methodStyle(ep.Method).Render(fmt.Sprintf("%-6s", ep.Method)), ep.Path,
			styleSubtle.Render(ep.Summary), styleSubtle.Render(fmt.Sprintf("~%dms", ep.EstimatedMs)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderConfigure(snap wizard.Snapshot) string {
	var b strings.Builder
	b.WriteString("Load parameters\n\n")
	for i, f := range loadFields {
		cursor := "  "
		label := fmt.Sprintf("%-24s", f.label)
		if i == m.fieldCursor {
			cursor = "› "
			label = styleSelected.Render(label)
		}
		fmt.Fprintf(&b, "%s%s ◀ %s ▶\n", cursor, label, f.format(snap.Load))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderReview(snap wizard.Snapshot) string {
	app, _ := m.application()
	var b strings.Builder
	fmt.Fprintf(&b, "Application   %s %s\n", iconFor(app), app.Name)
	b.WriteString("Endpoints\n")
	for _, id := range snap.SelectedAPIIDs {
		if ep, ok := app.Endpoint(id); ok {
			fmt.Fprintf(&b, "  %s %s\n", methodStyle(ep.Method).Render(fmt.Sprintf("%-6s", ep.Method)), ep.Path)
		}
	}
	b.WriteString("\n")
	for _, f := range loadFields {
		fmt.Fprintf(&b, "%-24s %s\n", f.label, f.format(snap.Load))
	}
	b.WriteString("\n")

	name := m.name
	if m.task == nil {
		name += "█"
	}
	b.WriteString("Test name: " + name)
	if snap.Pending {
		b.WriteString("\n\n" + styleWarning.Render("Running test..."))
	}
	return b.String()
}

func gradeStyle(g results.Grade) lipgloss.Style {
	switch g {
	case results.GradeGood:
		return styleSuccess
	case results.GradeWarning:
		return styleWarning
	default:
		return styleError
	}
}

func (m *Model) renderResults(snap wizard.Snapshot) string {
	if snap.Outcome == nil || snap.Outcome.Run.Results == nil {
		return styleWarning.Render("No results available.")
	}
	s := results.Summarize(*snap.Outcome.Run.Results, snap.Thresholds())
	r := s.Results

	var b strings.Builder
	verdict := styleWarning.Render("⚠ " + s.Verdict)
	if s.Passed {
		verdict = styleSuccess.Render("✓ " + s.Verdict)
	}
	fmt.Fprintf(&b, "%s   %s\n", snap.Outcome.Configuration.Name, verdict)
	fmt.Fprintf(&b, "Performance score %d/100\n\n", s.Score)

	metrics := strings.Join([]string{
		fmt.Sprintf("Avg response   %s", gradeStyle(s.ResponseTimeGrade).Render(fmt.Sprintf("%.0f ms", r.AvgResponseTime))),
		fmt.Sprintf("P95 / P99      %.0f / %.0f ms", r.P95ResponseTime, r.P99ResponseTime),
		fmt.Sprintf("Error rate     %s", gradeStyle(s.ErrorRateGrade).Render(fmt.Sprintf("%.2f%%", r.ErrorRate))),
		fmt.Sprintf("Throughput     %.0f req/s", r.RequestsPerSecond),
		fmt.Sprintf("Requests       %d total · %d ok · %d failed", r.TotalRequests, r.SuccessfulRequests, r.FailedRequests),
		fmt.Sprintf("Success rate   %.2f%%", s.SuccessRate),
	}, "\n")
	b.WriteString(styleBox.Render(metrics))
	b.WriteString("\n\n")
	b.WriteString(styleSubtle.Render(s.TailLatency))
	for _, br := range s.Breaches {
		b.WriteString("\n" + styleError.Render("✗ "+br.String()))
	}
	return b.String()
}

func (m *Model) renderStatusBar(step wizard.Step) string {
	var help string
	switch step {
	case wizard.StepDashboard:
		help = "enter new test • q quit"
	case wizard.StepApplication:
		help = "↑/↓ move • / search • enter select • esc back"
	case wizard.StepAPIs:
		help = "↑/↓ move • space toggle • a all • c clear • enter continue • esc back"
	case wizard.StepConfigure:
		help = "↑/↓ field • ←/→ adjust • enter review • esc back"
	case wizard.StepReview:
		help = "type a name • enter run test • esc back"
	case wizard.StepResults:
		help = "r run again • n new test • d dashboard • esc back"
	}

	line := styleSubtle.Render(help + " • ctrl+c quit")
	switch {
	case m.errMsg != "":
		line = styleError.Render(m.errMsg) + "\n" + line
	case m.status != "":
		line = styleSuccess.Render(m.status) + "\n" + line
	}
	return line
}
