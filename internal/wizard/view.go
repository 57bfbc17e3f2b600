package wizard

// StepStatus is the state of one entry of the step indicator.
type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusActive    StepStatus = "active"
	StatusPending   StepStatus = "pending"
)

// StepView is one numbered entry of the step indicator.
type StepView struct {
	Number int
	Label  string
	Status StepStatus
}

var indicator = []struct {
	step  Step
	label string
}{
	{StepApplication, "Application"},
	{StepAPIs, "APIs"},
	{StepConfigure, "Configure"},
	{StepReview, "Review"},
	{StepResults, "Results"},
}

// Steps derives the step indicator from a snapshot.
func Steps(s Snapshot) []StepView {
	current := s.Step.index()
	out := make([]StepView, 0, len(indicator))
	for i, entry := range indicator {
		status := StatusPending
		switch idx := entry.step.index(); {
		case idx == current:
			status = StatusActive
		case idx < current && entry.step != StepResults:
			status = StatusCompleted
		}
		out = append(out, StepView{Number: i + 1, Label: entry.label, Status: status})
	}
	return out
}

// Breadcrumbs derives the navigation trail. appName is the display name of
// the selected application, empty when unknown.
func Breadcrumbs(s Snapshot, appName string) []string {
	if appName == "" {
		appName = "Application"
	}
	switch s.Step {
	case StepDashboard:
		return []string{"Dashboard"}
	case StepApplication:
		return []string{"Dashboard", "Select Application"}
	case StepAPIs:
		return []string{"Dashboard", appName, "API Selection"}
	case StepConfigure:
		return []string{"Dashboard", appName, "Configure Test"}
	case StepReview:
		return []string{"Dashboard", appName, "Review"}
	default:
		return []string{"Dashboard", appName, "Test Results"}
	}
}
