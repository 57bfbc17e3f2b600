// Package wizard drives the linear flow that builds a test configuration,
// submits it and presents the resulting run.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"cdrpulse/internal/catalog"
	"cdrpulse/internal/models"
)

// Step is a wizard state.
type Step string

const (
	StepDashboard   Step = "dashboard"
	StepApplication Step = "application"
	StepAPIs        Step = "apis"
	StepConfigure   Step = "configure"
	StepReview      Step = "review"
	StepResults     Step = "results"
)

// order lists the steps front to back.
var order = []Step{StepDashboard, StepApplication, StepAPIs, StepConfigure, StepReview, StepResults}

func (s Step) index() int {
	return slices.Index(order, s)
}

var (
	// ErrNoAPIsSelected is the user-facing warning for continuing without endpoints.
	ErrNoAPIsSelected = errors.New("no APIs selected: please select at least one API endpoint")

	ErrUnknownApplication = errors.New("unknown application")
	ErrUnknownEndpoint    = errors.New("unknown endpoint")
	ErrNameRequired       = errors.New("test name is required")
	ErrSavePending        = errors.New("a test is already running")
)

// TransitionError reports an operation attempted from the wrong step.
type TransitionError struct {
	Op   string
	From Step
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is not allowed from step %s", e.Op, e.From)
}

// Load holds the numeric test parameters.
type Load struct {
	VirtualUsers          int
	RampUpTime            int
	Duration              int
	ThinkTime             int
	ResponseTimeThreshold *float64
	ErrorRateThreshold    *float64
}

// DefaultLoad is applied on start and after a reset.
func DefaultLoad() Load {
	return Load{VirtualUsers: 100, RampUpTime: 5, Duration: 10, ThinkTime: 3}
}

// Validate applies the same bounds as the configuration schema.
func (l Load) Validate() error {
	var problems []string
	for _, f := range []struct {
		name  string
		value int
	}{
		{"virtualUsers", l.VirtualUsers},
		{"rampUpTime", l.RampUpTime},
		{"duration", l.Duration},
		{"thinkTime", l.ThinkTime},
	} {
		if f.value <= 0 {
			problems = append(problems, f.name+" must be greater than 0")
		}
	}
	if l.ResponseTimeThreshold != nil && *l.ResponseTimeThreshold <= 0 {
		problems = append(problems, "responseTimeThreshold must be greater than 0")
	}
	if l.ErrorRateThreshold != nil && *l.ErrorRateThreshold <= 0 {
		problems = append(problems, "errorRateThreshold must be greater than 0")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Snapshot is an immutable copy of the machine state.
type Snapshot struct {
	Step           Step
	ApplicationID  string
	SelectedAPIIDs []string
	Load           Load
	Pending        bool
	Outcome        *Outcome
	LastError      error
}

// Machine is the wizard state machine. It is safe for concurrent use; results
// of a submission are applied from the submitting goroutine.
type Machine struct {
	catalog   *catalog.Catalog
	submitter Submitter

	mu         sync.Mutex
	step       Step
	appID      string
	selected   []string
	load       Load
	task       *Task
	generation uint64
	outcome    *Outcome
	lastErr    error
}

// New returns a machine on the dashboard.
func New(cat *catalog.Catalog, submitter Submitter) *Machine {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Machine{
		catalog:   cat,
		submitter: submitter,
		step:      StepDashboard,
		load:      DefaultLoad(),
	}
}

// Catalog returns the application catalog the machine validates against.
func (m *Machine) Catalog() *catalog.Catalog {
	return m.catalog
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	var outcome *Outcome
	if m.outcome != nil {
		o := *m.outcome
		outcome = &o
	}
	return Snapshot{
		Step:           m.step,
		ApplicationID:  m.appID,
		SelectedAPIIDs: slices.Clone(m.selected),
		Load:           m.load,
		Pending:        m.task != nil,
		Outcome:        outcome,
		LastError:      m.lastErr,
	}
}

func (m *Machine) require(op string, step Step) error {
	if m.step != step {
		return &TransitionError{Op: op, From: m.step}
	}
	return nil
}

// Start leaves the dashboard for application selection.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("start", StepDashboard); err != nil {
		return err
	}
	m.step = StepApplication
	return nil
}

// SelectApplication picks the application under test and clears any endpoint selection.
func (m *Machine) SelectApplication(appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("select application", StepApplication); err != nil {
		return err
	}
	if _, ok := m.catalog.Lookup(appID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownApplication, appID)
	}
	m.appID = appID
	m.selected = nil
	m.step = StepAPIs
	return nil
}

// ToggleAPI adds or removes one endpoint from the selection.
func (m *Machine) ToggleAPI(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("toggle api", StepAPIs); err != nil {
		return err
	}
	app, _ := m.catalog.Lookup(m.appID)
	if _, ok := app.Endpoint(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, id)
	}
	if i := slices.Index(m.selected, id); i >= 0 {
		m.selected = slices.Delete(m.selected, i, i+1)
		return nil
	}
	m.selected = append(m.selected, id)
	return nil
}

// SelectAllAPIs selects every endpoint of the application in catalog order.
func (m *Machine) SelectAllAPIs() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("select all apis", StepAPIs); err != nil {
		return err
	}
	app, _ := m.catalog.Lookup(m.appID)
	m.selected = app.EndpointIDs()
	return nil
}

// ClearAPIs empties the selection.
func (m *Machine) ClearAPIs() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("clear apis", StepAPIs); err != nil {
		return err
	}
	m.selected = nil
	return nil
}

// ContinueToConfigure moves on when at least one endpoint is selected.
// Otherwise it returns ErrNoAPIsSelected and leaves the state untouched.
func (m *Machine) ContinueToConfigure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("continue to configure", StepAPIs); err != nil {
		return err
	}
	if len(m.selected) == 0 {
		return ErrNoAPIsSelected
	}
	m.step = StepConfigure
	return nil
}

// SetLoad replaces the load parameters.
func (m *Machine) SetLoad(l Load) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("set load", StepConfigure); err != nil {
		return err
	}
	if err := l.Validate(); err != nil {
		return err
	}
	m.load = l
	return nil
}

// ContinueToReview is unconditional from configure.
func (m *Machine) ContinueToReview() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("continue to review", StepConfigure); err != nil {
		return err
	}
	m.step = StepReview
	return nil
}

// DefaultName suggests a test name for the selected application.
func (m *Machine) DefaultName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.catalog.Lookup(m.appID)
	if !ok {
		return "Load Test"
	}
	return app.Name + " Test"
}

// Save submits the reviewed configuration under name. The machine stays on
// review until the returned task delivers an outcome; a task superseded by
// Back, Reset or another flow is discarded.
func (m *Machine) Save(ctx context.Context, name string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("save", StepReview); err != nil {
		return nil, err
	}
	if m.task != nil {
		return nil, ErrSavePending
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if m.submitter == nil {
		return nil, errors.New("no submitter configured")
	}

	sub := Submission{
		Name:           name,
		ApplicationID:  m.appID,
		SelectedAPIIDs: slices.Clone(m.selected),
		Load:           m.load,
	}

	m.generation++
	gen := m.generation
	m.lastErr = nil
	task := newTask(ctx, gen)
	task.release = m.release
	m.task = task

	go func() {
		outcome, err := m.submitter.Submit(task.ctx, sub)
		m.finish(task, outcome, err)
	}()

	return task, nil
}

// finish applies a task result if the task is still current.
func (m *Machine) finish(task *Task, outcome Outcome, err error) {
	m.mu.Lock()
	owned := m.task == task
	if owned {
		m.task = nil
	}
	// A cancelled task never applies, even if its submitter finished anyway.
	current := owned && m.generation == task.generation && m.step == StepReview && task.ctx.Err() == nil
	if current {
		if err != nil {
			m.lastErr = err
		} else {
			m.outcome = &outcome
			m.step = StepResults
		}
	}
	m.mu.Unlock()

	if !current && err == nil {
		err = ErrDiscarded
	}
	task.complete(outcome, err, current)
}

// release drops task if it is still the pending one.
func (m *Machine) release(task *Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.task == task {
		m.cancelLocked()
	}
}

// cancelLocked abandons the pending task, if any.
func (m *Machine) cancelLocked() {
	if m.task != nil {
		m.task.cancel()
		m.task = nil
	}
	m.generation++
}

// Back returns to the previous step keeping selections. Leaving review
// abandons a pending submission.
func (m *Machine) Back() {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.step.index()
	if i <= 0 {
		return
	}
	if m.step == StepReview {
		m.cancelLocked()
	}
	if m.step == StepResults {
		m.outcome = nil
	}
	m.step = order[i-1]
}

// Reset abandons any pending submission and returns to the dashboard with defaults.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked()
	m.step = StepDashboard
	m.appID = ""
	m.selected = nil
	m.load = DefaultLoad()
	m.outcome = nil
	m.lastErr = nil
}

// RunAgain goes from results back to review with the same configuration.
func (m *Machine) RunAgain() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require("run again", StepResults); err != nil {
		return err
	}
	m.outcome = nil
	m.step = StepReview
	return nil
}

// Thresholds of the held load, for presenting results.
func (s Snapshot) Thresholds() models.Thresholds {
	return models.Thresholds{ResponseTime: s.Load.ResponseTimeThreshold, ErrorRate: s.Load.ErrorRateThreshold}
}
