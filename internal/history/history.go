// Package history builds the run history view: recent runs joined with their
// configuration and application, narrowed by status and a name search.
package history

import (
	"context"
	"fmt"
	"math"
	"strings"

	"cdrpulse/internal/catalog"
	"cdrpulse/internal/models"
	"cdrpulse/internal/results"
)

// Template is the name of the embedded history template.
const Template = "history.tmpl"

const unnamed = "Unnamed Test"

// Source is the part of the API client the history reads from.
type Source interface {
	ListRuns(ctx context.Context, limit int) ([]models.TestRun, error)
	ListRunsForConfiguration(ctx context.Context, configID string) ([]models.TestRun, error)
	ListConfigurations(ctx context.Context) ([]models.TestConfiguration, error)
	Stats(ctx context.Context) (models.RunStats, error)
	Applications(ctx context.Context) ([]catalog.Application, error)
}

// Entry is one run with everything the history shows about it.
type Entry struct {
	Run             models.TestRun
	Configuration   *models.TestConfiguration
	ApplicationName string
	Summary         *results.Summary
}

// Name is the configuration name, or a placeholder when it is gone.
func (e Entry) Name() string {
	if e.Configuration == nil || e.Configuration.Name == "" {
		return unnamed
	}
	return e.Configuration.Name
}

// Elapsed is the wall time of a finished run in whole minutes, or "" while
// it has not finished.
func (e Entry) Elapsed() string {
	if e.Run.CompletedAt == nil {
		return ""
	}
	d := e.Run.CompletedAt.Sub(e.Run.StartedAt)
	return fmt.Sprintf("%d min", int(math.Round(d.Minutes())))
}

// Filter narrows entries. A zero Filter matches everything.
type Filter struct {
	Status models.RunStatus
	Query  string
}

// ParseStatus accepts a run status or "all", which clears the filter.
func ParseStatus(s string) (models.RunStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return "", nil
	}
	status := models.RunStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q (want all, pending, running, completed or failed)", s)
	}
	return status, nil
}

// Match reports whether e passes the filter. The query matches the
// configuration name or the application name, case-insensitively.
func (f Filter) Match(e Entry) bool {
	if f.Status != "" && e.Run.Status != f.Status {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	if e.Configuration != nil && strings.Contains(strings.ToLower(e.Configuration.Name), q) {
		return true
	}
	return e.ApplicationName != "" && strings.Contains(strings.ToLower(e.ApplicationName), q)
}

// Apply returns the entries that match f, in their original order.
func (f Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Join pairs each run with its configuration and application name and
// summarises the runs that carry results.
func Join(runs []models.TestRun, configs []models.TestConfiguration, apps []catalog.Application) []Entry {
	byID := make(map[string]*models.TestConfiguration, len(configs))
	for i := range configs {
		byID[configs[i].ID] = &configs[i]
	}
	names := make(map[string]string, len(apps))
	for _, app := range apps {
		names[app.ID] = app.Name
	}

	entries := make([]Entry, 0, len(runs))
	for _, run := range runs {
		e := Entry{Run: run, Configuration: byID[run.TestConfigurationID]}
		if e.Configuration != nil {
			e.ApplicationName = names[e.Configuration.ApplicationID]
			if e.ApplicationName == "" {
				e.ApplicationName = e.Configuration.ApplicationID
			}
		}
		if run.Results != nil {
			var th models.Thresholds
			if e.Configuration != nil {
				th = e.Configuration.Thresholds()
			}
			s := results.Summarize(*run.Results, th)
			e.Summary = &s
		}
		entries = append(entries, e)
	}
	return entries
}

// Options select what Load fetches.
type Options struct {
	// Limit caps the runs fetched; zero uses the server default.
	Limit int
	// ConfigurationID restricts the history to one configuration.
	ConfigurationID string
	Filter          Filter
}

// Page is a loaded and filtered history.
type Page struct {
	Stats   models.RunStats
	Filter  Filter
	Fetched int
	Entries []Entry
}

// Count returns the number of stored runs in status.
func (p Page) Count(status models.RunStatus) int64 {
	return p.Stats.ByStatus[status]
}

// Filtered reports whether the page was narrowed by a filter.
func (p Page) Filtered() bool {
	return p.Filter != Filter{}
}

// Load fetches runs, configurations, applications and statistics from src
// and builds the filtered page.
func Load(ctx context.Context, src Source, opts Options) (Page, error) {
	var (
		runs []models.TestRun
		err  error
	)
	if opts.ConfigurationID != "" {
		runs, err = src.ListRunsForConfiguration(ctx, opts.ConfigurationID)
		if opts.Limit > 0 && len(runs) > opts.Limit {
			runs = runs[:opts.Limit]
		}
	} else {
		runs, err = src.ListRuns(ctx, opts.Limit)
	}
	if err != nil {
		return Page{}, fmt.Errorf("list runs: %w", err)
	}

	configs, err := src.ListConfigurations(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("list configurations: %w", err)
	}
	apps, err := src.Applications(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("list applications: %w", err)
	}
	stats, err := src.Stats(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("load stats: %w", err)
	}

	return Page{
		Stats:   stats,
		Filter:  opts.Filter,
		Fetched: len(runs),
		Entries: opts.Filter.Apply(Join(runs, configs, apps)),
	}, nil
}
