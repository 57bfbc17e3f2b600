// Package results turns the raw metrics of a completed run into the graded
// summary shown on the results screen and in rendered reports.
package results

import (
	"errors"
	"fmt"
	"math"

	"cdrpulse/internal/models"
)

// ErrNoResults is returned when a run has not produced metrics.
var ErrNoResults = errors.New("run has no results")

// Grade classifies a metric against the healthcare latency and reliability bands.
type Grade string

const (
	GradeGood    Grade = "good"
	GradeWarning Grade = "warning"
	GradeError   Grade = "error"
)

const (
	VerdictPassed   = "Test Passed"
	VerdictWarnings = "Test Completed with Warnings"
)

// Band limits. Response times are in milliseconds, error rates in percent.
const (
	ResponseTimeGood    = 200.0
	ResponseTimeWarning = 500.0
	ErrorRateGood       = 1.0
	ErrorRateWarning    = 5.0
	TailSpread          = 200.0
)

// Breach is a configured threshold that the run exceeded.
type Breach struct {
	Metric    string  `json:"metric"`
	Threshold float64 `json:"threshold"`
	Actual    float64 `json:"actual"`
}

func (b Breach) String() string {
	return fmt.Sprintf("%s %.2f exceeds threshold %.2f", b.Metric, b.Actual, b.Threshold)
}

// Summary is the presentation of one run's results.
type Summary struct {
	Results           models.Results `json:"results"`
	SuccessRate       float64        `json:"successRate"`
	ResponseTimeGrade Grade          `json:"responseTimeGrade"`
	ErrorRateGrade    Grade          `json:"errorRateGrade"`
	Passed            bool           `json:"passed"`
	Verdict           string         `json:"verdict"`
	Score             int            `json:"score"`
	TailLatency       string         `json:"tailLatency"`
	Breaches          []Breach       `json:"breaches"`
}

// Summarize grades r and checks it against the optional thresholds.
func Summarize(r models.Results, t models.Thresholds) Summary {
	s := Summary{
		Results:           r,
		SuccessRate:       SuccessRate(r),
		ResponseTimeGrade: ResponseTimeGrade(r.AvgResponseTime),
		ErrorRateGrade:    ErrorRateGrade(r.ErrorRate),
		Score:             Score(r),
		Breaches:          []Breach{},
	}

	s.Passed = s.ResponseTimeGrade == GradeGood && s.ErrorRateGrade == GradeGood
	s.Verdict = VerdictWarnings
	if s.Passed {
		s.Verdict = VerdictPassed
	}

	if r.P99ResponseTime-r.P95ResponseTime > TailSpread {
		s.TailLatency = "Significant variance between p95 and p99, suggesting potential bottlenecks."
	} else {
		s.TailLatency = "Minimal variance between p95 and p99 suggests stable performance."
	}

	if t.ResponseTime != nil && r.AvgResponseTime > *t.ResponseTime {
		s.Breaches = append(s.Breaches, Breach{Metric: "avgResponseTime", Threshold: *t.ResponseTime, Actual: r.AvgResponseTime})
	}
	if t.ErrorRate != nil && r.ErrorRate > *t.ErrorRate {
		s.Breaches = append(s.Breaches, Breach{Metric: "errorRate", Threshold: *t.ErrorRate, Actual: r.ErrorRate})
	}

	return s
}

// SuccessRate is the share of successful requests in percent, rounded to two decimals.
// A run with no requests reports 0.
func SuccessRate(r models.Results) float64 {
	if r.TotalRequests <= 0 {
		return 0
	}
	rate := float64(r.SuccessfulRequests) / float64(r.TotalRequests) * 100
	return math.Round(rate*100) / 100
}

func ResponseTimeGrade(avg float64) Grade {
	switch {
	case avg < ResponseTimeGood:
		return GradeGood
	case avg < ResponseTimeWarning:
		return GradeWarning
	default:
		return GradeError
	}
}

func ErrorRateGrade(rate float64) Grade {
	switch {
	case rate < ErrorRateGood:
		return GradeGood
	case rate < ErrorRateWarning:
		return GradeWarning
	default:
		return GradeError
	}
}

// Score is the composite performance score: 95, 75 or 55.
func Score(r models.Results) int {
	switch {
	case r.AvgResponseTime < ResponseTimeGood && r.ErrorRate < ErrorRateGood:
		return 95
	case r.AvgResponseTime < ResponseTimeWarning && r.ErrorRate < ErrorRateWarning:
		return 75
	default:
		return 55
	}
}

// Report bundles everything the run report template needs.
type Report struct {
	Configuration models.TestConfiguration
	Run           models.TestRun
	Summary       Summary
}

// ReportTemplate is the name of the embedded run report template.
const ReportTemplate = "run_report.tmpl"

// NewReport summarizes a completed run of cfg. It returns ErrNoResults when the
// run carries no metrics yet.
func NewReport(cfg models.TestConfiguration, run models.TestRun) (Report, error) {
	if run.Results == nil {
		return Report{}, ErrNoResults
	}
	return Report{
		Configuration: cfg,
		Run:           run,
		Summary:       Summarize(*run.Results, cfg.Thresholds()),
	}, nil
}
