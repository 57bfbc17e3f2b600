// Package models holds the entities exchanged over the REST API and between
// the store, the wizard and the results presenter.
package models

import "time"

// RunStatus is the lifecycle state of a TestRun.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunStatuses lists every valid status in lifecycle order.
var RunStatuses = []RunStatus{RunPending, RunRunning, RunCompleted, RunFailed}

// Valid reports whether s is one of the known statuses.
func (s RunStatus) Valid() bool {
	switch s {
	case RunPending, RunRunning, RunCompleted, RunFailed:
		return true
	}
	return false
}

// Terminal reports whether a run in this status has finished.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// TestConfiguration is a saved description of load parameters and target endpoints.
type TestConfiguration struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	ApplicationID         string    `json:"applicationId"`
	SelectedAPIIDs        []string  `json:"selectedApiIds"`
	VirtualUsers          int       `json:"virtualUsers"`
	RampUpTime            int       `json:"rampUpTime"`
	Duration              int       `json:"duration"`
	ThinkTime             int       `json:"thinkTime"`
	ResponseTimeThreshold *float64  `json:"responseTimeThreshold"`
	ErrorRateThreshold    *float64  `json:"errorRateThreshold"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// Thresholds returns the optional pass/fail boundaries of the configuration.
func (c TestConfiguration) Thresholds() Thresholds {
	return Thresholds{
		ResponseTime: c.ResponseTimeThreshold,
		ErrorRate:    c.ErrorRateThreshold,
	}
}

// Thresholds are optional pass/fail boundaries on response time (ms) and error rate (%).
type Thresholds struct {
	ResponseTime *float64 `json:"responseTime,omitempty"`
	ErrorRate    *float64 `json:"errorRate,omitempty"`
}

// TestRun is one execution attempt of a configuration.
type TestRun struct {
	ID                  string     `json:"id"`
	TestConfigurationID string     `json:"testConfigurationId"`
	Status              RunStatus  `json:"status"`
	StartedAt           time.Time  `json:"startedAt"`
	CompletedAt         *time.Time `json:"completedAt"`
	Results             *Results   `json:"results"`
}

// Results is the fixed metrics payload of a completed run.
type Results struct {
	AvgResponseTime    float64 `json:"avgResponseTime" validate:"gte=0"`
	P95ResponseTime    float64 `json:"p95ResponseTime" validate:"gte=0"`
	P99ResponseTime    float64 `json:"p99ResponseTime" validate:"gte=0"`
	ErrorRate          float64 `json:"errorRate" validate:"gte=0,lte=100"`
	RequestsPerSecond  float64 `json:"requestsPerSecond" validate:"gte=0"`
	TotalRequests      int64   `json:"totalRequests" validate:"gte=0"`
	SuccessfulRequests int64   `json:"successfulRequests" validate:"gte=0"`
	FailedRequests     int64   `json:"failedRequests" validate:"gte=0"`
}

// RunStats summarises stored runs for the dashboard.
type RunStats struct {
	Configurations int64               `json:"configurations"`
	Runs           int64               `json:"runs"`
	ByStatus       map[RunStatus]int64 `json:"byStatus"`
}
