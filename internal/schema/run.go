package schema

import (
	"time"

	"cdrpulse/internal/models"
)

// RunCreate is the payload accepted when recording a new test run.
type RunCreate struct {
	TestConfigurationID *string           `json:"testConfigurationId" validate:"required,min=1"`
	Status              *models.RunStatus `json:"status" validate:"omitempty,oneof=pending running completed failed"`
	CompletedAt         *time.Time        `json:"completedAt" schema:"nullable"`
	Results             *models.Results   `json:"results" schema:"nullable"`
}

// Normalize trims the owner id.
func (r *RunCreate) Normalize() {
	trimPtr(r.TestConfigurationID)
}

// StatusOrDefault returns the requested status or pending.
func (r RunCreate) StatusOrDefault() models.RunStatus {
	if r.Status == nil {
		return models.RunPending
	}
	return *r.Status
}

// DecodeRunCreate parses and validates a run create payload. Cross-field
// run-state rules are checked against the merged entity by the store.
func DecodeRunCreate(body []byte) (RunCreate, error) {
	var r RunCreate
	errs := &ValidationError{}
	decodeObject(body, &r, "", false, errs)
	r.Normalize()
	check(&r, errs)
	return r, errs.orNil()
}

// RunUpdate is a partial run update. completedAt and results may be cleared
// by sending null.
type RunUpdate struct {
	TestConfigurationID *string           `json:"testConfigurationId" validate:"omitempty,min=1"`
	Status              *models.RunStatus `json:"status" validate:"omitempty,oneof=pending running completed failed"`
	CompletedAt         *time.Time        `json:"completedAt" schema:"nullable"`
	Results             *models.Results   `json:"results" schema:"nullable"`

	present map[string]bool
}

// Has reports whether field (by JSON name) was supplied, including as null.
func (u RunUpdate) Has(field string) bool {
	return u.present[field]
}

// Set marks field as supplied.
func (u *RunUpdate) Set(field string) {
	if u.present == nil {
		u.present = make(map[string]bool)
	}
	u.present[field] = true
}

// Normalize trims the owner id.
func (u *RunUpdate) Normalize() {
	trimPtr(u.TestConfigurationID)
}

// DecodeRunUpdate parses and validates a partial run update payload.
func DecodeRunUpdate(body []byte) (RunUpdate, error) {
	var u RunUpdate
	errs := &ValidationError{}
	u.present = decodeObject(body, &u, "", false, errs)
	u.Normalize()
	check(&u, errs)
	return u, errs.orNil()
}

// CheckRunState enforces the relationship between status, completion time and
// results on a merged run.
func CheckRunState(status models.RunStatus, completedAt *time.Time, results *models.Results) error {
	errs := &ValidationError{}
	switch {
	case status == models.RunCompleted && results == nil:
		errs.add("results", "is required when status is completed")
	case status != models.RunCompleted && results != nil:
		errs.add("results", "is only allowed when status is completed")
	}
	if completedAt != nil && !status.Terminal() {
		errs.add("completedAt", "is only allowed when status is completed or failed")
	}
	if results != nil {
		if results.SuccessfulRequests+results.FailedRequests > results.TotalRequests {
			errs.add("results.totalRequests", "must be at least successfulRequests + failedRequests")
		}
	}
	return errs.orNil()
}
