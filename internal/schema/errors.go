package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError enumerates every violated field of a payload.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError returns a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	e := &ValidationError{}
	e.add(field, message)
	return e
}

// Error renders all violations as one sentence with fields in sorted order.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "Validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return "Validation failed: " + strings.Join(msgs, "; ")
}

// Has reports whether field has a recorded violation.
func (e *ValidationError) Has(field string) bool {
	if e == nil {
		return false
	}
	_, ok := e.Fields[field]
	return ok
}

// add keeps the first message recorded for a field.
func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = fmt.Sprintf("%s %s", field, message)
}

func (e *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	for k, v := range other.Fields {
		if e.Fields == nil {
			e.Fields = make(map[string]string)
		}
		if _, exists := e.Fields[k]; !exists {
			e.Fields[k] = v
		}
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
