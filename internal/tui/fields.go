package tui

import (
	"fmt"

	"cdrpulse/internal/wizard"
)

// loadField is one editable row of the configure step.
type loadField struct {
	label string
	unit  string
	step  float64
	get   func(wizard.Load) (float64, bool)
	set   func(*wizard.Load, float64)
}

func intField(label, unit string, step float64, ptr func(*wizard.Load) *int) loadField {
	return loadField{
		label: label,
		unit:  unit,
		step:  step,
		get: func(l wizard.Load) (float64, bool) {
			return float64(*ptr(&l)), true
		},
		set: func(l *wizard.Load, v float64) {
			*ptr(l) = max(1, int(v))
		},
	}
}

// thresholdField treats zero and below as "no threshold".
func thresholdField(label, unit string, step float64, ptr func(*wizard.Load) **float64) loadField {
	return loadField{
		label: label,
		unit:  unit,
		step:  step,
		get: func(l wizard.Load) (float64, bool) {
			p := *ptr(&l)
			if p == nil {
				return 0, false
			}
			return *p, true
		},
		set: func(l *wizard.Load, v float64) {
			if v <= 0 {
				*ptr(l) = nil
				return
			}
			*ptr(l) = &v
		},
	}
}

var loadFields = []loadField{
	intField("Virtual users", "", 10, func(l *wizard.Load) *int { return &l.VirtualUsers }),
	intField("Ramp-up time", "min", 1, func(l *wizard.Load) *int { return &l.RampUpTime }),
	intField("Duration", "min", 1, func(l *wizard.Load) *int { return &l.Duration }),
	intField("Think time", "s", 1, func(l *wizard.Load) *int { return &l.ThinkTime }),
	thresholdField("Response time threshold", "ms", 50, func(l *wizard.Load) **float64 { return &l.ResponseTimeThreshold }),
	thresholdField("Error rate threshold", "%", 0.5, func(l *wizard.Load) **float64 { return &l.ErrorRateThreshold }),
}

func (f loadField) format(l wizard.Load) string {
	v, ok := f.get(l)
	if !ok {
		return "off"
	}
	s := fmt.Sprintf("%g", v)
	if f.unit != "" {
		s += " " + f.unit
	}
	return s
}

// adjust moves the field by delta steps and returns the new load.
func (f loadField) adjust(l wizard.Load, delta int) wizard.Load {
	v, _ := f.get(l)
	f.set(&l, v+float64(delta)*f.step)
	return l
}
