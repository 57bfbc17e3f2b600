package schema

import (
	"strconv"
	"strings"
)

// ParseLimit validates a list limit query value. An empty value yields def;
// values above max are clamped.
func ParseLimit(raw string, def, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, NewValidationError("limit", "must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
