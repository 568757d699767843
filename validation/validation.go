package validation

import (
	"strings"
	"time"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

// DateAfter checks that end is strictly after start; both must be non-zero.
func DateAfter(field string, start, end time.Time, v Violations) {
	if start.IsZero() || end.IsZero() {
		v[field] = "required"
		return
	}
	if !end.After(start) {
		v[field] = "must_be_after_start"
	}
}

// OneOf checks membership in an allowed value set.
func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_value"
}
