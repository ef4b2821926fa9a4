package validation

import (
	"strings"
	"time"
)

// Violations is the field -> message map surfaced verbatim in 400 responses.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func MinLength(field, value string, minLen int, v Violations) {
	if len(value) < minLen {
		v[field] = "too_short"
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

// Choice flags values outside the allowed set; empty values are left to Required.
func Choice(field, value string, allowed []string, v Violations) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}

// Date parses a YYYY-MM-DD value, recording a violation on failure.
func Date(field, value string, v Violations) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		v[field] = "invalid_date"
	}
	return t
}
