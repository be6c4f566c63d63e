package rollover

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// IsValidMonth reports whether s is a well-formed YYYY-MM month identifier.
func IsValidMonth(s string) bool {
	return monthPattern.MatchString(s)
}

// PreviousMonth returns the month immediately before the given YYYY-MM month,
// borrowing a year at January. ok is false if the input is malformed; callers
// treat that as a soft no-op, never a panic.
func PreviousMonth(month string) (string, bool) {
	if !monthPattern.MatchString(month) {
		return "", false
	}
	year, err := strconv.Atoi(month[:4])
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(month[5:])
	if err != nil {
		return "", false
	}
	if m == 1 {
		year--
		m = 12
	} else {
		m--
	}
	return fmt.Sprintf("%04d-%02d", year, m), true
}

// MonthLabel renders a YYYY-MM month as a human display string,
// e.g. "2026-01" -> "January 2026". Malformed input comes back unchanged.
func MonthLabel(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month
	}
	return t.Format("January 2006")
}
