package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Status is the classified blocking state of a domain.
type Status string

const (
	StatusBlocked    Status = "blocked"
	StatusNotBlocked Status = "not_blocked"
	StatusUnknown    Status = "unknown"
	StatusError      Status = "error"
)

// AllStatuses returns every status in report order.
func AllStatuses() []Status {
	return []Status{StatusBlocked, StatusNotBlocked, StatusUnknown, StatusError}
}

// Label returns the human-readable form used in reports.
func (s Status) Label() string {
	switch s {
	case StatusBlocked:
		return "Blocked"
	case StatusNotBlocked:
		return "Not Blocked"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusBlocked, StatusNotBlocked, StatusUnknown, StatusError:
		return true
	}
	return false
}

// ParseStatus accepts either the stored value ("not_blocked") or the label
// ("Not Blocked"), case-insensitively.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	st := Status(norm)
	if !st.Valid() {
		return "", eris.Errorf("model: unknown status %q", s)
	}
	return st, nil
}
