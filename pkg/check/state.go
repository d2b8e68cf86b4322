package check

import "fmt"

// State is the monitoring state of a single result or of a whole Collection.
// States are totally ordered by severity; the zero value is StateOK.
type State int

const (
	StateOK State = iota
	StateWarn
	StateCrit
	StateUnknown
)

// String returns the state name as used in the plugin output line.
func (s State) String() string {
	switch s {
	case StateOK:
		return "OK"
	case StateWarn:
		return "WARNING"
	case StateCrit:
		return "CRITICAL"
	case StateUnknown:
		return "UNKNOWN"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ExitCode returns the process exit code a monitoring core expects for s.
func (s State) ExitCode() int {
	if s < StateOK || s > StateUnknown {
		return int(StateUnknown)
	}
	return int(s)
}

// Marker returns the short suffix appended to non-OK summaries.
func (s State) Marker() string {
	switch s {
	case StateWarn:
		return "(!)"
	case StateCrit:
		return "(!!)"
	case StateUnknown:
		return "(?)"
	}
	return ""
}

// Worst returns the more severe of a and b.
func Worst(a, b State) State {
	if b > a {
		return b
	}
	return a
}

// ParseState converts a configured state name ("ok", "warning", "crit", ...)
// into a State.
func ParseState(s string) (State, error) {
	switch s {
	case "ok", "OK":
		return StateOK, nil
	case "warn", "warning", "WARN", "WARNING":
		return StateWarn, nil
	case "crit", "critical", "CRIT", "CRITICAL":
		return StateCrit, nil
	case "unknown", "UNKNOWN":
		return StateUnknown, nil
	}
	return StateUnknown, &ConfigError{Field: "state", Err: fmt.Errorf("unknown state %q", s)}
}
