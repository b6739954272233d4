package monitor

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a header the session cannot stream against.
// It is fatal and always raised before any row is sent.
type ConfigurationError struct {
	Header []string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid header [%s]: %s %q", strings.Join(e.Header, ", "), e.Reason, e.Field)
}

// MalformedRowError describes a data line that was skipped.
// The session recovers from it locally; it only reaches the log.
type MalformedRowError struct {
	Line   int
	Reason string
	Got    int
	Want   int
}

func (e *MalformedRowError) Error() string {
	if e.Want > 0 {
		return fmt.Sprintf("line %d: %s (got %d fields, header has %d)", e.Line, e.Reason, e.Got, e.Want)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// TransmissionError wraps a failed send from the run handle.
type TransmissionError struct {
	Step int
	Err  error
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("sending metrics for step %d: %v", e.Step, e.Err)
}

func (e *TransmissionError) Unwrap() error {
	return e.Err
}
