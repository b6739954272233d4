package monitor

import (
	"math"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// decimalFloat is the float syntax accepted in data rows. Hex floats
// and digit separators are left as strings.
var decimalFloat = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)

// Coerce converts a single field, trying integer, then float, then string.
//
// Only decimal spellings are numbers. Non-finite spellings such as "NaN"
// or "Inf" stay strings: the service aggregates numbers and cannot plot
// them. An integer too large for int64 becomes a float.
func Coerce(field string) any {
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return i
	}
	if !decimalFloat.MatchString(field) {
		return field
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return field
}

// MetricRow is one coerced data line, ordered like the header.
type MetricRow struct {
	names  []string
	values []any
}

// Len returns the number of metrics in the row.
func (r MetricRow) Len() int {
	return len(r.values)
}

// Get returns the value for a metric name.
func (r MetricRow) Get(name string) (any, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Values returns the row as a name -> value map for sending.
func (r MetricRow) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for i, n := range r.names {
		out[n] = r.values[i]
	}
	return out
}

// BuildRow validates fields against the header and coerces them.
// line is only used to label the error.
func (h Header) BuildRow(line int, fields []string) (MetricRow, error) {
	if len(fields) != h.Len() {
		return MetricRow{}, &MalformedRowError{
			Line:   line,
			Reason: "field count mismatch",
			Got:    len(fields),
			Want:   h.Len(),
		}
	}

	values := make([]any, len(fields))
	for i, f := range fields {
		if !utf8.ValidString(f) {
			return MetricRow{}, &MalformedRowError{
				Line:   line,
				Reason: "invalid UTF-8 in field " + strconv.Quote(h[i]),
			}
		}
		values[i] = Coerce(f)
	}

	return MetricRow{names: h, values: values}, nil
}
