package monitor

import "unicode/utf8"

// Header is the ordered, unique list of metric names taken from the first line.
type Header []string

// ResolveHeader validates the first tokenized line as a header.
// Names must be unique, non-empty UTF-8.
func ResolveHeader(fields []string) (Header, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, name := range fields {
		if name == "" {
			return nil, &ConfigurationError{Header: fields, Field: name, Reason: "empty metric name"}
		}
		if !utf8.ValidString(name) {
			return nil, &ConfigurationError{Header: fields, Field: name, Reason: "invalid UTF-8 in metric name"}
		}
		if _, dup := seen[name]; dup {
			return nil, &ConfigurationError{Header: fields, Field: name, Reason: "duplicate metric name"}
		}
		seen[name] = struct{}{}
	}

	h := make(Header, len(fields))
	copy(h, fields)
	return h, nil
}

// Len returns the number of fields every data row must have.
func (h Header) Len() int {
	return len(h)
}
