package monitor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultDelimiter separates fields when no delimiter is configured.
const DefaultDelimiter = '\t'

// delimiterAliases maps names that are awkward to pass on a shell command line.
var delimiterAliases = map[string]rune{
	`\t`:    '\t',
	"tab":   '\t',
	",":     ',',
	"comma": ',',
	" ":     ' ',
	"space": ' ',
}

// ParseDelimiter converts a --delimiter flag value into a single rune.
// An empty value selects DefaultDelimiter.
func ParseDelimiter(s string) (rune, error) {
	if s == "" {
		return DefaultDelimiter, nil
	}
	if r, ok := delimiterAliases[strings.ToLower(s)]; ok {
		return r, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '\n' || r == '\r' {
		return 0, fmt.Errorf("delimiter cannot be a line break")
	}
	return r, nil
}

// Tokenize splits a raw line into trimmed fields.
//
// Blank and whitespace-only lines yield nil. Interior empty fields are kept
// as "" so that "1,,3" still has three fields. A space delimiter treats runs
// of blanks as a single separator, matching column-aligned output.
func Tokenize(line string, delim rune) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	if delim == ' ' {
		return strings.Fields(line)
	}

	parts := strings.Split(line, string(delim))
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = strings.TrimSpace(p)
	}
	return fields
}
