package monitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{in: "42", want: int64(42)},
		{in: "-7", want: int64(-7)},
		{in: "+5", want: int64(5)},
		{in: "0", want: int64(0)},
		{in: "3.14", want: 3.14},
		{in: "3.", want: 3.0},
		{in: "1e3", want: 1000.0},
		{in: "-0.5", want: -0.5},
		{in: "99999999999999999999", want: 1e20},
		{in: "42abc", want: "42abc"},
		{in: "abc", want: "abc"},
		{in: "", want: ""},
		{in: "NaN", want: "NaN"},
		{in: "Inf", want: "Inf"},
		{in: "-inf", want: "-inf"},
		{in: "1,5", want: "1,5"},
		{in: ".5", want: 0.5},
		{in: "2.5E-1", want: 0.25},
		{in: "1e999", want: "1e999"},
		{in: "0x1p-2", want: "0x1p-2"},
		{in: "0X1P-2", want: "0X1P-2"},
		{in: "0x10", want: "0x10"},
		{in: "1_000", want: "1_000"},
		{in: "1_0.5", want: "1_0.5"},
		{in: " 1", want: " 1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Coerce(tt.in)
			assert.IsType(t, tt.want, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceIsDeterministic(t *testing.T) {
	for _, in := range []string{"42", "3.14", "42abc", ""} {
		assert.Equal(t, Coerce(in), Coerce(in))
	}
}

func TestResolveHeader(t *testing.T) {
	h, err := ResolveHeader([]string{"x", "y", "loss"})
	require.NoError(t, err)
	assert.Equal(t, Header{"x", "y", "loss"}, h)
	assert.Equal(t, 3, h.Len())
}

func TestResolveHeaderRejectsDuplicates(t *testing.T) {
	_, err := ResolveHeader([]string{"x", "y", "x"})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "x", cfgErr.Field)
	assert.Equal(t, "duplicate metric name", cfgErr.Reason)
	assert.Contains(t, err.Error(), `"x"`)
}

func TestResolveHeaderRejectsEmptyName(t *testing.T) {
	_, err := ResolveHeader([]string{"x", "", "z"})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "empty metric name", cfgErr.Reason)
}

func TestResolveHeaderRejectsInvalidUTF8(t *testing.T) {
	_, err := ResolveHeader([]string{"x", "lo\xffss"})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "invalid UTF-8 in metric name", cfgErr.Reason)
	assert.Equal(t, "lo\xffss", cfgErr.Field)
}

func TestResolveHeaderCopiesFields(t *testing.T) {
	fields := []string{"a", "b"}
	h, err := ResolveHeader(fields)
	require.NoError(t, err)

	fields[0] = "changed"
	assert.Equal(t, "a", h[0])
}

func TestBuildRow(t *testing.T) {
	h := Header{"step_time", "loss", "phase", "note"}

	row, err := h.BuildRow(2, []string{"12", "0.25", "train", ""})
	require.NoError(t, err)

	assert.Equal(t, 4, row.Len())
	assert.Equal(t, map[string]any{
		"step_time": int64(12),
		"loss":      0.25,
		"phase":     "train",
		"note":      "",
	}, row.Values())

	v, ok := row.Get("loss")
	assert.True(t, ok)
	assert.Equal(t, 0.25, v)

	_, ok = row.Get("missing")
	assert.False(t, ok)
}

func TestBuildRowFieldCountMismatch(t *testing.T) {
	h := Header{"x", "y"}

	tests := []struct {
		name   string
		fields []string
	}{
		{name: "too few", fields: []string{"bad"}},
		{name: "too many", fields: []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.BuildRow(7, tt.fields)

			var rowErr *MalformedRowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, 7, rowErr.Line)
			assert.Equal(t, len(tt.fields), rowErr.Got)
			assert.Equal(t, 2, rowErr.Want)
			assert.Contains(t, err.Error(), "line 7")
		})
	}
}

func TestBuildRowInvalidUTF8(t *testing.T) {
	h := Header{"x", "label"}

	_, err := h.BuildRow(3, []string{"1", "\xff\xfe"})

	var rowErr *MalformedRowError
	require.ErrorAs(t, err, &rowErr)
	assert.Contains(t, rowErr.Reason, "invalid UTF-8")
	assert.Contains(t, rowErr.Reason, `"label"`)
}
