package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUsageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown command", errors.New(`unknown command "foo" for "simvue"`), true},
		{"unknown flag", errors.New(`unknown flag: --foo`), true},
		{"unknown shorthand", errors.New(`unknown shorthand flag: 'z' in -z`), true},
		{"arg count", errors.New(`accepts 1 arg(s), received 0`), true},
		{"other error", errors.New("connection failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUsageError(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("boom")
	ee := &exitError{Code: 3, Err: inner}
	assert.Equal(t, "boom", ee.Error())
	assert.ErrorIs(t, ee, inner)
	assert.Equal(t, "exit status 2", (&exitError{Code: 2}).Error())
}

func TestRunPrintsUsageHint(t *testing.T) {
	env := setupTestEnv(t)

	code, _, stderr := env.exec(t, "", "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)
	assert.Contains(t, stderr, "Run 'simvue --help' for usage.")
}

func TestRunWrongArgCount(t *testing.T) {
	env := setupTestEnv(t)

	code, _, stderr := env.exec(t, "", "run", "close")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "accepts 1 arg(s)")
	assert.Contains(t, stderr, "--help")
}

func TestRunMachineModeWritesOnlyJSON(t *testing.T) {
	env := setupTestEnv(t)

	code, stdout, stderr := env.exec(t, "", "--json", "run", "close", "missing")
	assert.Equal(t, 1, code)
	assert.Empty(t, stderr)

	envl := decodeEnvelope(t, stdout, nil)
	assert.False(t, envl.Success)
	require.NotNil(t, envl.Error)
	assert.Equal(t, ErrCodeNotFound, envl.Error.Code)
	assert.Contains(t, envl.Error.Message, "Run 'missing' not found")
}

func TestVerboseAndQuietAreExclusive(t *testing.T) {
	env := setupTestEnv(t)

	code, _, stderr := env.exec(t, "", "-v", "-q", "version")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "none of the others can be")
}

func TestEveryCommandHasShortHelp(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		assert.NotEmpty(t, c.Short, fmt.Sprintf("%s has no short description", c.Name()))
		for _, sub := range c.Commands() {
			assert.NotEmpty(t, sub.Short, fmt.Sprintf("%s %s has no short description", c.Name(), sub.Name()))
		}
	}
}
