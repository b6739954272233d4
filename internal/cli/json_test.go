package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/monitor"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
)

func TestMachineMode_DefaultValue(t *testing.T) {
	oldMode := machineMode
	defer func() { machineMode = oldMode }()

	machineMode = false
	assert.False(t, MachineMode())

	machineMode = true
	assert.True(t, MachineMode())
}

func TestWriteJSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONSuccess(&buf, map[string]string{"key": "value"}))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	dataMap, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", dataMap["key"])
}

func TestWriteJSONSuccess_NilDataOmitted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONSuccess(&buf, nil))
	assert.NotContains(t, buf.String(), `"data"`)
}

func TestWriteJSONFailureKeepsData(t *testing.T) {
	var buf bytes.Buffer
	err := errors.New(errors.ErrStream, "stopped", "")
	require.NoError(t, WriteJSONFailure(&buf, map[string]int{"rows": 3}, err))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeTransmission, env.Error.Code)
	assert.Equal(t, map[string]interface{}{"rows": float64(3)}, env.Data)
}

func TestWriteJSONFromError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONFromError(&buf, errors.New(errors.ErrInput, "bad", "fix it")))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Nil(t, env.Data)
	assert.Equal(t, &JSONError{Code: ErrCodeInvalidInput, Message: "bad", Suggestion: "fix it"}, env.Error)
}

func TestErrorToJSON(t *testing.T) {
	unauthorized := &simvue.APIError{Method: "GET", Path: "whoami", StatusCode: http.StatusUnauthorized}
	notFound := &simvue.APIError{Method: "GET", Path: "runs/x", StatusCode: http.StatusNotFound}
	unavailable := &simvue.APIError{Method: "POST", Path: "metrics", StatusCode: http.StatusServiceUnavailable}
	badHeader := &monitor.ConfigurationError{Header: []string{"a", "a"}, Field: "a", Reason: "duplicate metric name"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config not found", errors.New(errors.ErrConfig, "No server URL configured", ""), ErrCodeConfigNotFound},
		{"config invalid", errors.New(errors.ErrConfig, "server.timeout can't be negative", ""), ErrCodeConfigInvalid},
		{"input", errors.New(errors.ErrInput, "bad name", ""), ErrCodeInvalidInput},
		{"run state", errors.New(errors.ErrRun, "already completed", ""), ErrCodeRunStateInvalid},
		{"api generic", errors.New(errors.ErrAPI, "failed", ""), ErrCodeServerError},
		{"unauthorized", errors.Wrap(unauthorized, "Failed to fetch user"), ErrCodeUnauthorized},
		{"not found", errors.Wrap(notFound, "Failed to fetch run"), ErrCodeNotFound},
		{"server error", errors.Wrap(unavailable, "Failed"), ErrCodeServerError},
		{"header", errors.WrapWithCode(badHeader, errors.ErrInput, "header", ""), ErrCodeHeaderInvalid},
		{"transmission", errors.WrapWithCode(&monitor.TransmissionError{Step: 4, Err: unavailable}, errors.ErrStream, "send", ""), ErrCodeTransmission},
		{"plain error", fmt.Errorf("something odd"), ErrCodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorToJSON(tt.err).Code)
		})
	}
}

func TestErrorToJSONDetails(t *testing.T) {
	rejected := &simvue.APIError{Method: "POST", Path: "metrics", StatusCode: http.StatusBadRequest}
	out := ErrorToJSON(errors.WrapWithCode(&monitor.TransmissionError{Step: 7, Err: rejected}, errors.ErrStream, "send failed", "retry"))

	assert.Equal(t, "send failed", out.Message)
	assert.Equal(t, "retry", out.Suggestion)
	assert.Equal(t, map[string]interface{}{"step": 7, "status": http.StatusBadRequest}, out.Details)

	assert.Nil(t, ErrorToJSON(nil))
	assert.Equal(t, "something odd", ErrorToJSON(fmt.Errorf("something odd")).Message)
}
