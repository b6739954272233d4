package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/monitor"
	"github.com/simvue-io/simvue-cli/internal/util"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound  = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid   = "CONFIG_INVALID"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeServerError     = "SERVER_ERROR"
	ErrCodeHeaderInvalid   = "HEADER_INVALID"
	ErrCodeTransmission    = "TRANSMISSION_FAILED"
	ErrCodeRunStateInvalid = "RUN_STATE_INVALID"
	ErrCodeUnknown         = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	env := JSONEnvelope{
		Success: true,
		Data:    data,
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFailure writes a failed response that still carries data,
// such as the summary of a monitor session that stopped early.
func WriteJSONFailure(w io.Writer, data interface{}, err error) error {
	env := JSONEnvelope{
		Success: false,
		Data:    data,
		Error:   ErrorToJSON(err),
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	env := JSONEnvelope{
		Success: false,
		Error:   ErrorToJSON(err),
	}
	return writeJSONEnvelope(w, env)
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	out := &JSONError{Code: ErrCodeUnknown, Message: err.Error()}

	var svErr *errors.Error
	if stderrors.As(err, &svErr) {
		out.Code = mapErrorCode(svErr.Code, svErr.Message)
		out.Message = svErr.Message
		out.Suggestion = svErr.Suggestion
	}

	// The cause refines the code: a server status or a pipeline failure
	// says more than the command-level category.
	var apiErr *simvue.APIError
	var cfgErr *monitor.ConfigurationError
	var txErr *monitor.TransmissionError
	switch {
	case stderrors.As(err, &cfgErr):
		out.Code = ErrCodeHeaderInvalid
		out.Details = map[string]interface{}{"header": cfgErr.Header, "field": cfgErr.Field}
	case stderrors.As(err, &txErr):
		out.Code = ErrCodeTransmission
		details := map[string]interface{}{"step": txErr.Step}
		if stderrors.As(err, &apiErr) {
			details["status"] = apiErr.StatusCode
		}
		out.Details = details
	case stderrors.As(err, &apiErr):
		out.Code = apiStatusCode(apiErr.StatusCode)
		out.Details = map[string]interface{}{"status": apiErr.StatusCode, "path": apiErr.Path}
	}

	return out
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	switch internalCode {
	case errors.ErrConfig:
		if util.ContainsFold(message, "not found") || util.ContainsFold(message, "no server") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrInput:
		return ErrCodeInvalidInput
	case errors.ErrStream:
		return ErrCodeTransmission
	case errors.ErrRun:
		return ErrCodeRunStateInvalid
	case errors.ErrAPI:
		return ErrCodeServerError
	}
	return ErrCodeUnknown
}

func apiStatusCode(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrCodeUnauthorized
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrCodeInvalidInput
	}
	return ErrCodeServerError
}
