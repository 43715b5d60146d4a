package query

import (
	"errors"
	"strings"

	"github.com/platinummonkey/neuronote/pkg/audit"
)

var (
	// ErrInvalidRequest is returned when a query is missing required fields
	ErrInvalidRequest = errors.New("invalid query request")

	// ErrBackendUnavailable is returned when the orchestrator cannot be reached
	// or answers with a failure status
	ErrBackendUnavailable = errors.New("query backend unavailable")
)

// Request is a user query forwarded to the orchestrator
type Request struct {
	UserID    string                 `json:"user_id"`
	InputText string                 `json:"input_text"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Validate checks the required fields
func (r Request) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return &FieldError{Field: "user_id"}
	}
	if strings.TrimSpace(r.InputText) == "" {
		return &FieldError{Field: "input_text"}
	}
	return nil
}

// FieldError reports a missing request field
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return e.Field + " is required"
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidRequest
}

// Response is the body of POST /query
type Response struct {
	TraceID string               `json:"trace_id"`
	Results []audit.PluginResult `json:"results"`
}
