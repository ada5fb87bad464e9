package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Domain-specific datastore errors for consistent error handling across the application.
// Use errors.Is() to check error types for retry logic and user-facing messages.
var (
	ErrNoHosts            = errors.New("no datastore hosts provided")
	ErrStoreClosed        = errors.New("datastore is closed")
	ErrUnsupportedVersion = errors.New("unsupported engine version")
	ErrInvalidName        = errors.New("invalid collection name, only lowercase letters, numbers and underscores are allowed")
	ErrNotRegistered      = errors.New("collection is not registered")
	ErrVersionConflict    = errors.New("version conflict")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrUnexpectedResponse = errors.New("unexpected engine response")
)

// APIError is an engine error response that was classified as fatal and
// surfaced unchanged. It preserves the raw body so callers can inspect the
// underlying cause beyond the parsed type and reason.
type APIError struct {
	StatusCode int
	Type       string
	Reason     string
	Raw        []byte
}

// Error renders the parsed error envelope when available, falling back to the
// raw body for responses that do not follow the standard error shape.
func (e *APIError) Error() string {
	switch {
	case e.Type != "" && e.Reason != "":
		return fmt.Sprintf("engine error [%d] %s: %s", e.StatusCode, e.Type, e.Reason)
	case e.Type != "":
		return fmt.Sprintf("engine error [%d] %s", e.StatusCode, e.Type)
	case len(e.Raw) > 0:
		return fmt.Sprintf("engine error [%d]: %s", e.StatusCode, e.Raw)
	default:
		return fmt.Sprintf("engine error [%d]", e.StatusCode)
	}
}

// newAPIError parses the engine's error envelope out of a response body.
// Both the structured form {"error":{"type":...,"reason":...}} and the bare
// string form {"error":"..."} occur in the wild.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Raw: body}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return apiErr
	}

	var details struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(envelope.Error, &details); err == nil {
		apiErr.Type = details.Type
		apiErr.Reason = details.Reason
		return apiErr
	}

	var message string
	if err := json.Unmarshal(envelope.Error, &message); err == nil {
		apiErr.Reason = message
	}
	return apiErr
}
