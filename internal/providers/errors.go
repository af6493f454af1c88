package providers

import (
	"fmt"
	"strings"
)

// UnknownProviderError is returned when a tag names no configured provider.
// It is a configuration error and aborts a batch.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Provider)
}

// SchemaValidationError is returned when provider output cannot be parsed
// or does not satisfy the target schema. The raw text is kept for repair.
type SchemaValidationError struct {
	Schema string
	Issues []string
	Err    error
}

func (e *SchemaValidationError) Error() string {
	msg := fmt.Sprintf("output does not match %s schema", e.Schema)
	if len(e.Issues) > 0 {
		msg += ": " + strings.Join(e.Issues, "; ")
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaValidationError) Unwrap() error {
	return e.Err
}

// UnrecognizedOutputShapeError is returned when a provider produced a value
// that is neither text nor a JSON-like structure.
type UnrecognizedOutputShapeError struct {
	Provider string
	Type     string
}

func (e *UnrecognizedOutputShapeError) Error() string {
	return fmt.Sprintf("unrecognized output shape from %s: %s", e.Provider, e.Type)
}

// APIError wraps a non-success response from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s error (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}
