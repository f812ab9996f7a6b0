package errors

import "fmt"

// TransientServiceError marks a failure of a remote call that is expected to
// clear on its own: network errors, timeouts, throttling.
type TransientServiceError struct {
	// Op names the call that failed ("complete", "evaluate", ...).
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransientServiceError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientServiceError for op.
func Transient(op string, err error) *TransientServiceError {
	return &TransientServiceError{Op: op, Err: err}
}

// SchemaValidationError reports a structured response that does not conform
// to its schema. It is never retried.
type SchemaValidationError struct {
	// Field is the offending field, empty when the whole payload is unusable.
	Field   string
	Message string
	// Raw is the response text that failed validation.
	Raw string
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("schema validation failed: %s", e.Message)
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// TimeoutError indicates an operation timed out.
type TimeoutError struct {
	Operation string
	Duration  string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}
