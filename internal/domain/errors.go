package domain

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid setting such as an API key,
// model name, or endpoint. It is never retried.
type ConfigurationError struct {
	Key string
	Msg string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration: " + e.Msg
	}
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Msg)
}

// SourceDataError reports a missing or unusable ingestion artifact.
type SourceDataError struct {
	Artifact string // e.g. "manifest", "chunk file"
	Path     string
	Remedy   string
	Err      error
}

func (e *SourceDataError) Error() string {
	msg := fmt.Sprintf("%s unavailable", e.Artifact)
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Remedy != "" {
		msg += " (" + e.Remedy + ")"
	}
	return msg
}

func (e *SourceDataError) Unwrap() error { return e.Err }

// DimensionMismatchError reports disagreeing vector dimensions or counts.
type DimensionMismatchError struct {
	Context string
	Want    int
	Got     int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch (%s): want %d, got %d", e.Context, e.Want, e.Got)
}

// BackendCallError wraps a failed or unparseable embedding or generation call.
type BackendCallError struct {
	Backend string
	Op      string
	Payload string // truncated raw response, if any
	Err     error
}

func (e *BackendCallError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Backend, e.Op)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Payload != "" {
		msg += fmt.Sprintf(" (payload: %s)", e.Payload)
	}
	return msg
}

func (e *BackendCallError) Unwrap() error { return e.Err }

// IndexNotFoundError is returned when loading an index that was never built.
type IndexNotFoundError struct {
	Dir string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("no index found in %s: run `sopbot ingest` and `sopbot build` first", e.Dir)
}

// NewBackendError builds a BackendCallError, truncating payload to a readable size.
func NewBackendError(backend, op string, payload []byte, err error) *BackendCallError {
	return &BackendCallError{
		Backend: backend,
		Op:      op,
		Payload: truncatePayload(payload, 300),
		Err:     err,
	}
}

func truncatePayload(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

// IsNotFound reports whether err signals an absent index.
func IsNotFound(err error) bool {
	var nf *IndexNotFoundError
	return errors.As(err, &nf)
}
