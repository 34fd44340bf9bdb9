package genclient

import "fmt"

// ErrorKind is the closed taxonomy every failure is mapped into before it
// reaches a caller. Raw transport errors and raw provider payloads never
// escape this package uninterpreted.
type ErrorKind string

const (
	// KindInvalidInput covers requests rejected before any network call.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindUnauthorized covers a 401 at submit or poll time. Never retried.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindProviderRejected covers non-2xx responses other than 401.
	KindProviderRejected ErrorKind = "provider_rejected"
	// KindMalformedResponse covers 2xx bodies with neither a result nor a job id.
	KindMalformedResponse ErrorKind = "malformed_response"
	// KindGenerationFailed covers jobs the provider explicitly reported as failed.
	KindGenerationFailed ErrorKind = "generation_failed"
	// KindTimedOut covers poll budgets exhausted while the job was still running.
	KindTimedOut ErrorKind = "timed_out"
	// KindNetwork covers transport failures distinct from a received response.
	KindNetwork ErrorKind = "network_error"
)

// Error carries a classified failure together with the best available
// human-readable message extracted from the provider.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("genclient: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("genclient: %s", e.Kind)
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
