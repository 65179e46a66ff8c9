package scripts

import "fmt"

// UpstreamError wraps a network or remote-system failure. It is the only
// retryable kind in the taxonomy; everything else describes a request that
// will keep failing until the caller changes it.
type UpstreamError struct {
	Endpoint string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("netbox unavailable (%s): %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ScriptNotFoundError means the script id is unknown to the catalog.
type ScriptNotFoundError struct {
	ScriptID int64
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("script %d not found in catalog", e.ScriptID)
}

// UnresolvedReferenceError means an ObjectVar value was not drawn from a
// choice set fetched in this session. The caller must re-resolve via
// Choices; the engine never accepts a guessed id.
type UnresolvedReferenceError struct {
	Variable string
	Endpoint string
	Value    any
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("variable %q: no reference endpoint known, value %v cannot be verified", e.Variable, e.Value)
	}
	return fmt.Sprintf("variable %q: value %v is not a verified id from %s; fetch choices for that endpoint first", e.Variable, e.Value, e.Endpoint)
}

// InvalidRequestError means the execution request failed local validation
// before submission: a missing required variable or a value of the wrong
// type for its declared kind.
type InvalidRequestError struct {
	ScriptID int64
	Variable string
	Reason   string
}

func (e *InvalidRequestError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("script %d: variable %q: %s", e.ScriptID, e.Variable, e.Reason)
	}
	return fmt.Sprintf("script %d: %s", e.ScriptID, e.Reason)
}

// SubmissionRejectedError means NetBox refused the submission (HTTP 4xx).
// Detail carries the remote error payload verbatim so the caller can
// explain it rather than guess.
type SubmissionRejectedError struct {
	ScriptID   int64
	StatusCode int
	Detail     string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("script %d: submission rejected (HTTP %d): %s", e.ScriptID, e.StatusCode, e.Detail)
}
