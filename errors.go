package httpmock

import (
	"errors"
	"fmt"
)

// ErrUnmatchedRequest is returned when no Recipe accepted the request and
// no onMissingRecipe fallback produced a response, and the Registry is
// configured with throwOnUnmatched.
var ErrUnmatchedRequest = errors.New("httpmock: no recipe matched the request")

// ErrCancelled is returned when the request's cancellation signal fired
// before or during dispatch.
var ErrCancelled = errors.New("httpmock: request was cancelled")

// ErrScopeMisuse is returned when EndScope is called out of order or with
// an unknown handle.
var ErrScopeMisuse = errors.New("httpmock: scope ended out of order or unknown")

// UserCallbackError wraps a failure raised by user-supplied code: a
// pre-dispatch callback, a header thunk, a content thunk, or a stream
// opener. The original failure is reachable via Unwrap/errors.As and is
// never translated or swallowed.
type UserCallbackError struct {
	Cause error
}

func (e *UserCallbackError) Error() string {
	return fmt.Sprintf("httpmock: user callback failed: %v", e.Cause)
}

func (e *UserCallbackError) Unwrap() error {
	return e.Cause
}

// BuilderError is returned by registration-time validation of a Builder in
// an inconsistent state: e.g. a negative priority or an unknown bundle
// content format.
type BuilderError struct {
	Reason string
}

func (e *BuilderError) Error() string {
	return "httpmock: builder misuse: " + e.Reason
}
