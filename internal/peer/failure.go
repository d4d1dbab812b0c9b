package peer

import (
	"errors"
	"fmt"
)

// FailureClass partitions daemon collaborator errors by the recovery
// they call for.
type FailureClass int

const (
	// Transient failures (network blips, busy hardware) are retried
	// with backoff without leaving the current state.
	Transient FailureClass = iota
	// AuthIssue failures require user action (re-authentication) and
	// move the daemon into its auth-pending state.
	AuthIssue
	// ResourceUnavailable failures mean a required resource is gone
	// (no active device, reader unplugged) and the operation cannot
	// succeed until the resource returns.
	ResourceUnavailable
)

// String returns the class name used in logs and error payloads.
func (c FailureClass) String() string {
	switch c {
	case Transient:
		return "TRANSIENT"
	case AuthIssue:
		return "AUTH_ISSUE"
	case ResourceUnavailable:
		return "RESOURCE_UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// Failure is a classified collaborator error. Daemons wrap backend and
// hardware errors in a Failure so their state machines can branch on
// the class instead of string-matching error text.
type Failure struct {
	Class FailureClass
	Op    string
	Err   error
}

// NewFailure wraps err as a classified failure of the named operation.
func NewFailure(class FailureClass, op string, err error) *Failure {
	return &Failure{Class: class, Op: op, Err: err}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s failed", f.Class, f.Op)
	}
	return fmt.Sprintf("%s: %s: %v", f.Class, f.Op, f.Err)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Classify extracts the failure class of err. Unclassified errors are
// treated as Transient, the safest default: they are retried rather
// than escalated.
func Classify(err error) FailureClass {
	var f *Failure
	if errors.As(err, &f) {
		return f.Class
	}
	return Transient
}
