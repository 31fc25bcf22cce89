package domain

import (
	"errors"
	"fmt"
)

// Repository sentinels.
var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrStatusMismatch = errors.New("order status changed concurrently")
)

// FailureKind classifies why a status operation did not succeed.
type FailureKind string

const (
	KindOrderNotFound    FailureKind = "ORDER_NOT_FOUND"
	KindStatusUnchanged  FailureKind = "STATUS_UNCHANGED"
	KindInvalidStatus    FailureKind = "INVALID_STATUS"
	KindInvalidRole      FailureKind = "INVALID_ROLE"
	KindTransitionDenied FailureKind = "TRANSITION_DENIED"
	KindConflict         FailureKind = "CONFLICT"
	KindStoreFailure     FailureKind = "STORE_FAILURE"
)

// Failure is the typed error returned across the status service boundary.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func NewFailure(kind FailureKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf extracts the failure kind from err, or "" when err carries none.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	return err != nil && KindOf(err) == kind
}

func deniedFailure(role Role, from, to Status) *Failure {
	if !CanTransition(from, to) {
		return NewFailure(KindTransitionDenied,
			fmt.Sprintf("transition %s -> %s is not allowed for role %s: not a valid transition", from, to, role), nil)
	}
	return NewFailure(KindTransitionDenied,
		fmt.Sprintf("transition %s -> %s is not allowed for role %s: permission denied", from, to, role), nil)
}
