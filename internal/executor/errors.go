package executor

import (
	"errors"
	"fmt"
)

// Kind classifies an invocation failure. Transient kinds are eligible
// for retry; permanent kinds are not, regardless of remaining attempts.
type Kind string

const (
	// KindTimeout indicates the invocation exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindUnavailable indicates the capability was temporarily down.
	KindUnavailable Kind = "unavailable"
	// KindNetwork indicates a network-class failure.
	KindNetwork Kind = "network"
	// KindInvalidInput indicates the payload was rejected.
	KindInvalidInput Kind = "invalid_input"
	// KindInternal indicates a non-recoverable fault in the capability.
	KindInternal Kind = "internal"
)

// TransientKinds lists the failure kinds retried by default policies.
func TransientKinds() []string {
	return []string{string(KindTimeout), string(KindUnavailable), string(KindNetwork)}
}

// Transient returns true if the kind is a retryable class of failure.
func (k Kind) Transient() bool {
	switch k {
	case KindTimeout, KindUnavailable, KindNetwork:
		return true
	default:
		return false
	}
}

// Error is a classified invocation failure.
type Error struct {
	// Kind is the failure class.
	Kind Kind
	// Item is the item whose invocation failed.
	Item string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("invoke %s: %s: %v", e.Item, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError wraps a cause with a failure kind.
func NewError(kind Kind, item string, err error) *Error {
	return &Error{Kind: kind, Item: item, Err: err}
}

// Classify extracts the failure kind from an error. Unclassified
// errors are treated as internal (permanent).
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
