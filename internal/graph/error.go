package graph

import (
	"errors"
	"fmt"
)

// Transience classifies whether a failure may resolve itself without an
// input change.
type Transience int

const (
	// Transient failures are attributable to external conditions (I/O,
	// scheduling) and may not recur on re-execution. They are recomputed
	// whenever needed again rather than durably cached.
	Transient Transience = iota

	// Persistent failures are deterministic in the computation's inputs
	// and may be cached as the node's stable failed outcome until an
	// input changes.
	Persistent
)

func (t Transience) String() string {
	switch t {
	case Transient:
		return "transient"
	case Persistent:
		return "persistent"
	default:
		return fmt.Sprintf("Transience(%d)", int(t))
	}
}

// Error is the one failure type node functions are allowed to return.
// It is immutable once constructed. The root cause is the most specific
// node blamed for the failure and must be a key the failing invocation
// actually examined (or its own key), never fabricated.
type Error struct {
	rootCause    Key
	cause        error
	transience   Transience
	catastrophic bool
}

// NewError builds a non-catastrophic failure blaming rootCause.
func NewError(rootCause Key, cause error, transience Transience) *Error {
	if cause == nil {
		panic("graph: NewError requires a non-nil cause")
	}
	if rootCause == nil {
		panic("graph: NewError requires a root cause key")
	}
	return &Error{rootCause: rootCause, cause: cause, transience: transience}
}

// NewCatastrophicError builds a failure that halts the whole build even
// under a keep-going policy. Catastrophe and transience are orthogonal.
func NewCatastrophicError(rootCause Key, cause error, transience Transience) *Error {
	e := NewError(rootCause, cause, transience)
	e.catastrophic = true
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.rootCause, e.cause)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.cause }

// RootCause returns the node blamed for the failure. It may point further
// down the dependency chain than the node that raised the error.
func (e *Error) RootCause() Key { return e.rootCause }

// Transience returns the failure's classification.
func (e *Error) Transience() Transience { return e.transience }

// IsTransient reports whether the failure may self-heal on re-execution.
func (e *Error) IsTransient() bool { return e.transience == Transient }

// Catastrophic reports whether the failure must halt the entire build.
func (e *Error) Catastrophic() bool { return e.catastrophic }

// AsError unwraps err into a *Error if one is in its chain.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// ErrorClass reports whether a stored dependency failure belongs to a
// class of errors the caller declared it can handle. An Env re-raises a
// stored failure only when one of the caller's declared classes matches;
// anything else escaping is a defect in the node function, not a build
// failure.
type ErrorClass func(error) bool

// ClassOf builds an ErrorClass matching errors assignable to T anywhere
// in the unwrap chain.
func ClassOf[T error]() ErrorClass {
	return func(err error) bool {
		var target T
		return errors.As(err, &target)
	}
}
