package action

import "github.com/vk/buildgraph/internal/graph"

// ExecutionError is how the execution collaborator reports a failed
// action: a message, the owning targets blamed for it, and whether the
// failure invalidates the rest of the build.
type ExecutionError struct {
	Msg      string
	ActionID string
	// RootCauses are the labels of the targets blamed for the failure.
	RootCauses []string
	// Catastrophe marks failures that make continuing the build
	// meaningless (the action system itself broke, not one target).
	Catastrophe bool

	cause error
}

func (e *ExecutionError) Error() string { return e.Msg }

func (e *ExecutionError) Unwrap() error { return e.cause }

// ExecutionClass matches ExecutionError dependencies.
var ExecutionClass = graph.ClassOf[*ExecutionError]()

// AlreadyReportedError wraps an execution failure whose user-visible
// reporting already happened, so the evaluator must not report it again.
type AlreadyReportedError struct {
	Err *ExecutionError
}

func (e *AlreadyReportedError) Error() string { return e.Err.Error() }

func (e *AlreadyReportedError) Unwrap() error { return e.Err }
