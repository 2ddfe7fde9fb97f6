package action

import (
	"context"

	"github.com/vk/buildgraph/internal/graph"
)

// Executor is the execution collaborator boundary. It owns running
// actions, remembering what already ran this build, and reporting
// execution failures to the user; the node function only resolves inputs
// and routes outcomes.
type Executor interface {
	// Probe reports whether the action already executed in this build
	// attempt. A true probe lets a restarted computation skip the cost
	// of rebuilding the input metadata aggregate.
	Probe(a *Action) bool

	// Execute runs the action against its resolved inputs and returns
	// its value. inputs is nil when the action already ran and the
	// executor is expected to return the memoized result. Failures are
	// reported as *ExecutionError; the executor classifies its own root
	// causes and catastrophe.
	Execute(ctx context.Context, a *Action, inputs *ResolvedInputs) (graph.Value, error)

	// ReportNotExecuted emits not-executed events for the targets in
	// rootCauses.
	ReportNotExecuted(a *Action, rootCauses []string)

	// ReportFailure records that the action itself failed, for
	// top-level reporting.
	ReportFailure(a *Action)
}
