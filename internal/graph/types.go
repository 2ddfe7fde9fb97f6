package graph

import (
	"context"

	"github.com/vk/buildgraph/internal/events"
)

// Key is the immutable identifier of one node. Concrete key types must be
// small comparable structs so they can serve as map keys; structural
// equality is node identity. Domain selects the Func responsible for the
// key via the evaluator's registry.
type Key interface {
	// Domain returns the registry tag of the Func that handles this key.
	Domain() string
	// String renders the key for logs and error messages.
	String() string
}

// Value is the immutable result of a successful node computation. A Value
// may reference other nodes' values but never owns graph-management
// state. Concrete values must not be mutated after being returned.
type Value interface{}

// Func computes a Value for keys of one domain. Implementations are
// stateless per call: a restart re-enters Compute from the top with a
// fresh Env, so any work done before the incomplete point must be cheap
// to repeat or guarded by an external already-ran probe.
type Func interface {
	// Compute derives the value for key, declaring dependencies through
	// env. It returns (nil, nil) when a declared dependency is still
	// pending, a Value when done, or a *Error on failure.
	Compute(ctx context.Context, key Key, env Env) (Value, error)

	// Tag returns a grouping tag for log output. An empty tag means the
	// node's messages are always displayed. The hook is otherwise inert.
	Tag(key Key) string
}

// Result is the per-key outcome of a batched dependency request. At most
// one of Value and Err is set; both nil means the dependency is still
// pending.
type Result struct {
	Value Value
	Err   error
}

// Env is a node function's window into one in-progress computation
// attempt. It is created by the evaluator per attempt, bound to exactly
// one key, and discarded when the attempt ends. It must not be retained
// across a restart.
type Env interface {
	// Value declares a dependency on key and returns its value if the
	// dependency is already done. It returns nil, and marks values
	// missing, when the dependency is pending or failed; surfacing a
	// stored failure requires ValueOrError.
	Value(key Key) Value

	// ValueOrError declares a dependency on key. If the dependency
	// failed and its stored error matches one of the declared classes,
	// that error is returned for the caller to handle. A stored failure
	// matching none of the declared classes is a programming defect and
	// panics. A pending dependency yields (nil, nil) and marks values
	// missing.
	ValueOrError(key Key, classes ...ErrorClass) (Value, error)

	// ValuesOrErrors is the batch form of ValueOrError. Every key is
	// declared as a dependency even when earlier keys in the batch
	// failed, so the evaluator learns the full dependency set of a
	// failing attempt.
	ValuesOrErrors(keys []Key, classes ...ErrorClass) map[Key]Result

	// ValuesMissing reports whether any dependency requested so far in
	// this attempt is still pending (or failed, for plain Value calls).
	ValuesMissing() bool

	// Listener returns the sink for non-fatal diagnostic events.
	Listener() events.Listener
}
