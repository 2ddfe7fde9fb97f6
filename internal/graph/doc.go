// Package graph defines the contract between node functions and the
// evaluator that drives them.
//
// # The node computation model
//
// Every unit of work in the build is a node: a Key naming a computation,
// a Func that knows how to perform it, and the Value it eventually
// produces. A Func never blocks waiting for another node. Instead it
// declares dependencies through its Env as it runs; when a declared
// dependency has no value yet, the Env silently records the request and
// the Func is expected to finish its pass in a degraded mode, returning
// the incomplete sentinel (nil value, nil error). The evaluator re-invokes
// the Func from the top once the missing dependencies resolve, replaying
// earlier requests from its memo table.
//
// # Outcomes
//
// A single invocation of Compute has exactly one of three outcomes:
//
//   - a non-nil Value and a nil error (the node is done),
//   - a nil Value and a nil error (incomplete; retry after deps resolve),
//   - a nil Value and a non-nil *Error (the node failed).
//
// Returning a Value while dependencies are still missing, or returning
// the incomplete sentinel with nothing missing and no failed dependency,
// is a programming defect and the evaluator treats it as fatal.
//
// # Failures
//
// All failures cross this boundary as *Error: a root-cause Key, a wrapped
// underlying cause, a Transience classification, and a catastrophic flag.
// Transience describes the failing computation's own behavior and is
// never inherited from a failed dependency; a Func that wants to carry a
// dependency's transience forward must do so explicitly.
package graph
