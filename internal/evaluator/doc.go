// Package evaluator drives node computations to completion.
//
// # How it works
//
// The evaluator owns a worker pool and a ready queue. Workers pull keys,
// look up the responsible node function in the registry by key domain,
// and invoke it with a fresh per-attempt environment. The environment
// satisfies dependency requests from the memo table (nodestore) and
// records the full declared set.
//
// A function that comes back incomplete is parked with a counter of its
// outstanding dependencies; those dependencies are scheduled, and when
// the last one reaches a terminal state the parked key is re-enqueued.
// No worker ever blocks waiting on a dependency: parking is the system's
// substitute for suspension, and every attempt restarts from the top of
// the function with earlier requests replayed from the memo table.
//
// # Termination
//
//   - Success: the queue drains with no parked nodes.
//   - Deadlock: the queue drains with parked nodes remaining; this means
//     a dependency cycle and is reported as an evaluation error.
//   - Catastrophic failure or interrupt: evaluation halts immediately,
//     regardless of the keep-going setting.
//
// An ordinary failure halts scheduling of new work unless keep-going is
// set, in which case all reachable nodes still run and each root reports
// its own outcome.
package evaluator
