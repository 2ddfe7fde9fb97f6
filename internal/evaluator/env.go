package evaluator

import (
	"fmt"

	"github.com/vk/buildgraph/internal/events"
	"github.com/vk/buildgraph/internal/graph"
	"github.com/vk/buildgraph/internal/nodestore"
)

// env implements graph.Env for exactly one computation attempt of one
// key. It records every declared dependency in declaration order and is
// discarded when the attempt ends.
type env struct {
	store    *nodestore.Store
	listener events.Listener

	deps    []graph.Key
	seen    map[graph.Key]struct{}
	missing bool
	bubble  error
}

func newEnv(store *nodestore.Store, listener events.Listener) *env {
	return &env{
		store:    store,
		listener: listener,
		seen:     make(map[graph.Key]struct{}),
	}
}

func (e *env) declare(k graph.Key) {
	if _, ok := e.seen[k]; ok {
		return
	}
	e.seen[k] = struct{}{}
	e.deps = append(e.deps, k)
}

func (e *env) Value(k graph.Key) graph.Value {
	e.declare(k)
	if v, ok := e.store.Value(k); ok {
		return v
	}
	if err, ok := e.store.Failure(k); ok {
		// A failed dependency reads as absent; the attempt ends
		// incomplete and the evaluator adopts the first such failure as
		// this node's own, since the function chose not to handle it
		// through ValueOrError.
		if e.bubble == nil {
			e.bubble = err
		}
	}
	e.missing = true
	return nil
}

func (e *env) ValueOrError(k graph.Key, classes ...graph.ErrorClass) (graph.Value, error) {
	e.declare(k)
	if v, ok := e.store.Value(k); ok {
		return v, nil
	}
	if err, ok := e.store.Failure(k); ok {
		for _, class := range classes {
			if class(err) {
				return nil, err
			}
		}
		panic(fmt.Sprintf("dependency %s failed with an error class the caller did not declare: %v", k, err))
	}
	e.missing = true
	return nil, nil
}

func (e *env) ValuesOrErrors(keys []graph.Key, classes ...graph.ErrorClass) map[graph.Key]graph.Result {
	out := make(map[graph.Key]graph.Result, len(keys))
	for _, k := range keys {
		// Every key is declared, even after earlier failures in the
		// batch; the evaluator needs the full dependency set from
		// failing attempts too.
		e.declare(k)
		if v, ok := e.store.Value(k); ok {
			out[k] = graph.Result{Value: v}
			continue
		}
		if err, ok := e.store.Failure(k); ok {
			matched := false
			for _, class := range classes {
				if class(err) {
					matched = true
					break
				}
			}
			if !matched {
				panic(fmt.Sprintf("dependency %s failed with an error class the caller did not declare: %v", k, err))
			}
			out[k] = graph.Result{Err: err}
			continue
		}
		e.missing = true
		out[k] = graph.Result{}
	}
	return out
}

func (e *env) ValuesMissing() bool { return e.missing }

func (e *env) Listener() events.Listener { return e.listener }
