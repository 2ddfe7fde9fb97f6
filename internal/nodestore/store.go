// Package nodestore is the evaluator's memo table: the terminal outcome
// (value or failure) and declared dependency set of every node computed
// in the current evaluation generation.
//
// The store holds results only. Scheduling state (pending counters,
// parked attempts, reverse-dependency wakeups) belongs to the evaluator;
// keeping the two apart means replaying a dependency request is a plain
// lookup here with no locking interplay with the scheduler.
//
// A value published for a key is referentially stable for the remainder
// of the generation. On generation rollover, transient failures are
// dropped so the nodes behind them are recomputed when next needed;
// persistent failures stay, since they are deterministic in their inputs.
package nodestore

import (
	"sync"

	"github.com/vk/buildgraph/internal/graph"
)

type record struct {
	value graph.Value
	err   error
	deps  []graph.Key
}

// Store is a thread-safe in-memory node result store.
type Store struct {
	mu    sync.RWMutex
	nodes map[graph.Key]*record
}

// New creates an empty store.
func New() *Store {
	return &Store{nodes: make(map[graph.Key]*record)}
}

// Value returns the published value for key, if the node is done.
func (s *Store) Value(k graph.Key) (graph.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.nodes[k]
	if !ok || r.value == nil {
		return nil, false
	}
	return r.value, true
}

// Failure returns the stored failure for key, if the node failed.
func (s *Store) Failure(k graph.Key) (error, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.nodes[k]
	if !ok || r.err == nil {
		return nil, false
	}
	return r.err, true
}

// Terminal reports whether key has reached a terminal state.
func (s *Store) Terminal(k graph.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.nodes[k]
	return ok && (r.value != nil || r.err != nil)
}

// SetValue publishes the value for key. A terminal state is written at
// most once per generation; rewriting is a defect.
func (s *Store) SetValue(k graph.Key, v graph.Value) {
	if v == nil {
		panic("nodestore: SetValue with nil value")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensure(k)
	if r.value != nil || r.err != nil {
		panic("nodestore: terminal state already set for " + k.String())
	}
	r.value = v
}

// SetFailure publishes the failure for key.
func (s *Store) SetFailure(k graph.Key, err error) {
	if err == nil {
		panic("nodestore: SetFailure with nil error")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensure(k)
	if r.value != nil || r.err != nil {
		panic("nodestore: terminal state already set for " + k.String())
	}
	r.err = err
}

// SetDeps records the full dependency set declared by key's most recent
// attempt. It is written even for failing attempts so invalidation edges
// stay correct.
func (s *Store) SetDeps(k graph.Key, deps []graph.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(k).deps = deps
}

// Deps returns the dependency set recorded for key.
func (s *Store) Deps(k graph.Key) []graph.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.nodes[k]
	if !ok {
		return nil
	}
	return r.deps
}

// DropTransientFailures removes every node whose stored failure is
// classified transient, so the next generation recomputes it. Persistent
// failures and values are kept.
func (s *Store) DropTransientFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.nodes {
		if r.err == nil {
			continue
		}
		if ge, ok := graph.AsError(r.err); ok && ge.IsTransient() {
			delete(s.nodes, k)
		}
	}
}

// Len returns the number of nodes with any recorded state.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *Store) ensure(k graph.Key) *record {
	r, ok := s.nodes[k]
	if !ok {
		r = &record{}
		s.nodes[k] = r
	}
	return r
}
