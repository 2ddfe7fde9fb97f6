// Package precomputed serves values injected by the evaluation's owner
// rather than computed from dependencies. The main one is the build id:
// a fresh identifier per build generation that volatile actions depend
// on so they are re-considered every build even when no real input
// changed.
package precomputed

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vk/buildgraph/internal/graph"
)

// Domain tags precomputed nodes in the evaluator registry.
const Domain = "precomputed"

// BuildIDName is the injected-value name of the per-generation build id.
const BuildIDName = "build_id"

// Key names one injected value.
type Key struct {
	Name string
}

// Domain implements graph.Key.
func (k Key) Domain() string { return Domain }

func (k Key) String() string { return "precomputed:" + k.Name }

var _ graph.Key = Key{}

// BuildIDKey returns the key of the build id value.
func BuildIDKey() Key { return Key{Name: BuildIDName} }

// BuildID is the value of the build id node.
type BuildID string

// NewBuildID mints a fresh build id.
func NewBuildID() BuildID { return BuildID(uuid.NewString()) }

// Func serves injected values. Set is called by the owner during wiring,
// before or between evaluations; Compute only reads.
type Func struct {
	mu     sync.RWMutex
	values map[string]graph.Value
}

// New creates an empty injected-value function.
func New() *Func {
	return &Func{values: make(map[string]graph.Value)}
}

// Set injects or replaces the value served for name. Replacing a value
// mid-generation does not re-run nodes that already read the old one;
// callers swap values only between generations.
func (f *Func) Set(name string, v graph.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = v
}

// Compute implements graph.Func.
func (f *Func) Compute(_ context.Context, key graph.Key, _ graph.Env) (graph.Value, error) {
	k := key.(Key)
	f.mu.RLock()
	v, ok := f.values[k.Name]
	f.mu.RUnlock()
	if !ok {
		return nil, graph.NewError(key, fmt.Errorf("no injected value named %q", k.Name), graph.Persistent)
	}
	return v, nil
}

// Tag implements graph.Func.
func (f *Func) Tag(graph.Key) string { return "" }
