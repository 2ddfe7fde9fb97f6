package evaluator

import (
	"fmt"
	"log/slog"

	"github.com/vk/buildgraph/internal/graph"
)

// Registry maps key domains to the node functions that handle them.
// Dispatch is by domain tag, not by key type, so new domains can be added
// without touching existing functions. Registration happens during
// startup wiring; the registry is read-only afterwards.
type Registry struct {
	funcs map[string]graph.Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]graph.Func)}
}

// Register binds fn to a key domain. Registering a domain twice is a
// wiring bug and panics.
func (r *Registry) Register(domain string, fn graph.Func) {
	if _, exists := r.funcs[domain]; exists {
		panic(fmt.Sprintf("node function for domain '%s' already registered", domain))
	}
	slog.Debug("Registering node function.", "domain", domain)
	r.funcs[domain] = fn
}

// Lookup returns the function registered for domain.
func (r *Registry) Lookup(domain string) (graph.Func, bool) {
	fn, ok := r.funcs[domain]
	return fn, ok
}
