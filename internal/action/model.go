// Package action resolves an executable action's inputs and hands the
// action to its execution collaborator. This is the one node function in
// the core whose failures can be catastrophic: an execution error's
// catastrophe classification is mirrored, not hardcoded.
package action

import (
	"github.com/vk/buildgraph/internal/artifact"
	"github.com/vk/buildgraph/internal/graph"
)

// Domain tags action nodes in the evaluator registry.
const Domain = "action"

// Owner identifies the target an action builds for, for diagnostics and
// root-cause attribution.
type Owner struct {
	// Label is the owning target's label, "" for system-owned actions.
	Label string
	// Location is where the target is declared, for event positions.
	Location string
}

// Action describes one executable action. Immutable once wired.
type Action struct {
	// ID is the action's stable identity within the build.
	ID string
	// Owner is the target this action builds for.
	Owner Owner
	// Inputs is the action's declared input set.
	Inputs []artifact.Artifact
	// MandatoryInputs distinguishes the inputs that must exist even
	// when the action discovers the rest dynamically. Meaningful only
	// when DiscoversInputs is set.
	MandatoryInputs []artifact.Artifact
	// DiscoversInputs marks actions that find additional inputs while
	// executing.
	DiscoversInputs bool
	// Volatile actions may need to execute even when no declared input
	// changed.
	Volatile bool
	// NotifyOnCacheHit actions must be re-considered on every build,
	// even on a cache hit.
	NotifyOnCacheHit bool
}

// Key names the execution computation for one action.
type Key struct {
	ID string
}

// Domain implements graph.Key.
func (k Key) Domain() string { return Domain }

func (k Key) String() string { return "action:" + k.ID }

var _ graph.Key = Key{}
