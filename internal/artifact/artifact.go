// Package artifact holds the value types flowing through action-input
// resolution: artifacts, their per-file metadata, and aggregate values
// standing in for groups of constituents. Everything here is pure data;
// nothing can fail.
package artifact

import (
	"fmt"

	"github.com/vk/buildgraph/internal/graph"
)

// Artifact names one file an action consumes or produces. Owner is the
// label of the target the artifact belongs to and is used for root-cause
// attribution; it may be empty for ownerless artifacts.
type Artifact struct {
	// Path is the root-relative path of the file.
	Path string
	// Root is the directory the path is anchored under.
	Root string
	// Owner is the owning target's label, "" when unowned.
	Owner string
	// Source is true for checked-in inputs, false for generated ones.
	Source bool
}

func (a Artifact) String() string {
	if a.Root == "" {
		return a.Path
	}
	return a.Root + "/" + a.Path
}

// Key identifies the metadata computation for one artifact. Mandatory is
// part of the identity: for input-discovering actions the evaluator
// tracks mandatory and discovered requests as distinct nodes, because
// missing-ness of the two is reported differently.
type Key struct {
	Artifact  Artifact
	Mandatory bool
}

// ValueKey builds the node key resolving a's metadata.
func ValueKey(a Artifact, mandatory bool) Key {
	return Key{Artifact: a, Mandatory: mandatory}
}

// Domain implements graph.Key.
func (k Key) Domain() string { return "artifact" }

func (k Key) String() string {
	return fmt.Sprintf("artifact:%s mandatory=%t", k.Artifact, k.Mandatory)
}

var _ graph.Key = Key{}

// FileValue is the resolved content metadata of one regular file.
type FileValue struct {
	Digest  string
	Size    int64
	ModTime int64
}

// Entry pairs a constituent artifact with its metadata inside an
// aggregate value.
type Entry struct {
	Artifact Artifact
	Metadata FileValue
}

// AggregateValue stands in for a grouping of other inputs. During input
// resolution it expands into its constituents' metadata; its own
// self-metadata is kept as well because cache checking may want the
// aggregate's digest.
type AggregateValue struct {
	self    FileValue
	entries []Entry
}

// NewAggregateValue builds an immutable aggregate from its self-metadata
// and constituent entries. The entries slice is copied.
func NewAggregateValue(self FileValue, entries []Entry) *AggregateValue {
	copied := make([]Entry, len(entries))
	copy(copied, entries)
	return &AggregateValue{self: self, entries: copied}
}

// SelfData returns the aggregate's own metadata.
func (v *AggregateValue) SelfData() FileValue { return v.self }

// Constituents returns the expanded entries. Callers must not modify the
// returned slice.
func (v *AggregateValue) Constituents() []Entry { return v.entries }

// ConstituentArtifacts projects the entries onto their artifacts.
func (v *AggregateValue) ConstituentArtifacts() []Artifact {
	out := make([]Artifact, len(v.entries))
	for i, e := range v.entries {
		out[i] = e.Artifact
	}
	return out
}

// MissingInputError reports a source input that does not exist. It is a
// normal, expected failure mode of artifact resolution and is declared
// as a handled class by action-input resolution.
type MissingInputError struct {
	Artifact Artifact
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input file '%s'", e.Artifact)
}

// MissingInputClass matches MissingInputError dependencies.
var MissingInputClass = graph.ClassOf[*MissingInputError]()
