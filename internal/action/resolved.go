package action

import "github.com/vk/buildgraph/internal/artifact"

// ResolvedInputs is the outcome of input resolution: every input's
// content metadata, plus the expansion of each aggregate input into its
// constituents. Unmodifiable once built.
type ResolvedInputs struct {
	metadata map[artifact.Artifact]artifact.FileValue
	expanded map[artifact.Artifact][]artifact.Artifact
}

func newResolvedInputs(
	metadata map[artifact.Artifact]artifact.FileValue,
	expanded map[artifact.Artifact][]artifact.Artifact,
) *ResolvedInputs {
	return &ResolvedInputs{metadata: metadata, expanded: expanded}
}

// Metadata returns the resolved metadata for one artifact. Aggregate
// inputs are present under their own artifact (self data) and under each
// constituent.
func (r *ResolvedInputs) Metadata(a artifact.Artifact) (artifact.FileValue, bool) {
	v, ok := r.metadata[a]
	return v, ok
}

// Expansion returns the constituents an aggregate input expanded into.
func (r *ResolvedInputs) Expansion(a artifact.Artifact) ([]artifact.Artifact, bool) {
	v, ok := r.expanded[a]
	return v, ok
}

// MetadataCount returns the number of artifacts with resolved metadata.
func (r *ResolvedInputs) MetadataCount() int { return len(r.metadata) }

// ExpansionCount returns the number of aggregate inputs expanded.
func (r *ResolvedInputs) ExpansionCount() int { return len(r.expanded) }
