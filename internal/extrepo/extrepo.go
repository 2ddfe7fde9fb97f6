// Package extrepo computes the synthetic external package: the mapping
// from repository names to local roots, declared in the workspace
// definition file as
//
//	repository "tools" {
//	  path = "/abs/path/to/tools"
//	}
//
// Package lookups for non-default repositories indirect through this
// value to find the single root to probe.
package extrepo

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildgraph/internal/filestate"
	"github.com/vk/buildgraph/internal/graph"
	"github.com/vk/buildgraph/internal/pkglookup"
)

// Package is the external package's value.
type Package struct {
	repositories map[string]string
}

// RepositoryPath implements pkglookup.PackageValue.
func (p *Package) RepositoryPath(repository string) (string, bool) {
	root, ok := p.repositories[repository]
	return root, ok
}

var _ pkglookup.PackageValue = (*Package)(nil)

// Func is the node function for the package domain. Only the synthetic
// external package is computable; general package loading is a different
// subsystem.
type Func struct{}

// New creates the external package function.
func New() *Func { return &Func{} }

// Compute implements graph.Func.
func (f *Func) Compute(_ context.Context, key graph.Key, env graph.Env) (graph.Value, error) {
	k := key.(pkglookup.PackageKey)
	if k.ID != pkglookup.ExternalPackageID() {
		return nil, graph.NewError(key,
			fmt.Errorf("package loading is only supported for %s", pkglookup.ExternalPackageID()),
			graph.Persistent)
	}

	rawLookup := env.Value(pkglookup.Key{ID: k.ID})
	if rawLookup == nil {
		return nil, nil
	}
	lookup := rawLookup.(pkglookup.Value)
	if !lookup.PackageExists() {
		return nil, graph.NewError(key, &pkglookup.NoSuchPackageError{
			Package: k.ID.String(),
			Msg:     lookup.Code.String(),
		}, graph.Persistent)
	}

	workspaceFile := filepath.Join(lookup.Root, pkglookup.WorkspaceFileName)
	// Depending on the file node keeps this value tracked against
	// workspace file changes; the lookup above already proved it is a
	// regular file.
	if env.Value(filestate.FileKey{Path: workspaceFile}) == nil {
		return nil, nil
	}

	repositories, err := parseRepositories(workspaceFile)
	if err != nil {
		return nil, graph.NewError(key, &pkglookup.NoSuchPackageError{
			Package: k.ID.String(),
			Msg:     err.Error(),
		}, graph.Persistent)
	}
	return &Package{repositories: repositories}, nil
}

// Tag implements graph.Func.
func (f *Func) Tag(graph.Key) string { return "" }

func parseRepositories(path string) (map[string]string, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}

	content, diags := file.Body.Content(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "repository", LabelNames: []string{"name"}},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", path, diags)
	}

	repositories := make(map[string]string, len(content.Blocks))
	for _, block := range content.Blocks {
		name := block.Labels[0]
		if _, exists := repositories[name]; exists {
			return nil, fmt.Errorf("repository '%s' declared twice in %s", name, path)
		}
		blockContent, diags := block.Body.Content(&hcl.BodySchema{
			Attributes: []hcl.AttributeSchema{{Name: "path", Required: true}},
		})
		if diags.HasErrors() {
			return nil, fmt.Errorf("decoding repository '%s' in %s: %w", name, path, diags)
		}
		val, diags := blockContent.Attributes["path"].Expr.Value(nil)
		if diags.HasErrors() || val.Type() != cty.String {
			return nil, fmt.Errorf("repository '%s' in %s: path must be a string", name, path)
		}
		repositories[name] = val.AsString()
	}
	return repositories, nil
}
