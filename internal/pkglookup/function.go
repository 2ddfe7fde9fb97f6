package pkglookup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/vk/buildgraph/internal/filestate"
	"github.com/vk/buildgraph/internal/graph"
	"github.com/vk/buildgraph/internal/workspace"
)

// Func is the node function for the pkglookup domain.
type Func struct {
	holder *workspace.Holder
}

// New creates the lookup function reading configuration from holder.
func New(holder *workspace.Holder) *Func {
	return &Func{holder: holder}
}

// Compute implements graph.Func.
func (f *Func) Compute(_ context.Context, key graph.Key, env graph.Env) (graph.Value, error) {
	k := key.(Key)
	if k.ID.Repository != "" {
		return f.computeExternal(key, k.ID, env)
	}

	if k.ID.Name == "" {
		return invalidNameValue("the empty package name is invalid"), nil
	}
	if msg := ValidatePackageName(k.ID.Name); msg != "" {
		return invalidNameValue(fmt.Sprintf("invalid package name '%s': %s", k.ID.Name, msg)), nil
	}

	// One snapshot per attempt; a reconfiguration between restarts is
	// observed whole, never partially.
	snapshot := f.holder.Get()
	if snapshot.IsDeleted(k.ID.Name) {
		return deletedPackageValue(), nil
	}

	// Roots are probed strictly in order, one file dependency at a
	// time: probing ahead of an unresolved dependency would declare
	// edges on roots that may turn out to be unnecessary.
	for _, root := range snapshot.Roots() {
		value, err := f.lookupAt(key, env, root, k.ID.Name)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, nil
		}
		if value.PackageExists() {
			return *value, nil
		}
	}
	return noBuildFileValue(), nil
}

// Tag implements graph.Func.
func (f *Func) Tag(graph.Key) string { return "" }

// lookupAt probes one root for the package's build-definition file. It
// returns nil (and no error) while the file dependency is pending.
func (f *Func) lookupAt(key graph.Key, env graph.Env, root, name string) (*Value, error) {
	var buildFilePath string
	if name == ExternalPackageName {
		buildFilePath = filepath.Join(root, WorkspaceFileName)
	} else {
		buildFilePath = filepath.Join(root, name, BuildFileName)
	}
	basename := filepath.Base(buildFilePath)

	fileKey := filestate.FileKey{Path: buildFilePath}
	raw, err := env.ValueOrError(fileKey,
		filestate.IOClass, filestate.SymlinkCycleClass, filestate.InconsistencyClass)
	if err != nil {
		var inconsistent *filestate.InconsistentFilesystemError
		if errors.As(err, &inconsistent) {
			// Not transient from this function's perspective: the
			// filesystem broke an assumption, it will not heal itself
			// mid-build.
			return nil, graph.NewError(key, inconsistent, graph.Persistent)
		}
		var cycle *filestate.SymlinkCycleError
		if errors.As(err, &cycle) {
			return nil, graph.NewError(key, &BuildFileNotFoundError{
				Package: name,
				Msg:     fmt.Sprintf("symlink cycle detected while trying to find %s file %s", basename, buildFilePath),
				Err:     cycle,
			}, graph.Persistent)
		}
		var ioErr *filestate.IOError
		if errors.As(err, &ioErr) {
			return nil, graph.NewError(key, &BuildFileNotFoundError{
				Package: name,
				Msg:     fmt.Sprintf("IO errors while looking for %s file reading %s: %v", basename, buildFilePath, ioErr.Err),
				Err:     ioErr,
			}, graph.Persistent)
		}
		// The declared classes above are exhaustive for file nodes.
		panic(fmt.Sprintf("unexpected file dependency failure: %v", err))
	}
	if raw == nil {
		return nil, nil
	}
	fileValue := raw.(filestate.FileValue)
	if fileValue.Exists && fileValue.IsFile {
		v := successValue(root)
		return &v, nil
	}
	v := noBuildFileValue()
	return &v, nil
}

// computeExternal resolves a package in a non-default repository by
// mapping the repository name through the external package's value and
// re-running the probe against the single mapped root.
func (f *Func) computeExternal(key graph.Key, id PackageID, env graph.Env) (graph.Value, error) {
	externalKey := PackageKey{ID: ExternalPackageID()}
	raw, err := env.ValueOrError(externalKey, NoSuchPackageClass)
	if err != nil {
		return noExternalPackageValue(), nil
	}
	if raw == nil {
		return nil, nil
	}
	external := raw.(PackageValue)

	root, ok := external.RepositoryPath(id.Repository)
	if !ok {
		return nil, graph.NewError(key, &BuildFileNotFoundError{
			Package: id.String(),
			Msg:     fmt.Sprintf("repository named '%s' could not be resolved", id.Repository),
		}, graph.Persistent)
	}
	value, err := f.lookupAt(key, env, root, id.Name)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return *value, nil
}
