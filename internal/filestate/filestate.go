// Package filestate computes the existence and content type of paths on
// disk. It is the filesystem boundary of the graph: package lookup and
// artifact resolution declare dependencies on file nodes instead of
// touching the filesystem themselves, so file state participates in
// invalidation like any other node.
package filestate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vk/buildgraph/internal/graph"
)

// Domain tags file nodes in the evaluator registry.
const Domain = "file"

// FileKey names the stat computation for one path.
type FileKey struct {
	Path string
}

// Domain implements graph.Key.
func (k FileKey) Domain() string { return Domain }

func (k FileKey) String() string { return "file:" + k.Path }

var _ graph.Key = FileKey{}

// FileValue is the observed state of a path. Symlinks are resolved; a
// chain ending at a regular file reads as IsFile.
type FileValue struct {
	Exists bool
	IsFile bool
}

// IOError wraps a filesystem error encountered while probing a path.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("IO error reading %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// SymlinkCycleError reports a symlink chain that never terminates.
type SymlinkCycleError struct {
	Path string
}

func (e *SymlinkCycleError) Error() string {
	return fmt.Sprintf("symlink cycle detected at %s", e.Path)
}

// InconsistentFilesystemError reports a path whose observed state
// contradicts what was already observed this generation. It indicates a
// broken filesystem assumption, not a condition expected to recover
// mid-build.
type InconsistentFilesystemError struct {
	Path   string
	Reason string
}

func (e *InconsistentFilesystemError) Error() string {
	return fmt.Sprintf("inconsistent filesystem state at %s: %s", e.Path, e.Reason)
}

// Error classes consumers declare when depending on file nodes.
var (
	IOClass            = graph.ClassOf[*IOError]()
	SymlinkCycleClass  = graph.ClassOf[*SymlinkCycleError]()
	InconsistencyClass = graph.ClassOf[*InconsistentFilesystemError]()
)

// maxSymlinkHops bounds symlink chain resolution; exceeding it is
// treated as a cycle.
const maxSymlinkHops = 40

// Func is the node function for the file domain. The stat cache is
// bounded and scoped to one generation; it exists to catch observations
// that contradict earlier ones, and to spare re-stats of shared symlink
// chain segments.
type Func struct {
	statCache *lru.Cache[string, FileValue]
}

// New creates the file node function.
func New() (*Func, error) {
	cache, err := lru.New[string, FileValue](4096)
	if err != nil {
		return nil, err
	}
	return &Func{statCache: cache}, nil
}

// NextGeneration drops all cached observations.
func (f *Func) NextGeneration() {
	f.statCache.Purge()
}

// Compute implements graph.Func. File nodes have no dependencies of
// their own; every invocation is a single complete pass.
func (f *Func) Compute(_ context.Context, key graph.Key, _ graph.Env) (graph.Value, error) {
	k := key.(FileKey)
	v, err := f.stat(k.Path)
	if err != nil {
		transience := graph.Transient
		var inconsistent *InconsistentFilesystemError
		var cycle *SymlinkCycleError
		if errors.As(err, &inconsistent) || errors.As(err, &cycle) {
			transience = graph.Persistent
		}
		return nil, graph.NewError(key, err, transience)
	}
	return v, nil
}

// Tag implements graph.Func.
func (f *Func) Tag(graph.Key) string { return "" }

func (f *Func) stat(path string) (FileValue, error) {
	hops := 0
	cur := path
	for {
		fi, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return f.observe(path, FileValue{})
		}
		if err != nil {
			return FileValue{}, &IOError{Path: cur, Err: err}
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			hops++
			if hops > maxSymlinkHops {
				return FileValue{}, &SymlinkCycleError{Path: path}
			}
			target, err := os.Readlink(cur)
			if err != nil {
				return FileValue{}, &IOError{Path: cur, Err: err}
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(cur), target)
			}
			cur = target
			continue
		}
		return f.observe(path, FileValue{Exists: true, IsFile: fi.Mode().IsRegular()})
	}
}

// observe records the stat outcome and flags contradictions with earlier
// observations of the same path within this generation.
func (f *Func) observe(path string, v FileValue) (FileValue, error) {
	if prev, ok := f.statCache.Get(path); ok && prev != v {
		return FileValue{}, &InconsistentFilesystemError{
			Path:   path,
			Reason: fmt.Sprintf("was %+v, now %+v", prev, v),
		}
	}
	f.statCache.Add(path, v)
	return v, nil
}
