// Package pkglookup locates the build-definition file of a package on
// the ordered search path, or explains why it cannot be found. Absent
// and invalid packages are normal, cacheable results, not failures; the
// failure channel is reserved for filesystem breakage and unresolvable
// repositories.
package pkglookup

import (
	"fmt"

	"github.com/vk/buildgraph/internal/graph"
)

// Domain tags package-lookup nodes in the evaluator registry.
const Domain = "pkglookup"

// PackageDomain tags loaded-package nodes. The lookup function only
// consumes it, for the one indirection through the external package.
const PackageDomain = "package"

// BuildFileName is the build-definition filename probed for under each
// root.
const BuildFileName = "BUILD.hcl"

// WorkspaceFileName is the special-cased filename of the synthetic
// external package, probed at the root itself.
const WorkspaceFileName = "WORKSPACE.hcl"

// ExternalPackageName is the name of the synthetic external package.
const ExternalPackageName = "external"

// PackageID names a package within a repository. The default repository
// is the empty string.
type PackageID struct {
	// Repository names the repository, "" for the default one.
	Repository string
	// Name is the package's path-like name, e.g. "foo/bar".
	Name string
}

func (id PackageID) String() string {
	if id.Repository == "" {
		return "//" + id.Name
	}
	return "@" + id.Repository + "//" + id.Name
}

// ExternalPackageID identifies the synthetic external package in the
// default repository.
func ExternalPackageID() PackageID {
	return PackageID{Name: ExternalPackageName}
}

// Key names one package-lookup computation.
type Key struct {
	ID PackageID
}

// Domain implements graph.Key.
func (k Key) Domain() string { return Domain }

func (k Key) String() string { return "pkglookup:" + k.ID.String() }

var _ graph.Key = Key{}

// PackageKey names one loaded-package computation.
type PackageKey struct {
	ID PackageID
}

// Domain implements graph.Key.
func (k PackageKey) Domain() string { return PackageDomain }

func (k PackageKey) String() string { return "package:" + k.ID.String() }

var _ graph.Key = PackageKey{}

// PackageValue is the part of a loaded package's value the lookup needs:
// the external package's repository-to-root mapping.
type PackageValue interface {
	// RepositoryPath returns the root mapped for a repository name.
	RepositoryPath(repository string) (string, bool)
}

// NoSuchPackageError reports that a package could not be loaded. The
// lookup declares it when reading the external package, translating it
// into the NoExternalPackage result.
type NoSuchPackageError struct {
	Package string
	Msg     string
}

func (e *NoSuchPackageError) Error() string {
	return fmt.Sprintf("no such package '%s': %s", e.Package, e.Msg)
}

// NoSuchPackageClass matches NoSuchPackageError dependencies.
var NoSuchPackageClass = graph.ClassOf[*NoSuchPackageError]()

// BuildFileNotFoundError reports that a build-definition file could not
// be located or read for reasons beyond plain absence.
type BuildFileNotFoundError struct {
	Package string
	Msg     string
	Err     error
}

func (e *BuildFileNotFoundError) Error() string {
	return fmt.Sprintf("no build file for '%s': %s", e.Package, e.Msg)
}

func (e *BuildFileNotFoundError) Unwrap() error { return e.Err }
