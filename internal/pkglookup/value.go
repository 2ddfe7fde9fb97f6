package pkglookup

import "fmt"

// Code classifies a lookup outcome.
type Code int

const (
	// Success: a build-definition file exists under Root.
	Success Code = iota
	// NoBuildFile: no root on the search path contains the file.
	NoBuildFile
	// DeletedPackage: the package name is in the deleted set.
	DeletedPackage
	// InvalidName: the package name fails validation; Reason says why.
	InvalidName
	// NoExternalPackage: the external package itself does not exist, so
	// a non-default repository cannot be resolved.
	NoExternalPackage
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case NoBuildFile:
		return "no build file"
	case DeletedPackage:
		return "deleted package"
	case InvalidName:
		return "invalid name"
	case NoExternalPackage:
		return "no external package"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Value is the result of one package lookup. It is an explicit sum:
// every variant here is an expected, cacheable outcome.
type Value struct {
	Code Code
	// Root is the owning search-path root, set only on Success.
	Root string
	// Reason carries the validator's message, set only on InvalidName.
	Reason string
}

// PackageExists reports whether the lookup located a build file.
func (v Value) PackageExists() bool { return v.Code == Success }

func successValue(root string) Value { return Value{Code: Success, Root: root} }

func noBuildFileValue() Value { return Value{Code: NoBuildFile} }

func deletedPackageValue() Value { return Value{Code: DeletedPackage} }

func invalidNameValue(reason string) Value {
	return Value{Code: InvalidName, Reason: reason}
}

func noExternalPackageValue() Value { return Value{Code: NoExternalPackage} }
