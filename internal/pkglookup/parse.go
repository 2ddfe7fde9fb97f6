package pkglookup

import (
	"fmt"
	"strings"
)

// ParsePackageID parses a package argument of the form "//pkg/name",
// "@repo//pkg/name", or a bare "pkg/name". Name syntax is not validated
// here; an invalid name is a normal lookup result, not a parse error.
func ParsePackageID(s string) (PackageID, error) {
	repository := ""
	rest := s
	if strings.HasPrefix(s, "@") {
		idx := strings.Index(s, "//")
		if idx < 0 {
			return PackageID{}, fmt.Errorf("invalid package argument %q: expected '@repository//package'", s)
		}
		repository = s[1:idx]
		if repository == "" {
			return PackageID{}, fmt.Errorf("invalid package argument %q: empty repository name", s)
		}
		rest = s[idx:]
	}
	rest = strings.TrimPrefix(rest, "//")
	return PackageID{Repository: repository, Name: rest}, nil
}
