package pkglookup

import "strings"

// ValidatePackageName checks package-name syntax and returns an empty
// string when the name is well formed, otherwise a human-readable
// reason. Validation failures are normal lookup results, never errors.
func ValidatePackageName(name string) string {
	if name == "" {
		return "the empty package name is invalid"
	}
	if strings.HasPrefix(name, "/") {
		return "package names may not be absolute"
	}
	if strings.HasSuffix(name, "/") {
		return "package names may not end with a slash"
	}
	if strings.Contains(name, "//") {
		return "package names may not contain '//'"
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == "." || segment == ".." {
			return "package names may not contain '.' or '..' path segments"
		}
	}
	for _, r := range name {
		if !isAllowedNameRune(r) {
			return "package names may only contain A-Z, a-z, 0-9, '/', '-', '.', '_' and ' '"
		}
	}
	return ""
}

func isAllowedNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '/' || r == '-' || r == '.' || r == '_' || r == ' ':
		return true
	default:
		return false
	}
}
