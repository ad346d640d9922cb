package nodetree

import (
	"fmt"
	"strings"
)

// PackageRef names a package, an optional version and an optional path
// inside it: name[@version][/path].
type PackageRef struct {
	Name    string
	Version string
	Path    string
}

func (r PackageRef) String() string {
	s := r.Name
	if r.Version != "" {
		s += "@" + r.Version
	}
	if r.Path != "" {
		s += "/" + r.Path
	}
	return s
}

// Qualifier is a parsed name[@version][/path]:symbol reference.
type Qualifier struct {
	PackageRef
	Symbol string
}

func (q Qualifier) String() string {
	return q.PackageRef.String() + ":" + q.Symbol
}

// ParseQualifier parses packageName[@version][/path]:symbolName. Scoped
// names (@scope/name) are supported.
func ParseQualifier(text string) (Qualifier, error) {
	i := strings.LastIndex(text, ":")
	if i < 0 {
		return Qualifier{}, fmt.Errorf("qualifier %q: missing :symbol", text)
	}
	symbol := strings.TrimSpace(text[i+1:])
	if symbol == "" {
		return Qualifier{}, fmt.Errorf("qualifier %q: empty symbol", text)
	}
	ref, err := ParsePackageRef(text[:i])
	if err != nil {
		return Qualifier{}, err
	}
	return Qualifier{PackageRef: ref, Symbol: symbol}, nil
}

// ParsePackageRef parses packageName[@version][/path].
func ParsePackageRef(text string) (PackageRef, error) {
	s := strings.TrimSpace(text)
	start := 0
	if strings.HasPrefix(s, "@") {
		slash := strings.Index(s, "/")
		if slash <= 1 {
			return PackageRef{}, fmt.Errorf("package %q: scoped name needs @scope/name", text)
		}
		start = slash + 1
	}

	var ref PackageRef
	rest := ""
	if j := strings.IndexAny(s[start:], "@/"); j >= 0 {
		ref.Name = s[:start+j]
		rest = s[start+j:]
	} else {
		ref.Name = s
	}
	if ref.Name == "" || strings.HasSuffix(ref.Name, "/") {
		return PackageRef{}, fmt.Errorf("package %q: empty package name", text)
	}

	if strings.HasPrefix(rest, "@") {
		rest = rest[1:]
		k := strings.Index(rest, "/")
		if k < 0 {
			k = len(rest)
		}
		ref.Version = rest[:k]
		rest = rest[k:]
		if ref.Version == "" {
			return PackageRef{}, fmt.Errorf("package %q: empty version", text)
		}
	}
	ref.Path = strings.Trim(rest, "/")
	return ref, nil
}
