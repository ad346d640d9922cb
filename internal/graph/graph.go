// Package graph builds the module graph of a JavaScript/TypeScript package:
// one ModuleNode per source file, with its export and import bindings and its
// directory submodules. Modules refer to each other by path only, so the
// graph is index-addressed and re-export cycles are plain repeated keys.
package graph

import (
	"errors"

	"github.com/jward/nodetree/internal/syntax"
)

var (
	// ErrEmptyPackage is returned when a package has no readable source files.
	ErrEmptyPackage = errors.New("empty package: no readable source files")

	// ErrCancelled is returned when the context is cancelled mid-build.
	ErrCancelled = errors.New("cancelled")
)

// ParseStatus records how completely a module was understood.
type ParseStatus string

const (
	Parsed          ParseStatus = "parsed"
	PartiallyParsed ParseStatus = "partially-parsed"
)

// BindingKind is the kind of an export binding.
type BindingKind string

const (
	Function  BindingKind = "function"
	Class     BindingKind = "class"
	Const     BindingKind = "const"
	TypeAlias BindingKind = "type"
	Interface BindingKind = "interface"
	ReExport  BindingKind = "reexport"
	Wildcard  BindingKind = "wildcard"
	Namespace BindingKind = "namespace"
)

// IsTypeOnly reports whether the kind has no runtime value.
func (k BindingKind) IsTypeOnly() bool {
	return k == TypeAlias || k == Interface
}

// ExportBinding is one entry of a module's explicit export list.
//
// For declarations Decl points at the local declaration. For ReExport,
// Wildcard and re-exported Namespace bindings, Source is the specifier as
// written and Target the resolved module path; Target is empty when the
// specifier points outside the package. Original is the name looked up in
// the target (empty for Wildcard).
type ExportBinding struct {
	Name     string
	Kind     BindingKind
	Decl     *syntax.Decl
	Source   string
	Target   string
	Original string
	Line     int
}

// ImportBinding maps a local name to a binding in another module.
type ImportBinding struct {
	Local    string
	Source   string
	Target   string
	Imported string
	Wildcard bool
}

// ModuleNode is one source file of the package. It is immutable once Build
// returns.
type ModuleNode struct {
	Path        string
	Kind        syntax.FileKind
	Exports     []ExportBinding
	Imports     []ImportBinding
	Children    []string
	Status      ParseStatus
	Diagnostics []string

	// File is the lowered syntax of the module; nil if it failed to parse.
	File *syntax.File
}

// Import looks up an import binding by its local name.
func (m *ModuleNode) Import(local string) (ImportBinding, bool) {
	for _, imp := range m.Imports {
		if imp.Local == local {
			return imp, true
		}
	}
	return ImportBinding{}, false
}

// Graph is the module graph of one package.
type Graph struct {
	// Root is the package directory on disk.
	Root     string
	Manifest *Manifest
	Entry    string
	Modules  map[string]*ModuleNode

	// Order lists module paths alphabetically.
	Order []string

	// Subpaths maps manifest export subpaths ("utils" for "./utils") to
	// module paths.
	Subpaths map[string]string

	Diagnostics []string

	// dirs indexes the directories that contain modules.
	dirs     *dirIndex
	resolver *specResolver
}

// Module returns the module at path, or nil.
func (g *Graph) Module(path string) *ModuleNode {
	return g.Modules[path]
}

// DirModules returns the modules a directory path expands to: its index
// module if it has one, otherwise its promoted contents. Returns nil when
// the directory holds no modules.
func (g *Graph) DirModules(dir string) []string {
	if !g.dirs.isDir(dir) {
		return nil
	}
	return g.dirs.entries(dir)
}

// ResolvePath maps a package-relative path to a module the way a module
// loader would: exact file, added extension, compiled extension swapped for
// its TypeScript source, then directory index. Returns "" when nothing
// matches.
func (g *Graph) ResolvePath(p string) string {
	p = cleanManifestPath(p)
	if p == "" {
		return ""
	}
	return g.resolver.file(p)
}
