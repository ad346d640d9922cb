package graph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/jward/nodetree/internal/syntax"
)

// maxFileSize skips files (usually minified bundles) too large to be useful.
const maxFileSize = 4 << 20

// skipDirs are never descended into during discovery.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"test":         {},
	"tests":        {},
	"__tests__":    {},
	"__mocks__":    {},
	"__fixtures__": {},
	"coverage":     {},
}

// fallbackEntries are tried when the manifest declares no usable entry.
var fallbackEntries = []string{
	"index", "lib/index", "src/index", "dist/index", "build/index", "types/index",
}

type options struct {
	workers int
	exclude []string
}

// Option configures Build.
type Option func(*options)

// WithWorkers sets the number of parallel parse workers. Zero or negative
// means runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithExclude adds gitignore-style patterns for files to leave out of the
// graph, relative to the package root.
func WithExclude(patterns ...string) Option {
	return func(o *options) {
		o.exclude = append(o.exclude, patterns...)
	}
}

// parsed is the write-once result slot of one file.
type parsed struct {
	file *syntax.File
	err  error
	read bool
}

// Build discovers the source files under root, parses them in parallel and
// assembles the module graph.
//
// Files that cannot be read or parsed become PartiallyParsed modules with no
// bindings. Build fails only when no file is readable (ErrEmptyPackage) or
// ctx is cancelled (ErrCancelled).
func Build(ctx context.Context, root string, opts ...Option) (*Graph, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = runtime.NumCPU()
	}

	g := &Graph{
		Root:     root,
		Modules:  make(map[string]*ModuleNode),
		Subpaths: make(map[string]string),
	}

	manifest, err := loadManifest(root)
	if err != nil {
		g.Diagnostics = append(g.Diagnostics, err.Error())
	}
	g.Manifest = manifest

	paths, err := discover(root, manifest, o.exclude)
	if err != nil {
		return nil, fmt.Errorf("graph: discover %s: %w", root, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("graph: %s: %w", root, ErrEmptyPackage)
	}

	results, err := parseAll(ctx, root, paths, o.workers)
	if err != nil {
		return nil, err
	}

	readable := 0
	for _, r := range results {
		if r.read {
			readable++
		}
	}
	if readable == 0 {
		return nil, fmt.Errorf("graph: %s: %w", root, ErrEmptyPackage)
	}

	g.Order = paths
	g.dirs = newDirIndex(paths)
	known := make(map[string]bool, len(paths))
	for _, p := range paths {
		known[p] = true
	}
	r := &specResolver{known: known, name: manifest.Name}

	g.Entry = r.entry(manifest, g.dirs)
	r.entryPath = g.Entry
	for sub, targets := range manifest.SubpathTargets() {
		for _, t := range targets {
			if mod := r.file(cleanManifestPath(t)); mod != "" {
				g.Subpaths[sub] = mod
				break
			}
		}
	}
	r.subpaths = g.Subpaths
	g.resolver = r

	for i, p := range paths {
		g.Modules[p] = newModule(p, results[i], r, g.dirs, p == g.Entry)
	}
	return g, nil
}

// parseAll parses every file with a bounded worker pool. Each worker writes
// only its own slot of the result slice.
func parseAll(ctx context.Context, root string, paths []string, workers int) ([]parsed, error) {
	results := make([]parsed, len(paths))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, p := range paths {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = parseOne(egCtx, root, p)
			return nil
		})
	}
	if err := eg.Wait(); err != nil || ctx.Err() != nil {
		return nil, fmt.Errorf("graph: build: %w", ErrCancelled)
	}
	return results, nil
}

func parseOne(ctx context.Context, root, p string) parsed {
	full := filepath.Join(root, filepath.FromSlash(p))
	info, err := os.Stat(full)
	if err != nil {
		return parsed{err: fmt.Errorf("read: %w", err)}
	}
	if info.Size() > maxFileSize {
		return parsed{err: fmt.Errorf("read: file too large (%d bytes)", info.Size())}
	}
	src, err := os.ReadFile(full)
	if err != nil {
		return parsed{err: fmt.Errorf("read: %w", err)}
	}
	f, err := syntax.Parse(ctx, p, src)
	return parsed{file: f, err: err, read: true}
}

// discover walks root for source files, returning forward-slash paths
// relative to root in alphabetical order. Manifest-declared entry files are
// included even when discovery rules would skip them.
func discover(root string, m *Manifest, exclude []string) ([]string, error) {
	var gi *ignore.GitIgnore
	if len(exclude) > 0 {
		gi = ignore.CompileIgnoreLines(exclude...)
	}

	seen := make(map[string]bool)
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if p == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 || strings.HasPrefix(name, ".") || skipFile(name) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		seen[rel] = true
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, cand := range m.EntryCandidates() {
		p := cleanManifestPath(cand)
		if p == "" || seen[p] || !syntax.IsSource(p) {
			continue
		}
		if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err == nil && info.Mode().IsRegular() {
			seen[p] = true
			out = append(out, p)
		}
	}

	sort.Strings(out)
	return out, nil
}

func skipFile(name string) bool {
	if !syntax.IsSource(name) {
		return true
	}
	stem := syntax.StripExt(name)
	return strings.HasSuffix(stem, ".test") || strings.HasSuffix(stem, ".spec")
}

// newModule turns one parse result into a ModuleNode.
func newModule(p string, res parsed, r *specResolver, dirs *dirIndex, isEntry bool) *ModuleNode {
	m := &ModuleNode{
		Path:     p,
		Kind:     syntax.KindForPath(p),
		Status:   Parsed,
		Children: dirs.childrenOf(p, isEntry),
	}
	if res.err != nil {
		m.Status = PartiallyParsed
		var pe *syntax.ParseError
		if errors.As(res.err, &pe) {
			m.Diagnostics = append(m.Diagnostics, pe.Error())
		} else {
			m.Diagnostics = append(m.Diagnostics, res.err.Error())
		}
		return m
	}

	f := res.file
	m.File = f
	m.Kind = f.Kind
	if len(f.Diagnostics) > 0 {
		m.Status = PartiallyParsed
		for _, d := range f.Diagnostics {
			m.Diagnostics = append(m.Diagnostics, fmt.Sprintf("line %d: %s", d.Line, d.Message))
		}
	}

	for _, imp := range f.Imports {
		m.Imports = append(m.Imports, ImportBinding{
			Local:    imp.Local,
			Source:   imp.Source,
			Target:   r.resolve(p, imp.Source),
			Imported: imp.Imported,
			Wildcard: imp.Namespace,
		})
	}
	m.Exports = exportBindings(p, f, m, r)
	return m
}

// exportBindings converts the file's export statements into bindings. For
// duplicate names a value binding replaces an earlier type-only one;
// otherwise the first binding wins.
func exportBindings(p string, f *syntax.File, m *ModuleNode, r *specResolver) []ExportBinding {
	var out []ExportBinding
	byName := make(map[string]int)
	add := func(b ExportBinding) {
		if b.Kind == Wildcard {
			out = append(out, b)
			return
		}
		if i, ok := byName[b.Name]; ok {
			if out[i].Kind.IsTypeOnly() && !b.Kind.IsTypeOnly() {
				out[i] = b
			}
			return
		}
		byName[b.Name] = len(out)
		out = append(out, b)
	}

	for _, e := range f.Exports {
		switch e.Kind {
		case syntax.ExportLocal:
			add(localBinding(p, f, m, e, r))
		case syntax.ExportFrom:
			add(ExportBinding{Name: e.Name, Kind: ReExport, Source: e.Source, Target: r.resolve(p, e.Source), Original: e.Imported, Line: e.Line})
		case syntax.ExportAll:
			add(ExportBinding{Kind: Wildcard, Source: e.Source, Target: r.resolve(p, e.Source), Line: e.Line})
		case syntax.ExportNamespaceFrom:
			add(ExportBinding{Name: e.Name, Kind: Namespace, Source: e.Source, Target: r.resolve(p, e.Source), Line: e.Line})
		}
	}
	return out
}

// localBinding binds export { local as name }. The local name may be a
// declaration in this file or an imported binding, in which case the
// export is a re-export of the import.
func localBinding(p string, f *syntax.File, m *ModuleNode, e *syntax.Export, r *specResolver) ExportBinding {
	if d := f.Decl(e.Local); d != nil {
		return ExportBinding{Name: e.Name, Kind: KindOf(d), Decl: d, Line: e.Line}
	}
	if imp, ok := m.Import(e.Local); ok {
		if imp.Wildcard {
			return ExportBinding{Name: e.Name, Kind: Namespace, Source: imp.Source, Target: imp.Target, Line: e.Line}
		}
		return ExportBinding{Name: e.Name, Kind: ReExport, Source: imp.Source, Target: imp.Target, Original: imp.Imported, Line: e.Line}
	}
	// No declaration or import: a re-export with no source, which the
	// resolver reports as unresolved.
	return ExportBinding{Name: e.Name, Kind: ReExport, Original: e.Local, Line: e.Line}
}

// KindOf maps a declaration to the export binding kind it contributes.
func KindOf(d *syntax.Decl) BindingKind {
	switch d.Kind {
	case syntax.DeclFunction:
		return Function
	case syntax.DeclClass:
		return Class
	case syntax.DeclType:
		return TypeAlias
	case syntax.DeclInterface:
		return Interface
	case syntax.DeclNamespace:
		return Namespace
	case syntax.DeclVar:
		switch d.Init.(type) {
		case *syntax.Func:
			return Function
		case *syntax.Class:
			return Class
		}
	}
	return Const
}

// specResolver maps import specifiers to module paths.
type specResolver struct {
	known     map[string]bool
	name      string
	entryPath string
	subpaths  map[string]string
}

// resolve maps a specifier written in module from to a module path, or ""
// for specifiers outside the package.
func (r *specResolver) resolve(from, spec string) string {
	switch {
	case spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		base := path.Join(dirOf(from), spec)
		if base == ".." || strings.HasPrefix(base, "../") {
			return ""
		}
		if base == "." {
			base = ""
		}
		return r.file(base)
	case r.name != "" && spec == r.name:
		return r.entryPath
	case r.name != "" && strings.HasPrefix(spec, r.name+"/"):
		sub := strings.TrimPrefix(spec, r.name+"/")
		if mod, ok := r.subpaths[sub]; ok {
			return mod
		}
		return r.file(cleanManifestPath(sub))
	}
	return ""
}

// file resolves a package-relative path the way module loaders do: exact
// file, added extension, .js swapped for its TypeScript counterpart, then
// directory index.
func (r *specResolver) file(base string) string {
	if base != "" && r.known[base] {
		return base
	}
	if base != "" {
		for _, ext := range syntax.Extensions {
			if r.known[base+ext] {
				return base + ext
			}
		}
		if swapped := r.swapExt(base); swapped != "" {
			return swapped
		}
	}
	dir := base
	for _, ext := range syntax.Extensions {
		cand := path.Join(dir, "index"+ext)
		if r.known[cand] {
			return cand
		}
	}
	return ""
}

// tsCounterparts lists the TypeScript sources a compiled extension may
// have been emitted from.
var tsCounterparts = map[string][]string{
	".js":  {".ts", ".tsx", ".d.ts"},
	".jsx": {".tsx"},
	".mjs": {".mts", ".d.mts"},
	".cjs": {".cts", ".d.cts"},
}

func (r *specResolver) swapExt(base string) string {
	ext := path.Ext(base)
	for _, alt := range tsCounterparts[ext] {
		cand := strings.TrimSuffix(base, ext) + alt
		if r.known[cand] {
			return cand
		}
	}
	return ""
}

// entry picks the entry module: manifest candidates, then the fallback index
// list, then the alphabetically first top-level file, then the first module.
func (r *specResolver) entry(m *Manifest, dirs *dirIndex) string {
	for _, cand := range m.EntryCandidates() {
		if p := cleanManifestPath(cand); p != "" {
			if mod := r.file(p); mod != "" {
				return mod
			}
		}
	}
	for _, base := range fallbackEntries {
		if mod := r.file(base); mod != "" {
			return mod
		}
	}
	if top := dirs.stems(""); len(top) > 0 {
		return top[0].rep
	}
	for _, sd := range dirs.subdirs[""] {
		if entries := dirs.entries(sd); len(entries) > 0 {
			return entries[0]
		}
	}
	return ""
}
