package nodetree

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jward/nodetree/internal/graph"
	"github.com/jward/nodetree/internal/registry"
	"github.com/jward/nodetree/internal/resolve"
	"github.com/jward/nodetree/internal/signature"
	"github.com/jward/nodetree/internal/syntax"
)

// Engine orchestrates the nodetree pipeline: package fetch, graph build,
// export resolution and the Explore/FindSignature queries.
type Engine struct {
	logger    *log.Logger
	workers   int
	exclude   []string
	registry  *signature.Registry
	extractor *signature.Extractor
	packages  *registry.Store
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithWorkers sets the number of parallel parse workers. Zero means
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithExclude adds gitignore-style patterns for files to leave out of the
// module graph.
func WithExclude(patterns ...string) Option {
	return func(e *Engine) {
		e.exclude = append(e.exclude, patterns...)
	}
}

// WithRegistry sets the wrapper registry used for signature unwrapping.
// The default registers flow and task.
func WithRegistry(reg *signature.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithPackageStore enables Fetch by name through a package store.
func WithPackageStore(s *registry.Store) Option {
	return func(e *Engine) {
		e.packages = s
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = signature.DefaultRegistry()
	}
	e.extractor = signature.NewExtractor(e.registry)
	return e
}

// Package is a loaded package: its module graph and resolved exports. It is
// read-only and safe for concurrent queries.
type Package struct {
	Name    string
	Version string
	Root    string
	Source  string

	graph *graph.Graph
	res   *resolve.Resolution

	mu   sync.Mutex
	sigs map[sigKey]extracted
}

// sigKey identifies one extraction: a declaration under one wrapper
// registry.
type sigKey struct {
	ext  *signature.Extractor
	decl *syntax.Decl
}

type extracted struct {
	sig *Signature
	err error
}

// Entry returns the entry module path.
func (p *Package) Entry() string { return p.graph.Entry }

// Graph returns the module graph.
func (p *Package) Graph() *Graph { return p.graph }

// Resolution returns the resolved exports of every module.
func (p *Package) Resolution() *Resolution { return p.res }

// signatureOf extracts the signature of sym once per declaration. The
// returned Signature is shared between queries and must not be modified.
func (e *Engine) signatureOf(pkg *Package, sym resolve.CanonicalSymbol) (*Signature, error) {
	if sym.Decl == nil {
		return nil, signature.ErrNoSignature
	}
	key := sigKey{ext: e.extractor, decl: sym.Decl}

	pkg.mu.Lock()
	defer pkg.mu.Unlock()
	if x, ok := pkg.sigs[key]; ok {
		return x.sig, x.err
	}
	sig, err := e.extractor.Extract(pkg.graph.Module(sym.ModulePath), sym)
	if pkg.sigs == nil {
		pkg.sigs = make(map[sigKey]extracted)
	}
	pkg.sigs[key] = extracted{sig: sig, err: err}
	return sig, err
}

// Fetch locates a package by name and version through the package store and
// loads it.
func (e *Engine) Fetch(ctx context.Context, name, version string) (*Package, error) {
	if e.packages == nil {
		return nil, fmt.Errorf("nodetree: fetch %s: %w", name, ErrNoPackageStore)
	}
	fetched, err := e.packages.Fetch(ctx, name, version)
	if err != nil {
		return nil, fmt.Errorf("nodetree: fetch %s: %w", name, err)
	}
	e.logger.Debug("fetched package", "name", fetched.Name, "version", fetched.Version, "source", fetched.Source)

	pkg, err := e.Load(ctx, fetched.Root)
	if err != nil {
		return nil, err
	}
	pkg.Name = fetched.Name
	pkg.Version = fetched.Version
	pkg.Source = string(fetched.Source)
	return pkg, nil
}

// Load builds and resolves the package rooted at dir.
func (e *Engine) Load(ctx context.Context, dir string) (*Package, error) {
	start := time.Now()
	g, err := graph.Build(ctx, dir, graph.WithWorkers(e.workers), graph.WithExclude(e.exclude...))
	if err != nil {
		return nil, fmt.Errorf("nodetree: build: %w", err)
	}
	e.logger.Debug("built module graph", "root", dir, "modules", len(g.Order), "entry", g.Entry, "took", time.Since(start))
	for _, d := range g.Diagnostics {
		e.logger.Warn("package diagnostic", "root", dir, "msg", d)
	}

	start = time.Now()
	res, err := resolve.Resolve(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("nodetree: resolve: %w", err)
	}
	unresolved := 0
	for _, p := range g.Order {
		unresolved += len(res.Unresolved(p))
	}
	e.logger.Debug("resolved exports", "unresolved", unresolved, "cycles", len(res.Cycles()), "took", time.Since(start))

	pkg := &Package{
		Name:   filepath.Base(dir),
		Root:   dir,
		Source: "local",
		graph:  g,
		res:    res,
	}
	if g.Manifest != nil {
		if g.Manifest.Name != "" {
			pkg.Name = g.Manifest.Name
		}
		pkg.Version = g.Manifest.Version
	}
	return pkg, nil
}
