package nodetree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jward/nodetree/internal/graph"
	"github.com/jward/nodetree/internal/signature"
)

// SignatureResult is the outcome of FindSignature.
type SignatureResult struct {
	Symbol     string `json:"symbol"`
	Kind       string `json:"kind"`
	ModulePath string `json:"modulePath"` // module that declares the symbol
	FoundIn    string `json:"foundIn"`    // module whose exports matched

	// Signature is nil when the symbol has no extractable signature.
	Signature *Signature `json:"signature"`
	Methods   []Method   `json:"methods,omitempty"`

	// Extends and Abstract describe class symbols.
	Extends  string `json:"extends,omitempty"`
	Abstract bool   `json:"abstract,omitempty"`
}

// FindSignature finds the symbol named by q in pkg. The start module (the
// entry, or the module or directory named by q.Path) is checked first, then
// directory submodules breadth-first in alphabetical order. The first module
// whose final exports contain the symbol wins.
//
// "Class.method" symbols find the class, then the public method.
func (e *Engine) FindSignature(ctx context.Context, pkg *Package, q Qualifier) (*SignatureResult, error) {
	g := pkg.graph
	var frontier []string
	if q.Path == "" {
		if g.Entry != "" {
			frontier = []string{g.Entry}
		}
	} else {
		frontier = resolveHint(g, q.Path)
		if len(frontier) == 0 {
			return nil, fmt.Errorf("nodetree: find %s: path %q: %w", q, q.Path, ErrSymbolNotFound)
		}
	}

	visited := make(map[string]bool, len(g.Order))
	queue := append([]string(nil), frontier...)
	for _, m := range queue {
		visited[m] = true
	}
	for len(queue) > 0 {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("nodetree: find %s: %w", q, ErrCancelled)
		}
		path := queue[0]
		queue = queue[1:]

		if res, ok := e.lookup(pkg, path, q.Symbol); ok {
			e.logger.Debug("symbol found", "symbol", q.Symbol, "in", path, "declared", res.ModulePath)
			return res, nil
		}

		mod := g.Module(path)
		if mod == nil {
			continue
		}
		for _, c := range mod.Children {
			if !visited[c] {
				visited[c] = true
				queue = append(queue, c)
			}
		}
	}
	return nil, fmt.Errorf("nodetree: find %s: %w", q, ErrSymbolNotFound)
}

// lookup checks one module's final exports for symbol.
func (e *Engine) lookup(pkg *Package, path, symbol string) (*SignatureResult, bool) {
	if sym, ok := pkg.res.Lookup(path, symbol); ok {
		res := &SignatureResult{
			Symbol:     symbol,
			Kind:       e.category(pkg, sym),
			ModulePath: sym.ModulePath,
			FoundIn:    path,
		}
		sig, err := e.signatureOf(pkg, sym)
		if err == nil {
			res.Signature = sig
		} else if !errors.Is(err, signature.ErrNoSignature) {
			e.logger.Warn("signature extraction failed", "symbol", symbol, "module", sym.ModulePath, "err", err)
		}
		if sym.Kind == graph.Class {
			res.Methods = e.extractor.Methods(pkg.graph.Module(sym.ModulePath), sym)
			res.Extends, res.Abstract = e.extractor.Heritage(sym)
		}
		return res, true
	}

	cls, method, ok := strings.Cut(symbol, ".")
	if !ok || cls == "" || method == "" {
		return nil, false
	}
	sym, ok := pkg.res.Lookup(path, cls)
	if !ok || sym.Kind != graph.Class {
		return nil, false
	}
	m, ok := e.extractor.Method(pkg.graph.Module(sym.ModulePath), sym, method)
	if !ok {
		return nil, false
	}
	return &SignatureResult{
		Symbol:     symbol,
		Kind:       "method",
		ModulePath: sym.ModulePath,
		FoundIn:    path,
		Signature:  m.Signature,
	}, true
}

// resolveHint maps a qualifier path to the modules a search starts from:
// a manifest subpath, a module file, a directory index, or the promoted
// contents of an index-less directory.
func resolveHint(g *graph.Graph, hint string) []string {
	hint = strings.Trim(hint, "/")
	if mod, ok := g.Subpaths[hint]; ok {
		return []string{mod}
	}
	if mod := g.ResolvePath(hint); mod != "" {
		return []string{mod}
	}
	return g.DirModules(hint)
}
