package nodetree

import (
	"context"
	"fmt"

	"github.com/jward/nodetree/internal/graph"
	"github.com/jward/nodetree/internal/resolve"
)

// ExplorationTree is the depth-bounded summary of one module and its
// directory submodules.
type ExplorationTree struct {
	ModulePath  string             `json:"modulePath"`
	Functions   []string           `json:"functions"`
	Classes     []string           `json:"classes"`
	Constants   []string           `json:"constants"`
	Types       []string           `json:"types,omitempty"`
	Namespaces  []string           `json:"namespaces,omitempty"`
	Children    []*ExplorationTree `json:"children"`
	Truncated   bool               `json:"truncated"`
	Diagnostics []string           `json:"diagnostics,omitempty"`
}

// Explore builds the exploration tree of pkg rooted at its entry module.
// Children are expanded while the depth is below maxDepth; a negative
// maxDepth is unbounded. Nodes at the bound that have children are marked
// Truncated.
func (e *Engine) Explore(ctx context.Context, pkg *Package, maxDepth int) (*ExplorationTree, error) {
	if pkg.graph.Entry == "" {
		return nil, fmt.Errorf("nodetree: explore %s: %w", pkg.Name, ErrEmptyPackage)
	}
	return e.exploreFrom(ctx, pkg, []string{pkg.graph.Entry}, "", maxDepth)
}

// ExploreAt builds the exploration tree rooted at a path inside pkg,
// resolved the same way as a qualifier path. A directory without an index
// module becomes a synthetic root whose children are its modules.
func (e *Engine) ExploreAt(ctx context.Context, pkg *Package, path string, maxDepth int) (*ExplorationTree, error) {
	if path == "" {
		return e.Explore(ctx, pkg, maxDepth)
	}
	mods := resolveHint(pkg.graph, path)
	if len(mods) == 0 {
		return nil, fmt.Errorf("nodetree: explore %s/%s: path not found", pkg.Name, path)
	}
	return e.exploreFrom(ctx, pkg, mods, path, maxDepth)
}

func (e *Engine) exploreFrom(ctx context.Context, pkg *Package, mods []string, dir string, maxDepth int) (*ExplorationTree, error) {
	a := &assembler{ctx: ctx, e: e, pkg: pkg, maxDepth: maxDepth, onPath: make(map[string]bool)}
	if len(mods) == 1 {
		return a.node(mods[0], 0)
	}

	// Synthetic directory root: its modules sit one level down.
	root := newTreeNode(dir)
	if maxDepth == 0 {
		root.Truncated = true
		return root, nil
	}
	for _, m := range mods {
		child, err := a.node(m, 1)
		if err != nil {
			return nil, err
		}
		if child != nil {
			root.Children = append(root.Children, child)
		}
	}
	return root, nil
}

type assembler struct {
	ctx      context.Context
	e        *Engine
	pkg      *Package
	maxDepth int
	onPath   map[string]bool
}

// node returns the tree of a module, or nil when the module is already on
// the root-to-node path.
func (a *assembler) node(path string, depth int) (*ExplorationTree, error) {
	if a.ctx.Err() != nil {
		return nil, fmt.Errorf("nodetree: explore: %w", ErrCancelled)
	}
	if a.onPath[path] {
		return nil, nil
	}
	mod := a.pkg.graph.Module(path)
	if mod == nil {
		return nil, nil
	}

	n := newTreeNode(path)
	for _, exp := range a.pkg.res.Exports(path) {
		switch a.e.category(a.pkg, exp.Symbol) {
		case "function":
			n.Functions = append(n.Functions, exp.Name)
		case "class":
			n.Classes = append(n.Classes, exp.Name)
		case "type":
			n.Types = append(n.Types, exp.Name)
		case "namespace":
			n.Namespaces = append(n.Namespaces, exp.Name)
		default:
			n.Constants = append(n.Constants, exp.Name)
		}
	}
	n.Diagnostics = append(n.Diagnostics, mod.Diagnostics...)
	for _, u := range a.pkg.res.Unresolved(path) {
		n.Diagnostics = append(n.Diagnostics, u.Error())
	}

	if len(mod.Children) == 0 {
		return n, nil
	}
	if a.maxDepth >= 0 && depth >= a.maxDepth {
		n.Truncated = true
		return n, nil
	}

	a.onPath[path] = true
	defer delete(a.onPath, path)
	for _, c := range mod.Children {
		child, err := a.node(c, depth+1)
		if err != nil {
			return nil, err
		}
		if child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n, nil
}

func newTreeNode(path string) *ExplorationTree {
	return &ExplorationTree{
		ModulePath: path,
		Functions:  []string{},
		Classes:    []string{},
		Constants:  []string{},
		Children:   []*ExplorationTree{},
	}
}

// category groups a canonical symbol for display. Constants with an
// extractable signature (wrapped or function-typed) count as functions.
func (e *Engine) category(pkg *Package, sym resolve.CanonicalSymbol) string {
	switch sym.Kind {
	case graph.Function:
		return "function"
	case graph.Class:
		return "class"
	case graph.TypeAlias, graph.Interface:
		return "type"
	case graph.Namespace:
		return "namespace"
	case graph.Const:
		if _, err := e.signatureOf(pkg, sym); err == nil {
			return "function"
		}
	}
	return "constant"
}
