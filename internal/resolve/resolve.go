// Package resolve follows re-export and wildcard re-export chains through a
// module graph to the declarations they ultimately name.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/nodetree/internal/graph"
	"github.com/jward/nodetree/internal/syntax"
)

// Reason classifies why an export could not be resolved.
type Reason int

const (
	UnresolvedImport Reason = iota + 1
	CyclicReExport
)

func (r Reason) String() string {
	switch r {
	case UnresolvedImport:
		return "unresolved import"
	case CyclicReExport:
		return "cyclic re-export"
	}
	return "unknown"
}

// Key identifies one export name of one module.
type Key struct {
	Module string
	Name   string
}

func (k Key) String() string { return k.Module + ":" + k.Name }

// CanonicalSymbol is the declaration an export resolves to after every
// re-export hop. Kind is never ReExport or Wildcard.
type CanonicalSymbol struct {
	ModulePath string
	Name       string
	Kind       graph.BindingKind
	Decl       *syntax.Decl

	// Target is the module a re-exported namespace stands for.
	Target string
}

// Export is one entry of a module's final export set.
type Export struct {
	Name   string
	Symbol CanonicalSymbol
}

// Unresolved is an export that was dropped from the final export set.
type Unresolved struct {
	Name   string
	Reason Reason
	Detail string
}

func (u Unresolved) Error() string {
	if u.Detail == "" {
		return fmt.Sprintf("export %q: %s", u.Name, u.Reason)
	}
	return fmt.Sprintf("export %q: %s: %s", u.Name, u.Reason, u.Detail)
}

// Resolution is the resolved, read-only symbol graph.
type Resolution struct {
	graph      *graph.Graph
	exports    map[string][]Export
	unresolved map[string][]Unresolved
	cycles     [][]Key
}

// Graph returns the module graph the resolution was computed over.
func (r *Resolution) Graph() *graph.Graph { return r.graph }

// Exports returns the final export set of a module: explicit names in
// statement order, then names contributed by wildcard re-exports in
// depth-first source order. Unresolved names are absent.
func (r *Resolution) Exports(modulePath string) []Export {
	return r.exports[modulePath]
}

// Unresolved returns the exports of a module that could not be resolved.
func (r *Resolution) Unresolved(modulePath string) []Unresolved {
	return r.unresolved[modulePath]
}

// Lookup finds name in the final export set of a module.
func (r *Resolution) Lookup(modulePath, name string) (CanonicalSymbol, bool) {
	for _, e := range r.exports[modulePath] {
		if e.Name == name {
			return e.Symbol, true
		}
	}
	return CanonicalSymbol{}, false
}

// Cycles returns each detected re-export cycle once.
func (r *Resolution) Cycles() [][]Key {
	return r.cycles
}

// Resolve computes the final export set of every module in g. Modules are
// processed in path order; ctx is checked at each module boundary.
func Resolve(ctx context.Context, g *graph.Graph) (*Resolution, error) {
	s := newSolver(g)
	res := &Resolution{
		graph:      g,
		exports:    make(map[string][]Export, len(g.Order)),
		unresolved: make(map[string][]Unresolved),
	}

	for _, p := range g.Order {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("resolve: %w", graph.ErrCancelled)
		}
		m := g.Module(p)
		names := s.names(p)
		exports := make([]Export, 0, len(names))
		for _, name := range names {
			out := s.resolve(Key{Module: p, Name: name})
			switch out.status {
			case found:
				exports = append(exports, Export{Name: name, Symbol: out.sym})
			case cyclic:
				res.unresolved[p] = append(res.unresolved[p], Unresolved{Name: name, Reason: CyclicReExport, Detail: out.detail})
			default:
				detail := out.detail
				if detail == "" {
					detail = "not found"
				}
				res.unresolved[p] = append(res.unresolved[p], Unresolved{Name: name, Reason: UnresolvedImport, Detail: detail})
			}
		}
		for _, b := range m.Exports {
			if b.Kind == graph.Wildcard && b.Target == "" {
				res.unresolved[p] = append(res.unresolved[p], Unresolved{
					Name:   "*",
					Reason: UnresolvedImport,
					Detail: fmt.Sprintf("export * from %q: module outside package", b.Source),
				})
			}
		}
		res.exports[p] = exports
	}
	res.cycles = s.cycleList()
	return res, nil
}

type status int

const (
	notFound status = iota
	found
	unresolved
	cyclic
)

// outcome is the result of resolving one key.
type outcome struct {
	status status
	sym    CanonicalSymbol
	detail string
}

// edge is a dependency of one key on another. explicit is set for named
// re-exports and clear for export *.
type edge struct {
	key      Key
	explicit bool
}

// solver resolves keys and export name lists by strongly connected
// component. Every component is settled once, after the components it
// depends on, so the work is linear in the size of the key graph.
type solver struct {
	g *graph.Graph

	memo    map[Key]outcome
	index   map[Key]int
	low     map[Key]int
	onStack map[Key]bool
	stack   []Key
	next    int

	nameMemo    map[string][]string
	nameIndex   map[string]int
	nameLow     map[string]int
	nameOnStack map[string]bool
	nameStack   []string
	nameNext    int

	cycles map[string][]Key
}

func newSolver(g *graph.Graph) *solver {
	return &solver{
		g:           g,
		memo:        make(map[Key]outcome),
		index:       make(map[Key]int),
		low:         make(map[Key]int),
		onStack:     make(map[Key]bool),
		nameMemo:    make(map[string][]string),
		nameIndex:   make(map[string]int),
		nameLow:     make(map[string]int),
		nameOnStack: make(map[string]bool),
		cycles:      make(map[string][]Key),
	}
}

// resolve returns the settled outcome of key.
func (s *solver) resolve(key Key) outcome {
	if out, ok := s.memo[key]; ok {
		return out
	}
	s.visit(key)
	return s.memo[key]
}

// visit is Tarjan's strongly connected components walk over the key graph.
func (s *solver) visit(key Key) {
	s.index[key] = s.next
	s.low[key] = s.next
	s.next++
	s.stack = append(s.stack, key)
	s.onStack[key] = true

	for _, e := range s.edges(key) {
		if _, done := s.memo[e.key]; done {
			continue
		}
		if _, seen := s.index[e.key]; !seen {
			s.visit(e.key)
			s.low[key] = min(s.low[key], s.low[e.key])
		} else if s.onStack[e.key] {
			s.low[key] = min(s.low[key], s.index[e.key])
		}
	}
	if s.low[key] != s.index[key] {
		return
	}

	i := len(s.stack) - 1
	for s.stack[i] != key {
		i--
	}
	scc := append([]Key(nil), s.stack[i:]...)
	s.stack = s.stack[:i]
	for _, k := range scc {
		delete(s.onStack, k)
	}
	s.settle(scc)
}

// edges lists the keys that key's outcome is computed from.
func (s *solver) edges(key Key) []edge {
	m := s.g.Module(key.Module)
	if m == nil {
		return nil
	}
	if b, ok := explicitBinding(m, key.Name); ok {
		if b.Kind == graph.ReExport && b.Target != "" {
			return []edge{{key: Key{Module: b.Target, Name: b.Original}, explicit: true}}
		}
		return nil
	}
	if key.Name == "default" {
		return nil
	}
	var out []edge
	for _, b := range m.Exports {
		if b.Kind == graph.Wildcard && b.Target != "" {
			out = append(out, edge{key: Key{Module: b.Target, Name: key.Name}})
		}
	}
	return out
}

// settle fixes the outcome of every key of one component. Members are
// evaluated in traversal order and a member that finds its symbol keeps
// it, so the others see it on the next pass. Members left without a
// symbol are cyclic when a named re-export joins the component, and take
// their own outcome otherwise: re-entering a module through export * is
// legal and contributes nothing.
func (s *solver) settle(scc []Key) {
	members := make(map[Key]bool, len(scc))
	for _, k := range scc {
		members[k] = true
	}
	namedLoop := false
	for _, k := range scc {
		for _, e := range s.edges(k) {
			if e.explicit && members[e.key] {
				namedLoop = true
			}
		}
	}

	vals := make(map[Key]outcome, len(scc))
	get := func(k Key) outcome {
		if members[k] {
			return vals[k]
		}
		return s.memo[k]
	}
	for changed := true; changed; {
		changed = false
		for _, k := range scc {
			if vals[k].status == found {
				continue
			}
			out := s.compute(k, get)
			if out.status == found {
				vals[k] = out
				changed = true
			}
		}
	}

	var open []Key
	for _, k := range scc {
		if vals[k].status != found {
			open = append(open, k)
		}
	}
	if namedLoop && len(open) > 0 {
		s.recordCycle(open)
		broken := outcome{status: cyclic, detail: cycleDetail(open, open[0])}
		for _, k := range open {
			s.memo[k] = broken
		}
	} else {
		for _, k := range open {
			s.memo[k] = s.compute(k, get)
		}
	}
	for _, k := range scc {
		if vals[k].status == found {
			s.memo[k] = vals[k]
		}
		delete(s.index, k)
		delete(s.low, k)
	}
}

func explicitBinding(m *graph.ModuleNode, name string) (graph.ExportBinding, bool) {
	for _, b := range m.Exports {
		if b.Kind != graph.Wildcard && b.Name == name {
			return b, true
		}
	}
	return graph.ExportBinding{}, false
}

// compute evaluates key from the outcomes get reports for its edges.
func (s *solver) compute(key Key, get func(Key) outcome) outcome {
	m := s.g.Module(key.Module)
	if m == nil {
		return outcome{status: notFound}
	}
	if b, ok := explicitBinding(m, key.Name); ok {
		return s.binding(m, b, get)
	}

	// export * never forwards default.
	if key.Name == "default" {
		return outcome{status: notFound}
	}

	var firstBroken *outcome
	for _, b := range m.Exports {
		if b.Kind != graph.Wildcard || b.Target == "" {
			continue
		}
		out := get(Key{Module: b.Target, Name: key.Name})
		switch out.status {
		case found:
			return out
		case cyclic:
			if firstBroken == nil || firstBroken.status != cyclic {
				o := out
				firstBroken = &o
			}
		case unresolved:
			if firstBroken == nil {
				o := out
				firstBroken = &o
			}
		}
	}
	if firstBroken != nil {
		return *firstBroken
	}
	return outcome{status: notFound}
}

// binding resolves one explicit export binding.
func (s *solver) binding(m *graph.ModuleNode, b graph.ExportBinding, get func(Key) outcome) outcome {
	switch b.Kind {
	case graph.ReExport:
		if b.Target == "" {
			detail := fmt.Sprintf("module %q is outside the package", b.Source)
			if b.Source == "" {
				detail = fmt.Sprintf("no local declaration of %q", b.Original)
			}
			return outcome{status: unresolved, detail: detail}
		}
		out := get(Key{Module: b.Target, Name: b.Original})
		if out.status == notFound {
			return outcome{
				status: unresolved,
				detail: fmt.Sprintf("%s does not export %q", b.Target, b.Original),
			}
		}
		return out
	case graph.Namespace:
		if b.Decl == nil && b.Target == "" {
			return outcome{status: unresolved, detail: fmt.Sprintf("module %q is outside the package", b.Source)}
		}
	}
	return outcome{status: found, sym: canonical(m, b)}
}

func canonical(m *graph.ModuleNode, b graph.ExportBinding) CanonicalSymbol {
	name := b.Name
	if b.Decl != nil {
		name = b.Decl.Name
	}
	return CanonicalSymbol{
		ModulePath: m.Path,
		Name:       name,
		Kind:       b.Kind,
		Decl:       b.Decl,
		Target:     b.Target,
	}
}

// names returns the final export names of a module: explicit names first,
// then wildcard contributions that are not shadowed.
func (s *solver) names(modulePath string) []string {
	if names, ok := s.nameMemo[modulePath]; ok {
		return names
	}
	if s.g.Module(modulePath) == nil {
		return nil
	}
	s.visitNames(modulePath)
	return s.nameMemo[modulePath]
}

// visitNames walks the export * graph between modules the way visit walks
// the key graph.
func (s *solver) visitNames(p string) {
	s.nameIndex[p] = s.nameNext
	s.nameLow[p] = s.nameNext
	s.nameNext++
	s.nameStack = append(s.nameStack, p)
	s.nameOnStack[p] = true

	for _, t := range s.wildcardTargets(p) {
		if _, done := s.nameMemo[t]; done {
			continue
		}
		if _, seen := s.nameIndex[t]; !seen {
			s.visitNames(t)
			s.nameLow[p] = min(s.nameLow[p], s.nameLow[t])
		} else if s.nameOnStack[t] {
			s.nameLow[p] = min(s.nameLow[p], s.nameIndex[t])
		}
	}
	if s.nameLow[p] != s.nameIndex[p] {
		return
	}

	i := len(s.nameStack) - 1
	for s.nameStack[i] != p {
		i--
	}
	cluster := append([]string(nil), s.nameStack[i:]...)
	s.nameStack = s.nameStack[:i]
	for _, m := range cluster {
		delete(s.nameOnStack, m)
	}
	s.settleNames(cluster)
}

func (s *solver) wildcardTargets(p string) []string {
	var out []string
	for _, b := range s.g.Module(p).Exports {
		if b.Kind == graph.Wildcard && b.Target != "" && s.g.Module(b.Target) != nil {
			out = append(out, b.Target)
		}
	}
	return out
}

// settleNames computes the name lists of modules that export * from each
// other. Lists only grow, so passes repeat until one adds nothing.
func (s *solver) settleNames(cluster []string) {
	members := make(map[string]bool, len(cluster))
	for _, p := range cluster {
		members[p] = true
	}
	cur := make(map[string][]string, len(cluster))
	get := func(p string) []string {
		if members[p] {
			return cur[p]
		}
		return s.nameMemo[p]
	}
	for grew := true; grew; {
		grew = false
		for _, p := range cluster {
			next := s.collectNames(p, get)
			if len(next) > len(cur[p]) {
				grew = true
			}
			cur[p] = next
		}
	}
	for _, p := range cluster {
		s.nameMemo[p] = cur[p]
		delete(s.nameIndex, p)
		delete(s.nameLow, p)
	}
}

func (s *solver) collectNames(p string, get func(string) []string) []string {
	m := s.g.Module(p)
	seen := make(map[string]bool)
	var out []string
	for _, b := range m.Exports {
		if b.Kind == graph.Wildcard || seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		out = append(out, b.Name)
	}
	for _, b := range m.Exports {
		if b.Kind != graph.Wildcard || b.Target == "" {
			continue
		}
		for _, n := range get(b.Target) {
			if n == "default" || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// recordCycle stores a cycle once, keyed by its sorted members.
func (s *solver) recordCycle(path []Key) {
	members := make([]string, len(path))
	for i, k := range path {
		members[i] = k.String()
	}
	sort.Strings(members)
	sig := strings.Join(members, "|")
	if _, ok := s.cycles[sig]; ok {
		return
	}
	s.cycles[sig] = append([]Key(nil), path...)
}

func (s *solver) cycleList() [][]Key {
	sigs := make([]string, 0, len(s.cycles))
	for sig := range s.cycles {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	out := make([][]Key, 0, len(sigs))
	for _, sig := range sigs {
		out = append(out, s.cycles[sig])
	}
	return out
}

func cycleDetail(path []Key, back Key) string {
	parts := make([]string, 0, len(path)+1)
	for _, k := range path {
		parts = append(parts, k.String())
	}
	parts = append(parts, back.String())
	return strings.Join(parts, " -> ")
}
