package signature

import (
	"fmt"
	"sort"

	"github.com/jward/nodetree/internal/syntax"
)

// Rule locates the callable inside a call to a wrapper. It is one of
// ArgPosition or OptionsField.
type Rule interface {
	inner(call *syntax.Call) (syntax.Expr, bool)
	String() string
}

// ArgPosition selects the positional argument at Index.
type ArgPosition struct {
	Index int
}

func (r ArgPosition) inner(call *syntax.Call) (syntax.Expr, bool) {
	if r.Index < 0 || r.Index >= len(call.Args) {
		return nil, false
	}
	return call.Args[r.Index], true
}

func (r ArgPosition) String() string { return fmt.Sprintf("arg %d", r.Index) }

// OptionsField selects a property of the first object literal argument.
type OptionsField struct {
	Field string
}

func (r OptionsField) inner(call *syntax.Call) (syntax.Expr, bool) {
	for _, a := range call.Args {
		if obj, ok := a.(*syntax.Object); ok {
			return obj.Field(r.Field)
		}
	}
	return nil, false
}

func (r OptionsField) String() string { return fmt.Sprintf("field %q", r.Field) }

// Registry maps wrapper call names to the rule that finds their callable.
// It is not safe for concurrent mutation; register rules before extracting.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// DefaultRegistry returns a registry with the built-in wrappers:
// flow(fn, ...) and task({ run: fn, ... }).
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("flow", ArgPosition{Index: 0})
	r.Register("task", OptionsField{Field: "run"})
	return r
}

// Register adds or replaces the rule for a wrapper name.
func (r *Registry) Register(name string, rule Rule) {
	r.rules[name] = rule
}

// Lookup returns the rule registered for name.
func (r *Registry) Lookup(name string) (Rule, bool) {
	rule, ok := r.rules[name]
	return rule, ok
}

// Names returns the registered wrapper names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.rules))
	for n := range r.rules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
