package nodetree

import (
	"github.com/jward/nodetree/internal/graph"
	"github.com/jward/nodetree/internal/resolve"
	"github.com/jward/nodetree/internal/signature"
)

// Public type aliases for internal types used in the Engine API.
// These are Go type aliases (=), identical to the internal types at compile
// time. External consumers use these names; no conversion is needed.

type Graph = graph.Graph
type ModuleNode = graph.ModuleNode
type ExportBinding = graph.ExportBinding
type BindingKind = graph.BindingKind
type Resolution = resolve.Resolution
type CanonicalSymbol = resolve.CanonicalSymbol
type Signature = signature.Signature
type Parameter = signature.Parameter
type Method = signature.Method
type Registry = signature.Registry
type Rule = signature.Rule
type ArgPosition = signature.ArgPosition
type OptionsField = signature.OptionsField

// NewRegistry returns an empty wrapper registry.
func NewRegistry() *Registry { return signature.NewRegistry() }

// DefaultRegistry returns a registry with the built-in flow and task
// wrappers.
func DefaultRegistry() *Registry { return signature.DefaultRegistry() }
