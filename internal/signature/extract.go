// Package signature turns canonical declarations into normalized callable
// signatures, unwrapping calls to registered wrapper functions.
package signature

import (
	"errors"
	"strings"

	"github.com/jward/nodetree/internal/graph"
	"github.com/jward/nodetree/internal/resolve"
	"github.com/jward/nodetree/internal/syntax"
)

// ErrNoSignature is returned when a declaration has no extractable
// callable shape, including calls to unregistered wrappers.
var ErrNoSignature = errors.New("no signature")

// maxUnwrapDepth bounds nested wrapper calls and identifier aliases.
const maxUnwrapDepth = 8

// Signature is the normalized callable shape of a symbol.
type Signature struct {
	Parameters    []Parameter `json:"parameters"`
	ReturnType    string      `json:"returnType,omitempty"`
	IsConstructor bool        `json:"isConstructor"`
	IsAsync       bool        `json:"isAsync,omitempty"`
	IsGenerator   bool        `json:"isGenerator,omitempty"`
	UnwrapPattern string      `json:"unwrapPattern,omitempty"`

	// Overloads counts the declared signatures of an overloaded function.
	Overloads int `json:"overloads,omitempty"`
	// Ambient is set for declarations without a runtime body.
	Ambient bool `json:"ambient,omitempty"`
}

// Parameter is one formal parameter. Optional is also set for parameters
// with a default value.
type Parameter struct {
	Name       string `json:"name"`
	TypeText   string `json:"typeText,omitempty"`
	Optional   bool   `json:"optional"`
	HasDefault bool   `json:"hasDefault"`
	Default    string `json:"default,omitempty"`
	IsRest     bool   `json:"isRest"`
}

// Method is a public class method with its signature.
type Method struct {
	Name      string     `json:"name"`
	Static    bool       `json:"static,omitempty"`
	Kind      string     `json:"kind"`
	Signature *Signature `json:"signature"`
}

// Extractor extracts signatures using a wrapper registry.
type Extractor struct {
	reg *Registry
}

// NewExtractor returns an Extractor. A nil registry means DefaultRegistry.
func NewExtractor(reg *Registry) *Extractor {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Extractor{reg: reg}
}

// Extract returns the signature of sym, whose declaration lives in mod.
// Namespaces, types and opaque values return ErrNoSignature.
func (e *Extractor) Extract(mod *graph.ModuleNode, sym resolve.CanonicalSymbol) (*Signature, error) {
	if sym.Decl == nil || mod == nil {
		return nil, ErrNoSignature
	}
	return e.decl(mod, sym.Decl, 0)
}

func (e *Extractor) decl(mod *graph.ModuleNode, d *syntax.Decl, depth int) (*Signature, error) {
	switch d.Kind {
	case syntax.DeclFunction:
		if d.Func == nil {
			return nil, ErrNoSignature
		}
		sig := fromFunc(d.Func)
		// Overloads holds the signatures other than Func; an implementation
		// body is not one of them.
		n := len(d.Overloads)
		if !d.Func.HasBody {
			n++
		}
		if n > 1 {
			sig.Overloads = n
		}
		sig.Ambient = d.Ambient
		return sig, nil
	case syntax.DeclClass:
		sig := fromClass(d.Class)
		sig.Ambient = d.Ambient
		return sig, nil
	case syntax.DeclVar:
		if d.FuncType != nil {
			return fromFunc(d.FuncType), nil
		}
		if d.Init == nil {
			return nil, ErrNoSignature
		}
		return e.expr(mod, d.Init, depth)
	}
	return nil, ErrNoSignature
}

func (e *Extractor) expr(mod *graph.ModuleNode, x syntax.Expr, depth int) (*Signature, error) {
	if depth > maxUnwrapDepth {
		return nil, ErrNoSignature
	}
	switch x := x.(type) {
	case *syntax.Func:
		return fromFunc(x), nil
	case *syntax.Class:
		return fromClass(x), nil
	case *syntax.Call:
		return e.unwrap(mod, x, depth)
	case *syntax.Ident:
		// const alias = realFn
		if mod.File == nil || strings.Contains(x.Name, ".") {
			return nil, ErrNoSignature
		}
		d := mod.File.Decl(x.Name)
		if d == nil {
			return nil, ErrNoSignature
		}
		return e.decl(mod, d, depth+1)
	}
	return nil, ErrNoSignature
}

// unwrap extracts the callable passed to a registered wrapper. The reported
// pattern is the outermost wrapper name.
func (e *Extractor) unwrap(mod *graph.ModuleNode, call *syntax.Call, depth int) (*Signature, error) {
	name := e.calleeName(mod, call.Callee)
	rule, ok := e.reg.Lookup(name)
	if !ok {
		return nil, ErrNoSignature
	}
	inner, ok := rule.inner(call)
	if !ok {
		return nil, ErrNoSignature
	}
	sig, err := e.expr(mod, inner, depth+1)
	if err != nil {
		return nil, err
	}
	sig.UnwrapPattern = name
	return sig, nil
}

// calleeName maps a callee path to the wrapper name it stands for, looking
// through import aliases: f for import { flow as f } is flow, and lib.flow
// is flow.
func (e *Extractor) calleeName(mod *graph.ModuleNode, callee string) string {
	callee = strings.TrimSpace(strings.Trim(callee, "()"))
	if i := strings.LastIndex(callee, ","); i >= 0 {
		// (0, lib.flow)
		callee = strings.TrimSpace(callee[i+1:])
	}
	if i := strings.LastIndex(callee, "."); i >= 0 {
		return callee[i+1:]
	}
	if imp, ok := mod.Import(callee); ok && !imp.Wildcard && imp.Imported != "" && imp.Imported != "default" {
		return imp.Imported
	}
	return callee
}

// Methods returns the public methods of a class symbol in declaration order.
// Private and #private members are left out.
func (e *Extractor) Methods(mod *graph.ModuleNode, sym resolve.CanonicalSymbol) []Method {
	cls := classOf(sym.Decl)
	if cls == nil {
		return nil
	}
	var out []Method
	for _, m := range cls.Methods {
		if m.Private || m.Func == nil {
			continue
		}
		out = append(out, Method{
			Name:      m.Name,
			Static:    m.Static,
			Kind:      m.Kind,
			Signature: fromFunc(m.Func),
		})
	}
	return out
}

// Method returns one public method of a class symbol.
func (e *Extractor) Method(mod *graph.ModuleNode, sym resolve.CanonicalSymbol, name string) (Method, bool) {
	for _, m := range e.Methods(mod, sym) {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// Heritage returns the superclass expression of a class symbol and whether
// the class is abstract.
func (e *Extractor) Heritage(sym resolve.CanonicalSymbol) (extends string, abstract bool) {
	cls := classOf(sym.Decl)
	if cls == nil {
		return "", false
	}
	return cls.Extends, cls.Abstract
}

func classOf(d *syntax.Decl) *syntax.Class {
	if d == nil {
		return nil
	}
	if d.Class != nil {
		return d.Class
	}
	if cls, ok := d.Init.(*syntax.Class); ok {
		return cls
	}
	return nil
}

func fromFunc(fn *syntax.Func) *Signature {
	sig := &Signature{
		Parameters:  make([]Parameter, 0, len(fn.Params)),
		ReturnType:  fn.ReturnType,
		IsAsync:     fn.Async,
		IsGenerator: fn.Generator,
	}
	for _, p := range fn.Params {
		sig.Parameters = append(sig.Parameters, Parameter{
			Name:       p.Name,
			TypeText:   p.TypeText,
			Optional:   p.Optional || p.Default != "",
			HasDefault: p.Default != "",
			Default:    p.Default,
			IsRest:     p.Rest,
		})
	}
	return sig
}

// fromClass returns the constructor signature, or an empty one when the
// class declares no constructor.
func fromClass(cls *syntax.Class) *Signature {
	if cls == nil || cls.Constructor == nil {
		return &Signature{Parameters: []Parameter{}, IsConstructor: true}
	}
	sig := fromFunc(cls.Constructor)
	sig.ReturnType = ""
	sig.IsConstructor = true
	return sig
}
