package syntax

// File is the lowered form of one source file: the top-level declarations,
// export and import statements the graph builder needs, and nothing else.
type File struct {
	Path        string
	Kind        FileKind
	Decls       []*Decl
	Exports     []*Export
	Imports     []*Import
	Diagnostics []Diagnostic
}

// Decl looks up a top-level declaration by name. When a type and a value
// share the name, the value declaration is returned.
func (f *File) Decl(name string) *Decl {
	var typeOnly *Decl
	for _, d := range f.Decls {
		if d.Name != name {
			continue
		}
		if d.Kind == DeclType || d.Kind == DeclInterface {
			if typeOnly == nil {
				typeOnly = d
			}
			continue
		}
		return d
	}
	return typeOnly
}

// Import looks up an import binding by its local name.
func (f *File) Import(local string) *Import {
	for _, imp := range f.Imports {
		if imp.Local == local {
			return imp
		}
	}
	return nil
}

// Diagnostic is a non-fatal problem found while lowering a file.
type Diagnostic struct {
	Line    int    `json:"line"` // 1-based
	Message string `json:"message"`
}

// DeclKind is the syntactic kind of a top-level declaration.
type DeclKind string

const (
	DeclFunction  DeclKind = "function"
	DeclClass     DeclKind = "class"
	DeclVar       DeclKind = "var"
	DeclType      DeclKind = "type"
	DeclInterface DeclKind = "interface"
	DeclEnum      DeclKind = "enum"
	DeclNamespace DeclKind = "namespace"
)

// Decl is a top-level declaration.
type Decl struct {
	Name    string
	Kind    DeclKind
	Line    int
	Ambient bool // declare ... or declaration file, no runtime body

	// Func is set for DeclFunction. For overloaded functions it is the
	// implementation when one exists, otherwise the first signature.
	Func      *Func
	Overloads []*Func

	Class *Class // DeclClass

	// TypeText is the annotation of a DeclVar. FuncType is set when that
	// annotation is a function type.
	TypeText string
	FuncType *Func
	Init     Expr
}

// Func is a callable: a function declaration, signature, method, arrow
// function or function expression.
type Func struct {
	Name       string
	Params     []Param
	ReturnType string
	HasBody    bool
	Async      bool
	Generator  bool
}

// Param is one formal parameter.
type Param struct {
	Name     string
	TypeText string
	Default  string
	Optional bool
	Rest     bool
}

// Class is a class declaration or expression.
type Class struct {
	Name        string
	Extends     string
	Abstract    bool
	Constructor *Func
	Methods     []*Method
}

// Method is a method (or arrow-valued field) inside a class body.
type Method struct {
	Name    string
	Func    *Func
	Static  bool
	Private bool
	Kind    string // method, get, set
}

// Expr is the small subset of expressions that matters for unwrapping
// wrapper calls: identifiers, calls, callables and object literals.
type Expr interface {
	exprNode()
}

// Ident is an identifier or dotted member path such as "lib.flow".
type Ident struct {
	Name string
}

// Call is a call expression. Callee is the textual callee path.
type Call struct {
	Callee string
	Args   []Expr
}

// Object is an object literal.
type Object struct {
	Fields []Field
}

// Field is one property of an object literal.
type Field struct {
	Key   string
	Value Expr
}

// Field looks up a property by key.
func (o *Object) Field(key string) (Expr, bool) {
	for _, f := range o.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Opaque is any expression the adapter does not model.
type Opaque struct {
	Text string
}

func (*Ident) exprNode()  {}
func (*Call) exprNode()   {}
func (*Object) exprNode() {}
func (*Opaque) exprNode() {}
func (*Func) exprNode()   {}
func (*Class) exprNode()  {}

// ExportKind distinguishes export statement shapes.
type ExportKind int

const (
	// ExportLocal exports a local name: export { a as b }, export function a.
	ExportLocal ExportKind = iota
	// ExportFrom re-exports a name from another module.
	ExportFrom
	// ExportAll is export * from 'x'.
	ExportAll
	// ExportNamespaceFrom is export * as ns from 'x'.
	ExportNamespaceFrom
)

func (k ExportKind) String() string {
	switch k {
	case ExportLocal:
		return "local"
	case ExportFrom:
		return "from"
	case ExportAll:
		return "all"
	case ExportNamespaceFrom:
		return "namespace-from"
	}
	return "unknown"
}

// Export is one exported name (or wildcard) in statement order.
type Export struct {
	Kind     ExportKind
	Name     string // exported name; empty for ExportAll
	Local    string // ExportLocal: local binding name
	Source   string // ExportFrom, ExportAll, ExportNamespaceFrom: specifier
	Imported string // ExportFrom: name in the source module
	Line     int
}

// Import is one imported local binding.
type Import struct {
	Local     string
	Source    string
	Imported  string // name in the source module; "default" for default imports
	Namespace bool   // import * as x, const x = require(...)
	Line      int
}
