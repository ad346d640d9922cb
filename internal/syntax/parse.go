package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// maxDiagnostics caps the syntax-error diagnostics reported per file.
const maxDiagnostics = 10

// ParseError reports a file the parser could not produce a tree for.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse parses src with the grammar selected by p's extension and lowers the
// syntax tree into a File. Syntax errors inside the tree are not fatal: intact
// statements are still lowered and each error region becomes a Diagnostic.
// A *ParseError is returned only when no tree could be produced at all.
func Parse(ctx context.Context, p string, src []byte) (*File, error) {
	grammar, ok := GrammarForFile(p)
	if !ok {
		return nil, &ParseError{Path: p, Err: fmt.Errorf("unsupported file type")}
	}
	lang, _ := grammarFor(grammar)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, &ParseError{Path: p, Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, &ParseError{Path: p, Err: fmt.Errorf("empty syntax tree")}
	}

	l := &lowerer{
		src:  src,
		file: &File{Path: p, Kind: KindForPath(p)},
	}
	l.ambient = l.file.Kind == Declaration
	l.program(root)
	if root.HasError() {
		l.collectErrors(root)
	}
	return l.file, nil
}

// lowerer walks one syntax tree and fills in a File.
type lowerer struct {
	src     []byte
	file    *File
	ambient bool
}

func (l *lowerer) program(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		l.statement(root.NamedChild(i))
	}
}

func (l *lowerer) statement(n *sitter.Node) {
	switch n.Type() {
	case "export_statement":
		l.markModule()
		l.exportStatement(n)
	case "import_statement":
		l.markModule()
		l.importStatement(n)
	case "expression_statement":
		l.expressionStatement(n)
	default:
		l.declaration(n, false)
	}
}

// markModule promotes a script to a module once ESM syntax is seen.
func (l *lowerer) markModule() {
	if l.file.Kind == Script {
		l.file.Kind = Module
	}
}

// declaration lowers a declaration node and returns the names it declares.
func (l *lowerer) declaration(n *sitter.Node, ambient bool) []string {
	ambient = ambient || l.ambient
	switch n.Type() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		fn := l.function(n)
		if fn.Name == "" {
			return nil
		}
		d := l.addDecl(&Decl{Name: fn.Name, Kind: DeclFunction, Line: line(n), Ambient: ambient || !fn.HasBody, Func: fn})
		return []string{d.Name}
	case "class_declaration", "abstract_class_declaration":
		cls := l.class(n)
		if cls.Name == "" {
			return nil
		}
		l.addDecl(&Decl{Name: cls.Name, Kind: DeclClass, Line: line(n), Ambient: ambient, Class: cls})
		return []string{cls.Name}
	case "lexical_declaration", "variable_declaration":
		return l.variables(n, ambient)
	case "type_alias_declaration":
		return l.named(n, DeclType, ambient)
	case "interface_declaration":
		return l.named(n, DeclInterface, ambient)
	case "enum_declaration":
		return l.named(n, DeclEnum, ambient)
	case "internal_module", "module":
		name := n.ChildByFieldName("name")
		if name == nil || name.Type() == "string" {
			// declare module 'x' augments another module.
			return nil
		}
		return l.named(n, DeclNamespace, ambient)
	case "ambient_declaration":
		return l.ambientDeclaration(n)
	}
	return nil
}

func (l *lowerer) ambientDeclaration(n *sitter.Node) []string {
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		names = append(names, l.declaration(n.NamedChild(i), true)...)
	}
	return names
}

func (l *lowerer) named(n *sitter.Node, kind DeclKind, ambient bool) []string {
	name := content(n.ChildByFieldName("name"), l.src)
	if name == "" {
		return nil
	}
	l.addDecl(&Decl{Name: name, Kind: kind, Line: line(n), Ambient: ambient})
	return []string{name}
}

func (l *lowerer) variables(n *sitter.Node, ambient bool) []string {
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		v := n.NamedChild(i)
		if v.Type() != "variable_declarator" {
			continue
		}
		nameNode := v.ChildByFieldName("name")
		value := v.ChildByFieldName("value")
		if nameNode == nil {
			continue
		}
		if src, ok := l.requireSource(value); ok {
			l.requireImport(nameNode, src, line(v))
			continue
		}
		if nameNode.Type() != "identifier" {
			continue
		}
		d := &Decl{Name: nameNode.Content(l.src), Kind: DeclVar, Line: line(v), Ambient: ambient}
		if t := v.ChildByFieldName("type"); t != nil {
			d.TypeText = typeText(t, l.src)
			d.FuncType = l.functionType(t)
		}
		if value != nil {
			d.Init = l.expr(value)
		}
		l.addDecl(d)
		names = append(names, d.Name)
	}
	return names
}

// addDecl records d, merging function overloads into a single Decl. The
// returned Decl is the one kept in the file.
func (l *lowerer) addDecl(d *Decl) *Decl {
	prev := l.file.Decl(d.Name)
	if prev == nil || prev.Kind != DeclFunction || d.Kind != DeclFunction {
		l.file.Decls = append(l.file.Decls, d)
		return d
	}
	if !prev.Func.HasBody && d.Func.HasBody {
		prev.Overloads = append(prev.Overloads, prev.Func)
		prev.Func = d.Func
		prev.Ambient = d.Ambient
	} else {
		prev.Overloads = append(prev.Overloads, d.Func)
	}
	return prev
}

func (l *lowerer) exportStatement(n *sitter.Node) {
	ln := line(n)
	source := unquote(content(n.ChildByFieldName("source"), l.src))
	isDefault := hasToken(n, "default")

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		names := l.declaration(decl, false)
		if isDefault && len(names) == 1 {
			l.export(&Export{Kind: ExportLocal, Name: "default", Local: names[0], Line: ln})
			return
		}
		if isDefault && len(names) == 0 {
			l.defaultValue(decl, ln)
			return
		}
		for _, name := range names {
			l.export(&Export{Kind: ExportLocal, Name: name, Local: name, Line: ln})
		}
		return
	}

	if value := n.ChildByFieldName("value"); value != nil && isDefault {
		l.defaultValue(value, ln)
		return
	}

	if hasToken(n, "=") && n.NamedChildCount() > 0 {
		// export = x
		l.defaultValue(n.NamedChild(0), ln)
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "export_clause":
			l.exportClause(c, source, ln)
			return
		case "namespace_export":
			name := ""
			if c.NamedChildCount() > 0 {
				name = unquote(c.NamedChild(0).Content(l.src))
			}
			l.export(&Export{Kind: ExportNamespaceFrom, Name: name, Source: source, Line: ln})
			return
		}
	}

	if hasToken(n, "*") && source != "" {
		l.export(&Export{Kind: ExportAll, Source: source, Line: ln})
	}
}

func (l *lowerer) exportClause(n *sitter.Node, source string, ln int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		spec := n.NamedChild(i)
		if spec.Type() != "export_specifier" {
			continue
		}
		name := unquote(content(spec.ChildByFieldName("name"), l.src))
		alias := unquote(content(spec.ChildByFieldName("alias"), l.src))
		exported := name
		if alias != "" {
			exported = alias
		}
		if source != "" {
			l.export(&Export{Kind: ExportFrom, Name: exported, Imported: name, Source: source, Line: ln})
		} else {
			l.export(&Export{Kind: ExportLocal, Name: exported, Local: name, Line: ln})
		}
	}
}

// defaultValue handles export default <expr> and export = <expr>.
func (l *lowerer) defaultValue(n *sitter.Node, ln int) {
	switch n.Type() {
	case "identifier":
		l.export(&Export{Kind: ExportLocal, Name: "default", Local: n.Content(l.src), Line: ln})
		return
	case "function_declaration", "generator_function_declaration", "class_declaration", "abstract_class_declaration":
		if names := l.declaration(n, false); len(names) == 1 {
			l.export(&Export{Kind: ExportLocal, Name: "default", Local: names[0], Line: ln})
			return
		}
	}
	l.addDecl(l.valueDecl("default", n))
	l.export(&Export{Kind: ExportLocal, Name: "default", Local: "default", Line: ln})
}

// valueDecl builds a synthetic declaration for a named value expression.
func (l *lowerer) valueDecl(name string, n *sitter.Node) *Decl {
	d := &Decl{Name: name, Line: line(n), Ambient: l.ambient}
	switch e := l.expr(n).(type) {
	case *Func:
		d.Kind = DeclFunction
		d.Func = e
	case *Class:
		d.Kind = DeclClass
		d.Class = e
	default:
		d.Kind = DeclVar
		d.Init = e
	}
	return d
}

func (l *lowerer) export(e *Export) {
	l.file.Exports = append(l.file.Exports, e)
}

func (l *lowerer) importStatement(n *sitter.Node) {
	ln := line(n)
	source := unquote(content(n.ChildByFieldName("source"), l.src))
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "import_clause":
			l.importClause(c, source, ln)
		case "import_require_clause":
			// import x = require('y')
			if c.NamedChildCount() > 0 {
				local := c.NamedChild(0).Content(l.src)
				src := unquote(content(c.ChildByFieldName("source"), l.src))
				l.file.Imports = append(l.file.Imports, &Import{Local: local, Source: src, Namespace: true, Line: ln})
			}
		}
	}
}

func (l *lowerer) importClause(n *sitter.Node, source string, ln int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "identifier":
			l.file.Imports = append(l.file.Imports, &Import{Local: c.Content(l.src), Source: source, Imported: "default", Line: ln})
		case "namespace_import":
			if c.NamedChildCount() > 0 {
				l.file.Imports = append(l.file.Imports, &Import{Local: c.NamedChild(0).Content(l.src), Source: source, Namespace: true, Line: ln})
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				name := unquote(content(spec.ChildByFieldName("name"), l.src))
				local := content(spec.ChildByFieldName("alias"), l.src)
				if local == "" {
					local = name
				}
				l.file.Imports = append(l.file.Imports, &Import{Local: local, Source: source, Imported: name, Line: ln})
			}
		}
	}
}

// requireSource reports the specifier of a require('x') call.
func (l *lowerer) requireSource(n *sitter.Node) (string, bool) {
	if n == nil || n.Type() != "call_expression" {
		return "", false
	}
	if content(n.ChildByFieldName("function"), l.src) != "require" {
		return "", false
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() != 1 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return "", false
	}
	return unquote(arg.Content(l.src)), true
}

// requireImport records const x = require('y') and const { a: b } = require('y').
func (l *lowerer) requireImport(pattern *sitter.Node, source string, ln int) {
	switch pattern.Type() {
	case "identifier":
		l.file.Imports = append(l.file.Imports, &Import{Local: pattern.Content(l.src), Source: source, Namespace: true, Line: ln})
	case "object_pattern":
		for i := 0; i < int(pattern.NamedChildCount()); i++ {
			p := pattern.NamedChild(i)
			switch p.Type() {
			case "shorthand_property_identifier_pattern":
				name := p.Content(l.src)
				l.file.Imports = append(l.file.Imports, &Import{Local: name, Source: source, Imported: name, Line: ln})
			case "pair_pattern":
				key := unquote(content(p.ChildByFieldName("key"), l.src))
				value := p.ChildByFieldName("value")
				if value != nil && value.Type() == "identifier" {
					l.file.Imports = append(l.file.Imports, &Import{Local: value.Content(l.src), Source: source, Imported: key, Line: ln})
				}
			}
		}
	}
}

// collectErrors reports ERROR and MISSING nodes, pruning subtrees without
// errors.
func (l *lowerer) collectErrors(n *sitter.Node) {
	if len(l.file.Diagnostics) >= maxDiagnostics {
		return
	}
	if n.Type() == "ERROR" {
		l.file.Diagnostics = append(l.file.Diagnostics, Diagnostic{Line: line(n), Message: "syntax error"})
		return
	}
	if n.IsMissing() {
		l.file.Diagnostics = append(l.file.Diagnostics, Diagnostic{Line: line(n), Message: fmt.Sprintf("missing %s", n.Type())})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() || c.IsMissing() {
			l.collectErrors(c)
		}
	}
}
