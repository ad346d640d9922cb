package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// expressionStatement handles the statement-level expressions that declare
// or export something: TypeScript namespaces (which the grammar wraps in an
// expression statement), CommonJS export assignments, and the re-export
// helpers emitted by compilers.
func (l *lowerer) expressionStatement(n *sitter.Node) {
	if n.NamedChildCount() == 0 {
		return
	}
	e := n.NamedChild(0)
	switch e.Type() {
	case "internal_module", "module":
		l.declaration(e, false)
	case "assignment_expression":
		l.commonJSAssignment(e)
	case "call_expression":
		l.exportStarHelper(e)
	}
}

// commonJSAssignment lowers exports.x = ..., module.exports.x = ... and
// module.exports = ....
func (l *lowerer) commonJSAssignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}
	target := compact(left.Content(l.src))
	ln := line(n)

	if target == "module.exports" {
		l.moduleExports(right, ln)
		return
	}

	var name string
	switch {
	case strings.HasPrefix(target, "module.exports."):
		name = strings.TrimPrefix(target, "module.exports.")
	case strings.HasPrefix(target, "exports."):
		name = strings.TrimPrefix(target, "exports.")
	default:
		return
	}
	if name == "" || strings.Contains(name, ".") {
		return
	}
	l.commonJSExport(name, right, ln)
}

func (l *lowerer) moduleExports(right *sitter.Node, ln int) {
	if src, ok := l.requireSource(right); ok {
		l.export(&Export{Kind: ExportAll, Source: src, Line: ln})
		return
	}
	if right.Type() == "object" {
		for i := 0; i < int(right.NamedChildCount()); i++ {
			c := right.NamedChild(i)
			switch c.Type() {
			case "pair":
				key := c.ChildByFieldName("key")
				value := c.ChildByFieldName("value")
				if key != nil && value != nil {
					l.commonJSExport(unquote(key.Content(l.src)), value, ln)
				}
			case "shorthand_property_identifier":
				name := c.Content(l.src)
				l.export(&Export{Kind: ExportLocal, Name: name, Local: name, Line: ln})
			case "method_definition":
				fn := l.function(c)
				fn.Name = unquote(content(c.ChildByFieldName("name"), l.src))
				l.addDecl(&Decl{Name: fn.Name, Kind: DeclFunction, Line: ln, Func: fn})
				l.export(&Export{Kind: ExportLocal, Name: fn.Name, Local: fn.Name, Line: ln})
			}
		}
		return
	}
	l.defaultValue(right, ln)
}

// commonJSExport exports one named CommonJS value.
func (l *lowerer) commonJSExport(name string, value *sitter.Node, ln int) {
	if value.Type() == "identifier" {
		l.export(&Export{Kind: ExportLocal, Name: name, Local: value.Content(l.src), Line: ln})
		return
	}
	if src, ok := l.requireSource(value); ok {
		l.export(&Export{Kind: ExportFrom, Name: name, Imported: "default", Source: src, Line: ln})
		return
	}
	if l.file.Decl(name) == nil {
		l.addDecl(l.valueDecl(name, value))
	}
	l.export(&Export{Kind: ExportLocal, Name: name, Local: name, Line: ln})
}

// exportStarHelper recognizes __exportStar(require('x'), exports) and the
// older __export(require('x')).
func (l *lowerer) exportStarHelper(n *sitter.Node) {
	// (0, tslib_1.__exportStar)(...) is common in compiled output.
	callee := strings.Trim(compact(content(n.ChildByFieldName("function"), l.src)), "()")
	if !strings.HasSuffix(callee, "__exportStar") && !strings.HasSuffix(callee, "__export") {
		return
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	if src, ok := l.requireSource(args.NamedChild(0)); ok {
		l.export(&Export{Kind: ExportAll, Source: src, Line: line(n)})
	}
}
