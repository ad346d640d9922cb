package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// maxOpaqueText bounds the text kept for unmodelled expressions.
const maxOpaqueText = 120

// function lowers any node with parameters/return_type/body fields:
// declarations, signatures, methods, arrow functions and function expressions.
func (l *lowerer) function(n *sitter.Node) *Func {
	fn := &Func{
		Name:       content(n.ChildByFieldName("name"), l.src),
		ReturnType: typeText(n.ChildByFieldName("return_type"), l.src),
		HasBody:    n.ChildByFieldName("body") != nil,
		Async:      hasToken(n, "async"),
		Generator:  hasToken(n, "*") || strings.HasPrefix(n.Type(), "generator_function"),
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Params = l.params(params)
	} else if p := n.ChildByFieldName("parameter"); p != nil {
		// x => x
		fn.Params = []Param{{Name: p.Content(l.src)}}
	}
	return fn
}

// functionType returns the callable shape of a type annotation whose type is
// a function type, or nil.
func (l *lowerer) functionType(annotation *sitter.Node) *Func {
	t := annotation
	if t.Type() == "type_annotation" && t.NamedChildCount() > 0 {
		t = t.NamedChild(0)
	}
	for t.Type() == "parenthesized_type" && t.NamedChildCount() > 0 {
		t = t.NamedChild(0)
	}
	if t.Type() != "function_type" {
		return nil
	}
	fn := &Func{ReturnType: typeText(t.ChildByFieldName("return_type"), l.src)}
	if params := t.ChildByFieldName("parameters"); params != nil {
		fn.Params = l.params(params)
	}
	return fn
}

func (l *lowerer) params(n *sitter.Node) []Param {
	var out []Param
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p, ok := l.param(n.NamedChild(i))
		if ok {
			out = append(out, p)
		}
	}
	return out
}

func (l *lowerer) param(n *sitter.Node) (Param, bool) {
	switch n.Type() {
	case "required_parameter", "optional_parameter":
		pattern := n.ChildByFieldName("pattern")
		if pattern == nil {
			return Param{}, false
		}
		if pattern.Type() == "this" {
			return Param{}, false
		}
		p := Param{
			TypeText: typeText(n.ChildByFieldName("type"), l.src),
			Optional: n.Type() == "optional_parameter",
		}
		if v := n.ChildByFieldName("value"); v != nil {
			p.Default = compact(v.Content(l.src))
			p.Optional = true
		}
		l.patternName(pattern, &p)
		return p, true
	case "identifier", "object_pattern", "array_pattern", "rest_pattern":
		p := Param{}
		l.patternName(n, &p)
		return p, true
	case "assignment_pattern":
		p := Param{Optional: true}
		if v := n.ChildByFieldName("right"); v != nil {
			p.Default = compact(v.Content(l.src))
		}
		if left := n.ChildByFieldName("left"); left != nil {
			l.patternName(left, &p)
		}
		return p, true
	}
	return Param{}, false
}

func (l *lowerer) patternName(n *sitter.Node, p *Param) {
	if n.Type() == "rest_pattern" {
		p.Rest = true
		if n.NamedChildCount() > 0 {
			p.Name = compact(n.NamedChild(0).Content(l.src))
			return
		}
		p.Name = strings.TrimPrefix(compact(n.Content(l.src)), "...")
		return
	}
	p.Name = compact(n.Content(l.src))
}

func (l *lowerer) class(n *sitter.Node) *Class {
	cls := &Class{
		Name:     content(n.ChildByFieldName("name"), l.src),
		Abstract: n.Type() == "abstract_class_declaration",
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "class_heritage" {
			cls.Extends = l.extends(c)
		}
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return cls
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		switch m.Type() {
		case "method_definition", "method_signature", "abstract_method_signature":
			l.classMethod(cls, m)
		case "public_field_definition", "field_definition":
			l.classField(cls, m)
		}
	}
	return cls
}

func (l *lowerer) extends(heritage *sitter.Node) string {
	for i := 0; i < int(heritage.NamedChildCount()); i++ {
		c := heritage.NamedChild(i)
		if c.Type() == "extends_clause" {
			if v := c.ChildByFieldName("value"); v != nil {
				return compact(v.Content(l.src))
			}
			if c.NamedChildCount() > 0 {
				return compact(c.NamedChild(0).Content(l.src))
			}
		}
		if c.Type() != "implements_clause" {
			// javascript: class_heritage wraps the expression directly
			return compact(c.Content(l.src))
		}
	}
	return ""
}

func (l *lowerer) classMethod(cls *Class, n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := unquote(nameNode.Content(l.src))
	fn := l.function(n)
	fn.Name = name

	if name == "constructor" {
		// Overloaded constructors: keep the implementation.
		if cls.Constructor == nil || (!cls.Constructor.HasBody && fn.HasBody) {
			cls.Constructor = fn
		}
		return
	}

	m := &Method{
		Name:    name,
		Func:    fn,
		Static:  hasToken(n, "static"),
		Private: nameNode.Type() == "private_property_identifier" || l.accessibility(n) == "private",
		Kind:    "method",
	}
	if hasToken(n, "get") {
		m.Kind = "get"
	} else if hasToken(n, "set") {
		m.Kind = "set"
	}

	for _, prev := range cls.Methods {
		if prev.Name == m.Name && prev.Static == m.Static && prev.Kind == m.Kind {
			if !prev.Func.HasBody && fn.HasBody {
				prev.Func = fn
			}
			return
		}
	}
	cls.Methods = append(cls.Methods, m)
}

// classField records arrow-function valued fields as methods.
func (l *lowerer) classField(cls *Class, n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = n.ChildByFieldName("property")
	}
	value := n.ChildByFieldName("value")
	if nameNode == nil || value == nil {
		return
	}
	fn, ok := l.expr(value).(*Func)
	if !ok {
		return
	}
	fn.Name = unquote(nameNode.Content(l.src))
	cls.Methods = append(cls.Methods, &Method{
		Name:    fn.Name,
		Func:    fn,
		Static:  hasToken(n, "static"),
		Private: nameNode.Type() == "private_property_identifier" || l.accessibility(n) == "private",
		Kind:    "method",
	})
}

func (l *lowerer) accessibility(n *sitter.Node) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "accessibility_modifier" {
			return c.Content(l.src)
		}
	}
	return ""
}

// expr lowers an expression to the subset modelled by Expr.
func (l *lowerer) expr(n *sitter.Node) Expr {
	switch n.Type() {
	case "identifier", "member_expression":
		return &Ident{Name: compact(n.Content(l.src))}
	case "call_expression":
		call := &Call{Callee: compact(content(n.ChildByFieldName("function"), l.src))}
		if args := n.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				a := args.NamedChild(i)
				if a.Type() == "comment" {
					continue
				}
				call.Args = append(call.Args, l.expr(a))
			}
		}
		return call
	case "function_expression", "function", "arrow_function", "generator_function":
		return l.function(n)
	case "class":
		return l.class(n)
	case "object":
		return l.object(n)
	case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
		if n.NamedChildCount() > 0 {
			return l.expr(n.NamedChild(0))
		}
	}
	text := compact(n.Content(l.src))
	if len(text) > maxOpaqueText {
		text = text[:maxOpaqueText]
	}
	return &Opaque{Text: text}
}

func (l *lowerer) object(n *sitter.Node) *Object {
	obj := &Object{}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "pair":
			key := c.ChildByFieldName("key")
			value := c.ChildByFieldName("value")
			if key == nil || value == nil {
				continue
			}
			obj.Fields = append(obj.Fields, Field{Key: unquote(key.Content(l.src)), Value: l.expr(value)})
		case "shorthand_property_identifier":
			name := c.Content(l.src)
			obj.Fields = append(obj.Fields, Field{Key: name, Value: &Ident{Name: name}})
		case "method_definition":
			fn := l.function(c)
			fn.Name = unquote(content(c.ChildByFieldName("name"), l.src))
			obj.Fields = append(obj.Fields, Field{Key: fn.Name, Value: fn})
		}
	}
	return obj
}

func content(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

// typeText normalizes a type annotation: ": Foo<Bar>" becomes "Foo<Bar>".
func typeText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	s := strings.TrimSpace(n.Content(src))
	s = strings.TrimPrefix(s, ":")
	return compact(strings.TrimSpace(s))
}

// compact collapses runs of whitespace into single spaces.
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func unquote(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}

// hasToken reports whether n has an anonymous child token of the given type.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
