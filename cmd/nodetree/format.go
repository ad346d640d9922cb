package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/jward/nodetree"
)

// glyphSet holds the icons and tree connectors of the text renderer.
type glyphSet struct {
	Module    string
	Function  string
	Class     string
	Constant  string
	Type      string
	Namespace string
	Signature string
	Warning   string

	Branch string
	Last   string
	Pipe   string
	Blank  string
	More   string
}

var unicodeGlyphs = glyphSet{
	Module:    "📦",
	Function:  "⚡",
	Class:     "🔷",
	Constant:  "📌",
	Type:      "🔶",
	Namespace: "🗂",
	Signature: "📎",
	Warning:   "⚠",
	Branch:    "├── ",
	Last:      "└── ",
	Pipe:      "│   ",
	Blank:     "    ",
	More:      "…",
}

var asciiGlyphs = glyphSet{
	Module:    "[M]",
	Function:  "fn",
	Class:     "cls",
	Constant:  "const",
	Type:      "type",
	Namespace: "ns",
	Signature: "sig",
	Warning:   "!",
	Branch:    "|-- ",
	Last:      "`-- ",
	Pipe:      "|   ",
	Blank:     "    ",
	More:      "...",
}

var (
	colorYellow  = lipgloss.Color("220")
	colorBlue    = lipgloss.Color("75")
	colorGreen   = lipgloss.Color("35")
	colorCyan    = lipgloss.Color("36")
	colorRed     = lipgloss.Color("167")
	colorMagenta = lipgloss.Color("170")
	colorWhite   = lipgloss.Color("255")
	colorDim     = lipgloss.Color("240")
)

type styles struct {
	module    lipgloss.Style
	name      lipgloss.Style
	function  lipgloss.Style
	class     lipgloss.Style
	constant  lipgloss.Style
	typ       lipgloss.Style
	namespace lipgloss.Style
	param     lipgloss.Style
	typeText  lipgloss.Style
	dim       lipgloss.Style
	warn      lipgloss.Style
}

func newStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		module:    lipgloss.NewStyle().Foreground(colorYellow),
		name:      lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		function:  lipgloss.NewStyle().Foreground(colorGreen),
		class:     lipgloss.NewStyle().Foreground(colorBlue),
		constant:  lipgloss.NewStyle().Foreground(colorRed),
		typ:       lipgloss.NewStyle().Foreground(colorMagenta),
		namespace: lipgloss.NewStyle().Foreground(colorCyan),
		param:     lipgloss.NewStyle().Foreground(colorWhite),
		typeText:  lipgloss.NewStyle().Foreground(colorYellow),
		dim:       lipgloss.NewStyle().Foreground(colorDim),
		warn:      lipgloss.NewStyle().Foreground(colorYellow),
	}
}

// renderer writes results as glyph trees.
type renderer struct {
	g glyphSet
	s styles
}

func newRenderer(ascii, noColor bool) *renderer {
	g := unicodeGlyphs
	if ascii {
		g = asciiGlyphs
	}
	return &renderer{g: g, s: newStyles(noColor)}
}

// item is one line of a rendered tree and the lines nested below it.
type item struct {
	text     string
	children []item
}

func (r *renderer) writeItems(w io.Writer, prefix string, items []item) {
	for i, it := range items {
		connector, next := r.g.Branch, r.g.Pipe
		if i == len(items)-1 {
			connector, next = r.g.Last, r.g.Blank
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, connector, it.text)
		r.writeItems(w, prefix+next, it.children)
	}
}

// renderTree writes the package header followed by the module tree.
func (r *renderer) renderTree(w io.Writer, t CLITree) {
	header := r.s.module.Render(r.g.Module) + " " + r.s.name.Render(t.Package)
	if t.Version != "" {
		header += r.s.dim.Render("@" + t.Version)
	}
	if t.Path != "" {
		header += r.s.dim.Render("/" + t.Path)
	}
	fmt.Fprintln(w, header)
	if t.Tree != nil {
		r.writeItems(w, "", r.moduleItems(t.Tree))
	}
}

func (r *renderer) moduleItems(n *nodetree.ExplorationTree) []item {
	var items []item
	add := func(icon string, style lipgloss.Style, label string, names []string) {
		if len(names) == 0 {
			return
		}
		items = append(items, item{text: style.Render(icon) + " " + label + ": " + style.Render(strings.Join(names, ", "))})
	}
	add(r.g.Function, r.s.function, "functions", n.Functions)
	add(r.g.Class, r.s.class, "classes", n.Classes)
	add(r.g.Type, r.s.typ, "types", n.Types)
	add(r.g.Namespace, r.s.namespace, "namespaces", n.Namespaces)
	add(r.g.Constant, r.s.constant, "constants", n.Constants)

	for _, d := range n.Diagnostics {
		items = append(items, item{text: r.s.warn.Render(r.g.Warning + " " + d)})
	}
	for _, c := range n.Children {
		items = append(items, item{
			text:     r.s.module.Render(r.g.Module) + " " + r.s.name.Render(c.ModulePath),
			children: r.moduleItems(c),
		})
	}
	if n.Truncated {
		items = append(items, item{text: r.s.dim.Render(r.g.More + " submodules beyond depth limit")})
	}
	return items
}

// renderSignature writes a symbol's signature, or "signature not available"
// when it has none.
func (r *renderer) renderSignature(w io.Writer, sig CLISignature) {
	res := sig.SignatureResult
	if res == nil {
		return
	}
	header := r.s.module.Render(r.g.Signature) + " " + r.s.name.Render(res.Symbol)
	header += r.s.dim.Render(fmt.Sprintf(" (%s in %s)", res.Kind, res.ModulePath))
	fmt.Fprintln(w, header)

	if res.Signature == nil && len(res.Methods) == 0 {
		fmt.Fprintln(w, "signature not available")
		return
	}

	var items []item
	if res.Extends != "" {
		items = append(items, item{text: "Extends: " + r.s.class.Render(res.Extends)})
	}
	if mods := modifiers(res); len(mods) > 0 {
		items = append(items, item{text: "Modifiers: " + r.s.dim.Render(strings.Join(mods, ", "))})
	}
	if s := res.Signature; s != nil {
		if s.UnwrapPattern != "" {
			items = append(items, item{text: "Wrapped by: " + r.s.dim.Render(s.UnwrapPattern)})
		}
		if len(s.Parameters) > 0 {
			params := item{text: "Parameters:"}
			for _, p := range s.Parameters {
				params.children = append(params.children, item{text: r.formatParameter(p)})
			}
			items = append(items, params)
		}
		if s.ReturnType != "" {
			items = append(items, item{text: "Returns: " + r.s.function.Render(s.ReturnType)})
		}
		if s.Overloads > 0 {
			items = append(items, item{text: fmt.Sprintf("Overloads: %d", s.Overloads)})
		}
	}
	if len(res.Methods) > 0 {
		methods := item{text: "Methods:"}
		for _, m := range res.Methods {
			methods.children = append(methods.children, item{text: r.formatMethod(m)})
		}
		items = append(items, methods)
	}
	r.writeItems(w, "", items)
}

func (r *renderer) formatParameter(p nodetree.Parameter) string {
	var b strings.Builder
	if p.IsRest {
		b.WriteString("...")
	}
	b.WriteString(r.s.param.Render(p.Name))
	if p.Optional && !p.IsRest && !p.HasDefault {
		b.WriteString("?")
	}
	if p.TypeText != "" {
		b.WriteString(": " + r.s.typeText.Render(p.TypeText))
	}
	if p.HasDefault {
		b.WriteString(" = " + r.s.dim.Render(p.Default))
	}
	return b.String()
}

// modifiers lists the keywords that qualify a symbol's declaration.
func modifiers(res *nodetree.SignatureResult) []string {
	var out []string
	if res.Abstract {
		out = append(out, "abstract")
	}
	if s := res.Signature; s != nil {
		if s.IsAsync {
			out = append(out, "async")
		}
		if s.IsGenerator {
			out = append(out, "generator")
		}
		if s.Ambient {
			out = append(out, "declare")
		}
	}
	return out
}

func (r *renderer) formatMethod(m nodetree.Method) string {
	var b strings.Builder
	if m.Static {
		b.WriteString("static ")
	}
	if m.Signature != nil && m.Signature.IsAsync {
		b.WriteString("async ")
	}
	if m.Kind == "get" || m.Kind == "set" {
		b.WriteString(m.Kind + " ")
	}
	b.WriteString(r.s.param.Render(m.Name))
	b.WriteString("(")
	if m.Signature != nil {
		for i, p := range m.Signature.Parameters {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.formatParameter(p))
		}
	}
	b.WriteString(")")
	if m.Signature != nil && m.Signature.ReturnType != "" {
		b.WriteString(": " + r.s.typeText.Render(m.Signature.ReturnType))
	}
	return b.String()
}

// formatCachedText formats cached packages as aligned columns.
func formatCachedText(w io.Writer, pkgs []CLICachedPackage) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tSOURCE\tFILES\tFETCHED\tROOT")
	for _, p := range pkgs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			p.Name, p.Version, p.Source, p.Files, p.FetchedAt.Format("2006-01-02 15:04"), p.Root)
	}
	tw.Flush()
}

// writeResultText dispatches to the text formatter for the result type.
func writeResultText(w io.Writer, r *renderer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLITree:
		r.renderTree(w, v)
	case CLISignature:
		r.renderSignature(w, v)
	case []CLICachedPackage:
		formatCachedText(w, v)
	case CLICacheClear:
		fmt.Fprintf(w, "Removed %d cached package(s)\n", len(v.Removed))
		for _, p := range v.Removed {
			fmt.Fprintf(w, "  %s@%s\n", p.Name, p.Version)
		}
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// writeResult writes a CLIResult to w in the given format.
func writeResult(w io.Writer, format string, r *renderer, result CLIResult) error {
	if format == "text" {
		return writeResultText(w, r, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, flagFormat, newRenderer(cfg.ASCII, cfg.NoColor), result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"text", "json"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
