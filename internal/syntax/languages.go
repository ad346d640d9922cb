package syntax

import (
	"path"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// FileKind classifies a source file the way the module loader treats it.
type FileKind int

const (
	// Script is a CommonJS or classic script file.
	Script FileKind = iota
	// Module is an ES module.
	Module
	// Declaration is a type-only declaration file (.d.ts).
	Declaration
)

func (k FileKind) String() string {
	switch k {
	case Script:
		return "script"
	case Module:
		return "module"
	case Declaration:
		return "declaration"
	}
	return "unknown"
}

// extToGrammar maps file extensions to grammar names. Declaration files are
// matched before this table is consulted.
var extToGrammar = map[string]string{
	".ts":  "typescript",
	".mts": "typescript",
	".cts": "typescript",
	".tsx": "tsx",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
}

// declarationSuffixes are the extensions of type-only files.
var declarationSuffixes = []string{".d.ts", ".d.mts", ".d.cts"}

// Extensions lists source extensions in resolution preference order.
var Extensions = []string{".ts", ".tsx", ".d.ts", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

// Lazily initialized on first call via sync.Once.
var (
	grammars     map[string]*sitter.Language
	grammarsOnce sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		grammars = map[string]*sitter.Language{
			"typescript": ts.GetLanguage(),
			"tsx":        tsx.GetLanguage(),
			"javascript": javascript.GetLanguage(),
		}
	})
}

// IsDeclarationFile reports whether p names a .d.ts style file.
func IsDeclarationFile(p string) bool {
	lower := strings.ToLower(p)
	for _, suf := range declarationSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

// IsSource reports whether p has an extension the adapter can parse.
func IsSource(p string) bool {
	_, ok := GrammarForFile(p)
	return ok
}

// GrammarForFile returns the grammar name for a file path based on its
// extension. Returns ("", false) if the extension is not recognized.
func GrammarForFile(p string) (string, bool) {
	if IsDeclarationFile(p) {
		return "typescript", true
	}
	g, ok := extToGrammar[strings.ToLower(path.Ext(p))]
	return g, ok
}

// KindForPath guesses the FileKind from the path alone. Plain .js files start
// as Script and are promoted to Module once an import or export statement is
// seen during lowering.
func KindForPath(p string) FileKind {
	if IsDeclarationFile(p) {
		return Declaration
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".cjs", ".jsx":
		return Script
	}
	return Module
}

// StripExt removes a source extension, including compound declaration
// suffixes, from p.
func StripExt(p string) string {
	lower := strings.ToLower(p)
	for _, suf := range declarationSuffixes {
		if strings.HasSuffix(lower, suf) {
			return p[:len(p)-len(suf)]
		}
	}
	if _, ok := extToGrammar[strings.ToLower(path.Ext(p))]; ok {
		return strings.TrimSuffix(p, path.Ext(p))
	}
	return p
}

func grammarFor(name string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := grammars[name]
	return l, ok
}
