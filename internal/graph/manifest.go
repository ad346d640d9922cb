package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Manifest is the subset of package.json the builder reads.
type Manifest struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Main    string          `json:"main"`
	Module  string          `json:"module"`
	Types   string          `json:"types"`
	Typings string          `json:"typings"`
	Exports json.RawMessage `json:"exports"`
}

// exportConditions are tried in order when an exports entry is a
// conditional object.
var exportConditions = []string{"types", "import", "default", "require", "node", "module", "browser"}

// ParseManifest decodes package.json text.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}
	return &m, nil
}

// loadManifest reads root/package.json. A missing manifest yields an empty
// one.
func loadManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return &Manifest{}, fmt.Errorf("read package.json: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return &Manifest{}, err
	}
	return m, nil
}

// EntryCandidates returns manifest-declared entry paths in priority order:
// exports["."], types/typings, module, main.
func (m *Manifest) EntryCandidates() []string {
	var out []string
	if root, ok := m.exportsMap()["."]; ok {
		out = append(out, root...)
	}
	for _, p := range []string{m.Types, m.Typings, m.Module, m.Main} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SubpathTargets returns the non-root, non-pattern export subpaths mapped
// to their candidate files, keyed without the leading "./".
func (m *Manifest) SubpathTargets() map[string][]string {
	out := make(map[string][]string)
	for key, targets := range m.exportsMap() {
		if key == "." || strings.Contains(key, "*") {
			continue
		}
		out[strings.TrimPrefix(key, "./")] = targets
	}
	return out
}

// exportsMap normalizes the exports field into subpath -> candidate files.
func (m *Manifest) exportsMap() map[string][]string {
	out := make(map[string][]string)
	if len(m.Exports) == 0 {
		return out
	}
	var raw any
	if err := json.Unmarshal(m.Exports, &raw); err != nil {
		return out
	}
	switch v := raw.(type) {
	case string, []any:
		out["."] = conditionTargets(v)
	case map[string]any:
		subpaths := false
		for key := range v {
			if strings.HasPrefix(key, ".") {
				subpaths = true
				break
			}
		}
		if !subpaths {
			out["."] = conditionTargets(v)
			return out
		}
		for key, val := range v {
			if strings.HasPrefix(key, ".") {
				out[key] = conditionTargets(val)
			}
		}
	}
	return out
}

// conditionTargets flattens a conditional exports value into candidate
// files, most preferred first.
func conditionTargets(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, conditionTargets(item)...)
		}
		return out
	case map[string]any:
		var out []string
		seen := make(map[string]bool)
		for _, cond := range exportConditions {
			if sub, ok := val[cond]; ok {
				out = append(out, conditionTargets(sub)...)
				seen[cond] = true
			}
		}
		var rest []string
		for cond := range val {
			if !seen[cond] {
				rest = append(rest, cond)
			}
		}
		sort.Strings(rest)
		for _, cond := range rest {
			out = append(out, conditionTargets(val[cond])...)
		}
		return out
	}
	return nil
}

// cleanManifestPath turns "./lib/index.js" into "lib/index.js". Paths that
// escape the package root return "".
func cleanManifestPath(p string) string {
	p = path.Clean(strings.TrimPrefix(filepath.ToSlash(p), "./"))
	if p == "." || strings.HasPrefix(p, "../") || p == ".." || strings.HasPrefix(p, "/") {
		return ""
	}
	return p
}
