package graph

import (
	"path"
	"sort"
	"strings"

	"github.com/jward/nodetree/internal/syntax"
)

// dirIndex groups module paths by directory and by stem so that children can
// be derived from the package layout.
type dirIndex struct {
	files   map[string][]string // dir -> modules directly inside
	subdirs map[string][]string // dir -> immediate subdirectories holding modules
}

func newDirIndex(paths []string) *dirIndex {
	d := &dirIndex{
		files:   make(map[string][]string),
		subdirs: make(map[string][]string),
	}
	seenDir := map[string]bool{"": true}
	for _, p := range paths {
		dir := dirOf(p)
		d.files[dir] = append(d.files[dir], p)
		for dir != "" && !seenDir[dir] {
			seenDir[dir] = true
			parent := dirOf(dir)
			d.subdirs[parent] = append(d.subdirs[parent], dir)
			dir = parent
		}
	}
	for _, list := range d.files {
		sort.Strings(list)
	}
	for _, list := range d.subdirs {
		sort.Strings(list)
	}
	return d
}

func (d *dirIndex) isDir(dir string) bool {
	if dir == "" {
		return len(d.files[""]) > 0 || len(d.subdirs[""]) > 0
	}
	for _, sd := range d.subdirs[dirOf(dir)] {
		if sd == dir {
			return true
		}
	}
	return false
}

// stemGroup is the set of files in one directory that share a stem, such as
// router.js and router.d.ts.
type stemGroup struct {
	stem string
	rep  string
}

// stems returns the stem groups of dir sorted by stem. The representative of
// a group is the file whose extension ranks first in syntax.Extensions.
func (d *dirIndex) stems(dir string) []stemGroup {
	byStem := make(map[string]string)
	for _, p := range d.files[dir] {
		stem := stemOf(p)
		if cur, ok := byStem[stem]; !ok || extRank(p) < extRank(cur) {
			byStem[stem] = p
		}
	}
	out := make([]stemGroup, 0, len(byStem))
	for stem, rep := range byStem {
		out = append(out, stemGroup{stem: stem, rep: rep})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].stem < out[j].stem })
	return out
}

// index returns the preferred index module of dir, or "".
func (d *dirIndex) index(dir string) string {
	for _, g := range d.stems(dir) {
		if g.stem == "index" {
			return g.rep
		}
	}
	return ""
}

// entries expands a directory into the modules that represent it: its index
// module, or its promoted contents when it has none.
func (d *dirIndex) entries(dir string) []string {
	if idx := d.index(dir); idx != "" {
		return []string{idx}
	}
	return d.contents(dir, "")
}

// contents lists the direct submodules of dir: one representative per stem
// (skipping index and exclude) plus the entries of each subdirectory that is
// not owned by a same-named file.
func (d *dirIndex) contents(dir, exclude string) []string {
	groups := d.stems(dir)
	owned := make(map[string]bool, len(groups))
	var out []string
	for _, g := range groups {
		owned[g.stem] = true
		if g.stem == "index" || g.stem == exclude {
			continue
		}
		out = append(out, g.rep)
	}
	for _, sd := range d.subdirs[dir] {
		if owned[path.Base(sd)] {
			continue
		}
		out = append(out, d.entries(sd)...)
	}
	sort.Strings(out)
	return out
}

// childrenOf derives the directory submodules of mod.
func (d *dirIndex) childrenOf(mod string, isEntry bool) []string {
	dir := dirOf(mod)
	stem := stemOf(mod)
	if stem == "index" {
		return d.contents(dir, "index")
	}
	if sub := path.Join(dir, stem); d.isDir(sub) {
		return d.entries(sub)
	}
	if isEntry {
		return d.contents(dir, stem)
	}
	return nil
}

func dirOf(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

func stemOf(p string) string {
	return path.Base(syntax.StripExt(p))
}

func extRank(p string) int {
	ext := strings.ToLower(p[len(syntax.StripExt(p)):])
	for i, e := range syntax.Extensions {
		if e == ext {
			return i
		}
	}
	return len(syntax.Extensions)
}
