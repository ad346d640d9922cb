package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/nodetree/internal/graph"
)

func resolveFiles(t *testing.T, files map[string]string) *Resolution {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	g, err := graph.Build(context.Background(), root)
	require.NoError(t, err)
	res, err := Resolve(context.Background(), g)
	require.NoError(t, err)
	return res
}

func names(exports []Export) []string {
	var out []string
	for _, e := range exports {
		out = append(out, e.Name)
	}
	return out
}

func TestResolve_ReExportChain(t *testing.T) {
	t.Parallel()
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("length %d", n), func(t *testing.T) {
			t.Parallel()
			files := map[string]string{
				"m0.ts": "export function target(a: string): void {}",
			}
			for i := 1; i <= n; i++ {
				files[fmt.Sprintf("m%d.ts", i)] = fmt.Sprintf("export { target } from './m%d';", i-1)
			}
			res := resolveFiles(t, files)

			sym, ok := res.Lookup(fmt.Sprintf("m%d.ts", n), "target")
			require.True(t, ok)
			assert.Equal(t, "m0.ts", sym.ModulePath)
			assert.Equal(t, "target", sym.Name)
			assert.Equal(t, graph.Function, sym.Kind)
			require.NotNil(t, sym.Decl)
			assert.Empty(t, res.Cycles())
		})
	}
}

func TestResolve_AliasedReExport(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"impl.ts":  "class Impl {}\nexport { Impl as Public };",
		"index.ts": "export { Public as Renamed } from './impl';",
	})

	sym, ok := res.Lookup("index.ts", "Renamed")
	require.True(t, ok)
	assert.Equal(t, "impl.ts", sym.ModulePath)
	assert.Equal(t, "Impl", sym.Name)
	assert.Equal(t, graph.Class, sym.Kind)
}

func TestResolve_Cycle(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"a.ts": "export { x } from './b';\nexport const ok = 1;",
		"b.ts": "export { x } from './a';",
		"c.ts": "export { x } from './a';",
	})

	for _, mod := range []string{"a.ts", "b.ts", "c.ts"} {
		_, ok := res.Lookup(mod, "x")
		assert.False(t, ok, mod)
		unresolved := res.Unresolved(mod)
		require.Len(t, unresolved, 1, mod)
		assert.Equal(t, CyclicReExport, unresolved[0].Reason, mod)
	}

	_, ok := res.Lookup("a.ts", "ok")
	assert.True(t, ok)

	require.Len(t, res.Cycles(), 1)
	assert.ElementsMatch(t, []Key{{Module: "a.ts", Name: "x"}, {Module: "b.ts", Name: "x"}}, res.Cycles()[0])
}

func TestResolve_SelfCycle(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"a.ts": "export { x } from './a';",
	})

	require.Len(t, res.Unresolved("a.ts"), 1)
	assert.Equal(t, CyclicReExport, res.Unresolved("a.ts")[0].Reason)
	require.Len(t, res.Cycles(), 1)
	assert.Equal(t, []Key{{Module: "a.ts", Name: "x"}}, res.Cycles()[0])
}

func TestResolve_ExplicitShadowsWildcard(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"a.ts": "export * from './b';\nexport function foo() {}",
		"b.ts": "export function foo(x: number) {}\nexport function bar() {}",
	})

	assert.Equal(t, []string{"foo", "bar"}, names(res.Exports("a.ts")))
	sym, ok := res.Lookup("a.ts", "foo")
	require.True(t, ok)
	assert.Equal(t, "a.ts", sym.ModulePath)

	sym, ok = res.Lookup("a.ts", "bar")
	require.True(t, ok)
	assert.Equal(t, "b.ts", sym.ModulePath)
}

func TestResolve_FirstWildcardWins(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"a.ts": "export * from './c';\nexport * from './b';",
		"b.ts": "export const foo = 1;\nexport const onlyB = 1;",
		"c.ts": "export const foo = 2;",
	})

	sym, ok := res.Lookup("a.ts", "foo")
	require.True(t, ok)
	assert.Equal(t, "c.ts", sym.ModulePath)
	assert.Equal(t, []string{"foo", "onlyB"}, names(res.Exports("a.ts")))
}

func TestResolve_WildcardSkipsDefault(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"a.ts": "export * from './b';",
		"b.ts": "export default function main() {}\nexport const named = 1;",
	})

	assert.Equal(t, []string{"named"}, names(res.Exports("a.ts")))
	_, ok := res.Lookup("a.ts", "default")
	assert.False(t, ok)
}

func TestResolve_Unresolved(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"a.ts": `export { x } from 'lodash';
export * from 'react';
export { nope } from './b';
export { ghost };
export const fine = 1;`,
		"b.ts": "export const other = 1;",
	})

	assert.Equal(t, []string{"fine"}, names(res.Exports("a.ts")))

	byName := map[string]Unresolved{}
	for _, u := range res.Unresolved("a.ts") {
		byName[u.Name] = u
	}
	require.Len(t, byName, 4)
	for _, n := range []string{"x", "nope", "ghost", "*"} {
		assert.Equal(t, UnresolvedImport, byName[n].Reason, n)
	}
	assert.Contains(t, byName["x"].Detail, "lodash")
	assert.Contains(t, byName["nope"].Detail, "does not export")
	assert.Contains(t, byName["ghost"].Detail, "no local declaration")
	assert.Contains(t, byName["*"].Detail, "react")
	assert.Contains(t, byName["nope"].Error(), "unresolved import")
}

func TestResolve_WildcardCycleIsLegal(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"a.ts": "export * from './b';\nexport const a = 1;",
		"b.ts": "export * from './a';\nexport const b = 1;",
	})

	assert.Equal(t, []string{"a", "b"}, names(res.Exports("a.ts")))
	assert.Equal(t, []string{"b", "a"}, names(res.Exports("b.ts")))
	assert.Empty(t, res.Unresolved("a.ts"))
	assert.Empty(t, res.Unresolved("b.ts"))
	assert.Empty(t, res.Cycles())

	sym, ok := res.Lookup("b.ts", "a")
	require.True(t, ok)
	assert.Equal(t, "a.ts", sym.ModulePath)
}

func TestResolve_NamedHopIntoWildcardCycle(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"a.ts": "export { z } from './b';",
		"b.ts": "export * from './a';",
	})

	for _, mod := range []string{"a.ts", "b.ts"} {
		_, ok := res.Lookup(mod, "z")
		assert.False(t, ok, mod)
		unresolved := res.Unresolved(mod)
		require.Len(t, unresolved, 1, mod)
		assert.Equal(t, CyclicReExport, unresolved[0].Reason, mod)
	}
	require.Len(t, res.Cycles(), 1)
	assert.ElementsMatch(t, []Key{{Module: "a.ts", Name: "z"}, {Module: "b.ts", Name: "z"}}, res.Cycles()[0])

	t.Run("another source breaks the cycle", func(t *testing.T) {
		t.Parallel()
		res := resolveFiles(t, map[string]string{
			"a.ts": "export { z } from './b';",
			"b.ts": "export * from './a';\nexport * from './c';",
			"c.ts": "export const z = 1;",
		})

		for _, mod := range []string{"a.ts", "b.ts"} {
			sym, ok := res.Lookup(mod, "z")
			require.True(t, ok, mod)
			assert.Equal(t, "c.ts", sym.ModulePath, mod)
			assert.Empty(t, res.Unresolved(mod), mod)
		}
		assert.Empty(t, res.Cycles())
	})
}

func TestResolve_WildcardClusterIsLinear(t *testing.T) {
	t.Parallel()
	const n = 14
	files := map[string]string{
		"t.ts": "export { x } from 'lodash';",
	}
	for i := 0; i < n; i++ {
		var src strings.Builder
		for j := 0; j < n; j++ {
			if j != i {
				fmt.Fprintf(&src, "export * from './m%02d';\n", j)
			}
		}
		src.WriteString("export * from './t';\n")
		fmt.Fprintf(&src, "export const own%02d = %d;\n", i, i)
		files[fmt.Sprintf("m%02d.ts", i)] = src.String()
	}

	start := time.Now()
	res := resolveFiles(t, files)
	assert.Less(t, time.Since(start), 5*time.Second)

	for i := 0; i < n; i++ {
		mod := fmt.Sprintf("m%02d.ts", i)
		exports := res.Exports(mod)
		require.Len(t, exports, n, mod)
		assert.Equal(t, fmt.Sprintf("own%02d", i), exports[0].Name, mod)

		sym, ok := res.Lookup(mod, fmt.Sprintf("own%02d", (i+1)%n))
		require.True(t, ok, mod)
		assert.Equal(t, fmt.Sprintf("m%02d.ts", (i+1)%n), sym.ModulePath)

		unresolved := res.Unresolved(mod)
		require.Len(t, unresolved, 1, mod)
		assert.Equal(t, "x", unresolved[0].Name)
		assert.Equal(t, UnresolvedImport, unresolved[0].Reason)
	}
	assert.Empty(t, res.Cycles())
}

func TestResolve_NestedWildcardOrder(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"index.ts":  "export * from './a';\nexport * from './b';\nexport const own = 1;",
		"a.ts":      "export * from './deep/x';\nexport const a1 = 1;",
		"deep/x.ts": "export const x1 = 1;",
		"b.ts":      "export const b1 = 1;\nexport const x1 = 2;",
	})

	assert.Equal(t, []string{"own", "a1", "x1", "b1"}, names(res.Exports("index.ts")))
	sym, _ := res.Lookup("index.ts", "x1")
	assert.Equal(t, "deep/x.ts", sym.ModulePath)
}

func TestResolve_Namespace(t *testing.T) {
	t.Parallel()
	res := resolveFiles(t, map[string]string{
		"index.ts": "export * as utils from './utils';\nimport * as h from './utils';\nexport { h };",
		"utils.ts": "export const u = 1;",
	})

	sym, ok := res.Lookup("index.ts", "utils")
	require.True(t, ok)
	assert.Equal(t, graph.Namespace, sym.Kind)
	assert.Equal(t, "utils.ts", sym.Target)

	sym, ok = res.Lookup("index.ts", "h")
	require.True(t, ok)
	assert.Equal(t, graph.Namespace, sym.Kind)
}

func TestResolve_Cancelled(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.ts"), []byte("export const a = 1;"), 0o644))
	g, err := graph.Build(context.Background(), root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Resolve(ctx, g)
	require.ErrorIs(t, err, graph.ErrCancelled)
}
