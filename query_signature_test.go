package nodetree

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findSignature(t *testing.T, e *Engine, pkg *Package, qualifier string) (*SignatureResult, error) {
	t.Helper()
	q, err := ParseQualifier(qualifier)
	require.NoError(t, err)
	return e.FindSignature(context.Background(), pkg, q)
}

func paramNames(sig *Signature) []string {
	var out []string
	for _, p := range sig.Parameters {
		out = append(out, p.Name)
	}
	return out
}

func TestFindSignature_BreadthFirst(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"package.json":  `{"name": "bfs"}`,
		"index.ts":      "export const x = 1;",
		"alpha.ts":      "export const other = 1;",
		"alpha/deep.ts": "export function helper(deep: string) {}",
		"beta.ts":       "export function helper(beta: boolean) {}",
		"zeta.ts":       "export function helper(zeta: number) {}",
	}

	e, pkg := loadPackage(t, files)
	res, err := findSignature(t, e, pkg, "bfs:helper")
	require.NoError(t, err)
	assert.Equal(t, "beta.ts", res.FoundIn)
	assert.Equal(t, []string{"beta"}, paramNames(res.Signature))

	// Shallower modules win over alphabetically earlier deeper ones.
	delete(files, "beta.ts")
	e, pkg = loadPackage(t, files)
	res, err = findSignature(t, e, pkg, "bfs:helper")
	require.NoError(t, err)
	assert.Equal(t, "zeta.ts", res.FoundIn)

	// The start module is checked before any submodule.
	files["index.ts"] = "export { helper } from './alpha/deep';"
	e, pkg = loadPackage(t, files)
	res, err = findSignature(t, e, pkg, "bfs:helper")
	require.NoError(t, err)
	assert.Equal(t, "index.ts", res.FoundIn)
	assert.Equal(t, "alpha/deep.ts", res.ModulePath)
	assert.Equal(t, []string{"deep"}, paramNames(res.Signature))
}

func TestFindSignature_PathHint(t *testing.T) {
	t.Parallel()
	e, pkg := loadPackage(t, map[string]string{
		"package.json":     `{"name": "hints", "exports": {".": "./index.js", "./plugins": "./lib/plugins.js"}}`,
		"index.js":         "export function setup() {}",
		"lib/plugins.js":   "export function register(name, opts) {}",
		"lib/plugins/a.js": "export function setup(a) {}",
		"tools/x.js":       "export function setup(x, y) {}",
	})

	res, err := findSignature(t, e, pkg, "hints/plugins:register")
	require.NoError(t, err)
	assert.Equal(t, "lib/plugins.js", res.FoundIn)
	assert.Equal(t, []string{"name", "opts"}, paramNames(res.Signature))

	res, err = findSignature(t, e, pkg, "hints/plugins:setup")
	require.NoError(t, err)
	assert.Equal(t, "lib/plugins/a.js", res.FoundIn)

	res, err = findSignature(t, e, pkg, "hints/tools:setup")
	require.NoError(t, err)
	assert.Equal(t, "tools/x.js", res.FoundIn)

	res, err = findSignature(t, e, pkg, "hints/lib/plugins/a.js:setup")
	require.NoError(t, err)
	assert.Equal(t, "lib/plugins/a.js", res.FoundIn)

	_, err = findSignature(t, e, pkg, "hints/missing:setup")
	require.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestFindSignature_Kinds(t *testing.T) {
	t.Parallel()
	e, pkg := loadPackage(t, map[string]string{
		"index.ts": `export class Router {
  constructor(options?: RouterOptions) {}
  route(path: string, handler: Handler): this { return this }
  private match(path: string) {}
}
export const DEFAULT_PORT = 8080;
export interface RouterOptions { strict: boolean }`,
	})

	res, err := findSignature(t, e, pkg, "demo:Router")
	require.NoError(t, err)
	assert.Equal(t, "class", res.Kind)
	require.Len(t, res.Methods, 1)
	assert.Equal(t, "route", res.Methods[0].Name)

	res, err = findSignature(t, e, pkg, "demo:Router.route")
	require.NoError(t, err)
	assert.Equal(t, "method", res.Kind)
	assert.Equal(t, []string{"path", "handler"}, paramNames(res.Signature))
	assert.Equal(t, "this", res.Signature.ReturnType)

	_, err = findSignature(t, e, pkg, "demo:Router.match")
	require.ErrorIs(t, err, ErrSymbolNotFound)

	res, err = findSignature(t, e, pkg, "demo:DEFAULT_PORT")
	require.NoError(t, err)
	assert.Equal(t, "constant", res.Kind)
	assert.Nil(t, res.Signature)

	res, err = findSignature(t, e, pkg, "demo:RouterOptions")
	require.NoError(t, err)
	assert.Equal(t, "type", res.Kind)
	assert.Nil(t, res.Signature)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"signature":null`)
}

func TestFindSignature_Wrapped(t *testing.T) {
	t.Parallel()
	e, pkg := loadPackage(t, map[string]string{
		"package.json": `{"name": "jobs"}`,
		"index.ts":     "export * from './jobs/send';",
		"jobs/send.ts": `import { task } from '@acme/workflows';
export const sendEmail = task({ id: 'send-email', run: async (to: string, body?: string): Promise<void> => {} });`,
	})

	res, err := findSignature(t, e, pkg, "jobs:sendEmail")
	require.NoError(t, err)
	assert.Equal(t, "function", res.Kind)
	assert.Equal(t, "index.ts", res.FoundIn)
	assert.Equal(t, "jobs/send.ts", res.ModulePath)
	assert.Equal(t, "task", res.Signature.UnwrapPattern)
	assert.Equal(t, "Promise<void>", res.Signature.ReturnType)
	require.Len(t, res.Signature.Parameters, 2)
	assert.True(t, res.Signature.Parameters[1].Optional)
}

func TestFindSignature_ClassHeritage(t *testing.T) {
	t.Parallel()
	e, pkg := loadPackage(t, map[string]string{
		"package.json": `{"name": "shapes"}`,
		"index.ts": `export abstract class Shape {
  abstract area(): number;
}
export class Square extends Shape {
  constructor(side: number, unit = 'cm') { super() }
  area(): number { return 0 }
}`,
	})

	res, err := findSignature(t, e, pkg, "shapes:Shape")
	require.NoError(t, err)
	assert.True(t, res.Abstract)
	assert.Empty(t, res.Extends)

	res, err = findSignature(t, e, pkg, "shapes:Square")
	require.NoError(t, err)
	assert.False(t, res.Abstract)
	assert.Equal(t, "Shape", res.Extends)
	require.Len(t, res.Signature.Parameters, 2)
	assert.Equal(t, "'cm'", res.Signature.Parameters[1].Default)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"extends":"Shape"`)
	assert.Contains(t, string(data), `"default":"'cm'"`)
}

func TestFindSignature_ExtractsOncePerDeclaration(t *testing.T) {
	t.Parallel()
	e, pkg := loadPackage(t, map[string]string{
		"package.json": `{"name": "jobs"}`,
		"index.ts":     "export * from './jobs';",
		"jobs.ts":      "export const run = flow((id: string) => id);",
	})

	tree, err := e.Explore(context.Background(), pkg, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"run"}, tree.Functions)

	first, err := findSignature(t, e, pkg, "jobs:run")
	require.NoError(t, err)
	second, err := findSignature(t, e, pkg, "jobs:run")
	require.NoError(t, err)
	assert.Same(t, first.Signature, second.Signature)

	// A different registry extracts again.
	other := New(WithRegistry(NewRegistry()))
	res, err := findSignature(t, other, pkg, "jobs:run")
	require.NoError(t, err)
	assert.Nil(t, res.Signature)
	assert.Equal(t, "constant", res.Kind)
}

func TestFindSignature_NotFound(t *testing.T) {
	t.Parallel()
	e, pkg := loadPackage(t, demoPackage)

	_, err := findSignature(t, e, pkg, "demo:Nope")
	require.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestFindSignature_Cancelled(t *testing.T) {
	t.Parallel()
	e, pkg := loadPackage(t, demoPackage)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.FindSignature(ctx, pkg, Qualifier{PackageRef: PackageRef{Name: "demo"}, Symbol: "Router"})
	require.ErrorIs(t, err, ErrCancelled)
}
