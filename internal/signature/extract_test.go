package signature

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/nodetree/internal/graph"
	"github.com/jward/nodetree/internal/resolve"
)

type fixture struct {
	res *resolve.Resolution
	ext *Extractor
}

func newFixture(t *testing.T, reg *Registry, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	g, err := graph.Build(context.Background(), root)
	require.NoError(t, err)
	res, err := resolve.Resolve(context.Background(), g)
	require.NoError(t, err)
	return &fixture{res: res, ext: NewExtractor(reg)}
}

func (f *fixture) symbol(t *testing.T, mod, name string) (*graph.ModuleNode, resolve.CanonicalSymbol) {
	t.Helper()
	sym, ok := f.res.Lookup(mod, name)
	require.True(t, ok, "%s not exported from %s", name, mod)
	return f.res.Graph().Module(sym.ModulePath), sym
}

func (f *fixture) extract(t *testing.T, mod, name string) (*Signature, error) {
	t.Helper()
	m, sym := f.symbol(t, mod, name)
	return f.ext.Extract(m, sym)
}

func TestExtract_Function(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, map[string]string{
		"index.ts": "export function f(a: string, b?: number, c = 3, ...rest: string[]): boolean { return true }",
	})

	sig, err := f.extract(t, "index.ts", "f")
	require.NoError(t, err)
	assert.Equal(t, "boolean", sig.ReturnType)
	assert.False(t, sig.IsConstructor)
	assert.Empty(t, sig.UnwrapPattern)
	assert.Equal(t, []Parameter{
		{Name: "a", TypeText: "string"},
		{Name: "b", TypeText: "number", Optional: true},
		{Name: "c", Optional: true, HasDefault: true, Default: "3"},
		{Name: "rest", TypeText: "string[]", IsRest: true},
	}, sig.Parameters)
}

func TestExtract_Wrappers(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, map[string]string{
		"index.ts": `import { flow as f } from 'lib';
import * as lib from 'lib';
import { task } from 'lib';

function impl(id: string): void {}

export const viaFlow = flow(function (x: number): void {});
export const viaTask = task({ id: 'send', run: async (input: Input): Promise<void> => {} });
export const viaAlias = f((a: string) => a);
export const viaNamespace = lib.flow((b: number) => b);
export const viaRef = flow(impl);
export const nested = flow(task({ run: (n: number) => n }));
export const opaque = wrap(function (x: number) {});
export const noRun = task({ id: 'x' });
export const notCallable = flow(42);`,
	})

	tests := []struct {
		name    string
		pattern string
		params  []string
	}{
		{"viaFlow", "flow", []string{"x"}},
		{"viaTask", "task", []string{"input"}},
		{"viaAlias", "flow", []string{"a"}},
		{"viaNamespace", "flow", []string{"b"}},
		{"viaRef", "flow", []string{"id"}},
		{"nested", "flow", []string{"n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := f.extract(t, "index.ts", tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.pattern, sig.UnwrapPattern)
			var names []string
			for _, p := range sig.Parameters {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.params, names)
		})
	}

	for _, name := range []string{"opaque", "noRun", "notCallable"} {
		t.Run(name, func(t *testing.T) {
			_, err := f.extract(t, "index.ts", name)
			require.ErrorIs(t, err, ErrNoSignature)
		})
	}

	sig, err := f.extract(t, "index.ts", "viaTask")
	require.NoError(t, err)
	assert.Equal(t, "Promise<void>", sig.ReturnType)
	assert.Equal(t, "Input", sig.Parameters[0].TypeText)
}

func TestExtract_CustomRule(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"index.ts": "export const m = memoize(cacheKey, (a: string, b: string) => a + b);",
	}

	f := newFixture(t, nil, files)
	_, err := f.extract(t, "index.ts", "m")
	require.ErrorIs(t, err, ErrNoSignature)

	reg := DefaultRegistry()
	reg.Register("memoize", ArgPosition{Index: 1})
	f = newFixture(t, reg, files)
	sig, err := f.extract(t, "index.ts", "m")
	require.NoError(t, err)
	assert.Equal(t, "memoize", sig.UnwrapPattern)
	assert.Len(t, sig.Parameters, 2)
}

func TestExtract_Class(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, map[string]string{
		"index.ts": `export class Client {
  #secret = 1;
  constructor(url: string, opts?: Options) {}
  request(path: string): Promise<Response> { return fetch(path) }
  private retry(n: number) {}
  #hidden() {}
  static create(): Client { return new Client('') }
  handle = (event: Event): void => {}
}
export class Empty {}`,
	})

	sig, err := f.extract(t, "index.ts", "Client")
	require.NoError(t, err)
	assert.True(t, sig.IsConstructor)
	assert.Empty(t, sig.ReturnType)
	require.Len(t, sig.Parameters, 2)
	assert.True(t, sig.Parameters[1].Optional)

	sig, err = f.extract(t, "index.ts", "Empty")
	require.NoError(t, err)
	assert.True(t, sig.IsConstructor)
	assert.Empty(t, sig.Parameters)

	m, sym := f.symbol(t, "index.ts", "Client")
	methods := f.ext.Methods(m, sym)
	var names []string
	for _, meth := range methods {
		names = append(names, meth.Name)
	}
	assert.Equal(t, []string{"request", "create", "handle"}, names)

	req, ok := f.ext.Method(m, sym, "request")
	require.True(t, ok)
	assert.Equal(t, "Promise<Response>", req.Signature.ReturnType)

	create, ok := f.ext.Method(m, sym, "create")
	require.True(t, ok)
	assert.True(t, create.Static)

	_, ok = f.ext.Method(m, sym, "retry")
	assert.False(t, ok)
}

func TestExtract_Constants(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, map[string]string{
		"index.ts": `function real(a: number, b: number): number { return a + b }
export const typed: (name: string) => void = load();
export const alias = real;
export const plain = 42;
export type Shape = { x: number };`,
	})

	sig, err := f.extract(t, "index.ts", "typed")
	require.NoError(t, err)
	assert.Equal(t, "void", sig.ReturnType)
	require.Len(t, sig.Parameters, 1)
	assert.Equal(t, "name", sig.Parameters[0].Name)

	sig, err = f.extract(t, "index.ts", "alias")
	require.NoError(t, err)
	assert.Len(t, sig.Parameters, 2)
	assert.Equal(t, "number", sig.ReturnType)

	for _, name := range []string{"plain", "Shape"} {
		_, err = f.extract(t, "index.ts", name)
		assert.ErrorIs(t, err, ErrNoSignature, name)
	}
}

func TestExtract_Overloads(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, map[string]string{
		"index.d.ts": `export declare function pick(key: string): string;
export declare function pick(key: string, fallback: string): string;`,
		"impl.ts": `export function parse(input: string): number;
export function parse(input: Buffer): number;
export function parse(input: string | Buffer, radix = 10): number { return 0 }`,
	})

	sig, err := f.extract(t, "index.d.ts", "pick")
	require.NoError(t, err)
	assert.Len(t, sig.Parameters, 1)

	sig, err = f.extract(t, "impl.ts", "parse")
	require.NoError(t, err)
	require.Len(t, sig.Parameters, 2)
	assert.Equal(t, "string | Buffer", sig.Parameters[0].TypeText)
	assert.True(t, sig.Parameters[1].HasDefault)
	assert.Equal(t, 2, sig.Overloads)
}

func TestExtract_ReExportedWrapper(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, map[string]string{
		"index.ts": "export { handler as main } from './handler';",
		"handler.ts": `import { flow } from '@acme/workflows';
export const handler = flow(async (event: Event, ctx: Context): Promise<void> => {});`,
	})

	sig, err := f.extract(t, "index.ts", "main")
	require.NoError(t, err)
	assert.Equal(t, "flow", sig.UnwrapPattern)
	assert.Len(t, sig.Parameters, 2)
}

func TestExtract_Modifiers(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, map[string]string{
		"index.ts": `export async function load(url: string, retries = 3): Promise<string> { return url }
export function* ids(start: number): Generator<number> { yield start }
export const run = flow(async (event: Event) => {});
export abstract class Base {}
export class Worker extends Base {
  async poll(): Promise<void> {}
}`,
		"types.d.ts": `export declare function parse(input: string): number;
export declare function parse(input: Buffer): number;`,
	})

	sig, err := f.extract(t, "index.ts", "load")
	require.NoError(t, err)
	assert.True(t, sig.IsAsync)
	assert.False(t, sig.IsGenerator)
	assert.False(t, sig.Ambient)
	assert.Zero(t, sig.Overloads)
	assert.Equal(t, "3", sig.Parameters[1].Default)

	sig, err = f.extract(t, "index.ts", "ids")
	require.NoError(t, err)
	assert.True(t, sig.IsGenerator)
	assert.False(t, sig.IsAsync)

	sig, err = f.extract(t, "index.ts", "run")
	require.NoError(t, err)
	assert.True(t, sig.IsAsync)
	assert.Equal(t, "flow", sig.UnwrapPattern)

	_, sym := f.symbol(t, "index.ts", "Worker")
	extends, abstract := f.ext.Heritage(sym)
	assert.Equal(t, "Base", extends)
	assert.False(t, abstract)

	_, sym = f.symbol(t, "index.ts", "Base")
	extends, abstract = f.ext.Heritage(sym)
	assert.Empty(t, extends)
	assert.True(t, abstract)

	m, sym := f.symbol(t, "index.ts", "Worker")
	poll, ok := f.ext.Method(m, sym, "poll")
	require.True(t, ok)
	assert.True(t, poll.Signature.IsAsync)

	sig, err = f.extract(t, "types.d.ts", "parse")
	require.NoError(t, err)
	assert.Equal(t, 2, sig.Overloads)
	assert.True(t, sig.Ambient)
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := DefaultRegistry()
	assert.Equal(t, []string{"flow", "task"}, reg.Names())

	rule, ok := reg.Lookup("task")
	require.True(t, ok)
	assert.Equal(t, OptionsField{Field: "run"}, rule)
	assert.Equal(t, `field "run"`, rule.String())

	reg.Register("flow", ArgPosition{Index: 2})
	rule, _ = reg.Lookup("flow")
	assert.Equal(t, "arg 2", rule.String())

	assert.Empty(t, NewRegistry().Names())
}
