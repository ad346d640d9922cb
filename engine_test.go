package nodetree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePackage writes files under a fresh temp directory and returns it.
func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func loadPackage(t *testing.T, files map[string]string, opts ...Option) (*Engine, *Package) {
	t.Helper()
	e := New(opts...)
	pkg, err := e.Load(context.Background(), writePackage(t, files))
	require.NoError(t, err)
	return e, pkg
}

var demoPackage = map[string]string{
	"package.json": `{"name": "demo", "version": "0.1.0", "types": "index.ts"}`,
	"index.ts":     "export * from './router';\nexport function createApp(): App {}",
	"router.ts":    "export class Router { constructor(options?: RouterOptions) {} }",
}

func TestDemo_EndToEnd(t *testing.T) {
	t.Parallel()
	e, pkg := loadPackage(t, demoPackage)
	ctx := context.Background()

	assert.Equal(t, "demo", pkg.Name)
	assert.Equal(t, "0.1.0", pkg.Version)
	assert.Equal(t, "index.ts", pkg.Entry())

	tree, err := e.Explore(ctx, pkg, -1)
	require.NoError(t, err)
	assert.Equal(t, "index.ts", tree.ModulePath)
	assert.Equal(t, []string{"createApp"}, tree.Functions)
	assert.Equal(t, []string{"Router"}, tree.Classes)
	assert.Empty(t, tree.Constants)
	assert.False(t, tree.Truncated)

	q, err := ParseQualifier("demo:Router")
	require.NoError(t, err)
	res, err := e.FindSignature(ctx, pkg, q)
	require.NoError(t, err)
	assert.Equal(t, "router.ts", res.ModulePath)
	assert.Equal(t, "index.ts", res.FoundIn)
	assert.Equal(t, "class", res.Kind)
	require.NotNil(t, res.Signature)
	assert.True(t, res.Signature.IsConstructor)
	assert.Equal(t, []Parameter{{Name: "options", TypeText: "RouterOptions", Optional: true}}, res.Signature.Parameters)
}

func TestLoad_EmptyPackage(t *testing.T) {
	t.Parallel()
	root := writePackage(t, map[string]string{"README.md": "# nothing here"})
	_, err := New().Load(context.Background(), root)
	require.ErrorIs(t, err, ErrEmptyPackage)
}

func TestLoad_Cancelled(t *testing.T) {
	t.Parallel()
	root := writePackage(t, demoPackage)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Load(ctx, root)
	require.ErrorIs(t, err, ErrCancelled)
}

func TestLoad_NameFromDirectory(t *testing.T) {
	t.Parallel()
	_, pkg := loadPackage(t, map[string]string{"index.js": "exports.a = 1;"})
	assert.NotEmpty(t, pkg.Name)
	assert.Empty(t, pkg.Version)
	assert.Equal(t, "local", pkg.Source)
}

func TestFetch_NoPackageStore(t *testing.T) {
	t.Parallel()
	_, err := New().Fetch(context.Background(), "demo", "")
	require.ErrorIs(t, err, ErrNoPackageStore)
}

func TestWithExclude(t *testing.T) {
	t.Parallel()
	_, pkg := loadPackage(t, map[string]string{
		"index.ts":       "export const a = 1;",
		"generated/x.ts": "export const x = 1;",
		"generated/y.ts": "export const y = 1;",
	}, WithExclude("generated/"))

	assert.Nil(t, pkg.Graph().Module("generated/x.ts"))
	assert.NotNil(t, pkg.Graph().Module("index.ts"))
}

func TestWithRegistry(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"index.ts": "export const cached = memoize((key: string) => key);",
	}

	e, pkg := loadPackage(t, files)
	tree, err := e.Explore(context.Background(), pkg, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"cached"}, tree.Constants)

	reg := NewRegistry()
	reg.Register("memoize", ArgPosition{Index: 0})
	e, pkg = loadPackage(t, files, WithRegistry(reg))
	tree, err = e.Explore(context.Background(), pkg, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"cached"}, tree.Functions)
	assert.Empty(t, tree.Constants)
}
