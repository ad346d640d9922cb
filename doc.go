// Package nodetree inspects the public surface of a published JavaScript or
// TypeScript package from its source text and declaration files, without
// executing or type-checking any of it.
//
// # Pipeline
//
// Loading a package runs three phases:
//
//  1. Build: discover the package's source files, parse each one with
//     tree-sitter in parallel, and assemble a module graph of export and
//     import bindings plus directory submodules.
//
//  2. Resolve: follow every re-export and export * chain to the declaration
//     it names. Explicit exports shadow wildcard ones, the first wildcard
//     source wins, and re-export cycles are reported instead of followed.
//
//  3. Query: Explore and FindSignature read the resolved graph.
//
// # Usage
//
//	e := nodetree.New(nodetree.WithLogger(logger))
//
//	pkg, err := e.Load(ctx, "node_modules/express")
//	if err != nil { ... }
//
//	tree, err := e.Explore(ctx, pkg, 2)
//
//	q, err := nodetree.ParseQualifier("express/lib/router:Router")
//	sig, err := e.FindSignature(ctx, pkg, q)
//
// [Engine.Fetch] loads a package by name through a package store
// ([WithPackageStore]): a local node_modules tree, the on-disk cache, or the
// npm registry.
//
// # Wrapped declarations
//
// Exports such as
//
//	export const handler = flow(async (event: Event) => { ... })
//
// are unwrapped through a [Registry] of wrapper rules: the callable is
// either a positional argument ([ArgPosition]) or a property of an options
// object ([OptionsField]). flow and task are registered by default; other
// wrappers are opaque and report no signature.
package nodetree
