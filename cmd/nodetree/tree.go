package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flagDepth int

var treeCmd = &cobra.Command{
	Use:   "tree <package[@version][/path]>",
	Short: "Display a package's module tree and exports",
	Long: `Display the module tree of a package: for each module its exported
functions, classes, constants and types, then its directory submodules.

The package is a registry name (express, @types/node, lodash@4) or a local
directory (./my-package). A /path selects a subpath export, a module file or
a directory inside the package. A local directory below its package root
selects that directory the same way.`,
	Example: `  nodetree tree express
  nodetree tree @acme/workflows@^2/tasks --depth 1
  nodetree tree ./packages/core --depth -1`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().IntVar(&flagDepth, "depth", 2, "maximum submodule depth (-1 for unbounded; default from config)")
}

func runTree(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	arg := args[0]
	if strings.Contains(arg, ":") {
		return outputError("tree", fmt.Errorf("invalid package %q for tree: the :symbol form is for signatures, use 'nodetree sig %s'", arg, arg))
	}

	depth := cfg.Depth
	if cmd.Flags().Changed("depth") {
		depth = flagDepth
	}
	if depth < -1 {
		return outputError("tree", fmt.Errorf("invalid depth %d: must be -1 or greater", depth))
	}

	engine, closeEngine, err := openEngine(ctx)
	if err != nil {
		return outputError("tree", err)
	}
	defer closeEngine()

	pkg, ref, err := openPackage(ctx, engine, arg)
	if err != nil {
		if cancelled(ctx, err) {
			return err
		}
		return outputError("tree", err)
	}

	tree, err := engine.ExploreAt(ctx, pkg, ref.Path, depth)
	if err != nil {
		if cancelled(ctx, err) {
			return err
		}
		return outputError("tree", err)
	}

	return outputResult(CLIResult{
		Command: "tree",
		Results: CLITree{
			Package: pkg.Name,
			Version: pkg.Version,
			Source:  pkg.Source,
			Path:    ref.Path,
			Tree:    tree,
		},
	})
}
