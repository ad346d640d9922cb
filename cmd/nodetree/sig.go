package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/nodetree"
)

var sigCmd = &cobra.Command{
	Use:   "sig <package[@version][/path]:symbol>",
	Short: "Display the signature of an exported function or class",
	Long: `Find an exported symbol and display its callable signature.

The search starts at the package entry (or at /path when given) and visits
directory submodules breadth-first, shallowest first and alphabetically
within a level. Constants built with a registered wrapper such as
flow(fn) or task({ run: fn }) report the wrapped function's signature.
Class.method selects a public method.

A local directory may point below its package root: the part of the path
under the nearest package.json is used as /path.`,
	Example: `  nodetree sig express:Router
  nodetree sig @acme/workflows@2.1.0/tasks:sendEmail
  nodetree sig ./packages/core:Client.request
  nodetree sig ./packages/core/src/jobs:sendEmail`,
	Args: cobra.ExactArgs(1),
	RunE: runSig,
}

func runSig(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	arg := args[0]

	i := strings.LastIndex(arg, ":")
	if i < 0 {
		return outputError("sig", fmt.Errorf("invalid qualifier %q: expected package[@version][/path]:symbol", arg))
	}
	var q nodetree.Qualifier
	local := isLocalPath(arg[:i])
	if local {
		q.Symbol = strings.TrimSpace(arg[i+1:])
		if q.Symbol == "" {
			return outputError("sig", fmt.Errorf("invalid qualifier %q: empty symbol", arg))
		}
	} else {
		parsed, err := nodetree.ParseQualifier(arg)
		if err != nil {
			return outputError("sig", err)
		}
		q = parsed
	}

	engine, closeEngine, err := openEngine(ctx)
	if err != nil {
		return outputError("sig", err)
	}
	defer closeEngine()

	ref := q.PackageRef.String()
	if local {
		ref = arg[:i]
	}
	pkg, pr, err := openPackage(ctx, engine, ref)
	if err != nil {
		if cancelled(ctx, err) {
			return err
		}
		return outputError("sig", err)
	}
	if local {
		q.Path = pr.Path
	}
	q.Name = pkg.Name

	res, err := engine.FindSignature(ctx, pkg, q)
	if err != nil {
		if cancelled(ctx, err) {
			return err
		}
		return outputError("sig", err)
	}

	return outputResult(CLIResult{
		Command: "sig",
		Results: CLISignature{Package: pkg.Name, Version: pkg.Version, SignatureResult: res},
	})
}
