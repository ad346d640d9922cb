package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/nodetree/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the package cache",
	Long:  "Packages fetched from the registry are extracted under the cache directory and recorded in its index database.",
}

var cacheListCmd = &cobra.Command{
	Use:   "list [package]",
	Short: "List cached packages",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [package]",
	Short: "Remove cached packages (all of them when no package is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	idx, err := openIndex()
	if err != nil {
		return outputError("cache list", err)
	}
	defer idx.Close()

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	pkgs, err := idx.Packages(name)
	if err != nil {
		return outputError("cache list", err)
	}

	results := make([]CLICachedPackage, 0, len(pkgs))
	for _, p := range pkgs {
		files, err := idx.FilesByPackage(p.ID)
		if err != nil {
			return outputError("cache list", err)
		}
		results = append(results, cachedPackageToCLI(p, len(files)))
	}
	return outputResult(CLIResult{Command: "cache list", Results: results})
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	logger := loggerFromContext(cmd.Context())
	idx, err := openIndex()
	if err != nil {
		return outputError("cache clear", err)
	}
	defer idx.Close()

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	removed, err := idx.DeletePackages(name)
	if err != nil {
		return outputError("cache clear", err)
	}

	result := CLICacheClear{Removed: make([]CLICachedPackage, 0, len(removed))}
	for _, p := range removed {
		if insideDir(cfg.CacheDir, p.Root) {
			if err := os.RemoveAll(p.Root); err != nil {
				return outputError("cache clear", fmt.Errorf("removing %s: %w", p.Root, err))
			}
		}
		logger.Debug("removed cached package", "package", p.String(), "root", p.Root)
		result.Removed = append(result.Removed, cachedPackageToCLI(p, 0))
	}
	if name == "" {
		if err := os.RemoveAll(filepath.Join(cfg.CacheDir, ".downloads")); err != nil {
			return outputError("cache clear", err)
		}
	}
	return outputResult(CLIResult{Command: "cache clear", Results: result})
}

func cachedPackageToCLI(p *store.Package, files int) CLICachedPackage {
	return CLICachedPackage{
		Name:      p.Name,
		Version:   p.Version,
		Source:    p.Source,
		Root:      p.Root,
		Files:     files,
		FetchedAt: p.FetchedAt,
	}
}

// insideDir reports whether path lies strictly inside dir. Only extracted
// directories under the cache are deleted; local packages are left alone.
func insideDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
