package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jward/nodetree"
	"github.com/jward/nodetree/internal/config"
	"github.com/jward/nodetree/internal/registry"
	"github.com/jward/nodetree/internal/store"
)

var (
	flagFormat  string
	flagConfig  string
	flagVerbose bool
	flagQuiet   bool
	flagASCII   bool
	flagNoColor bool
	flagOffline bool
)

// cfg is loaded in PersistentPreRunE before any command runs.
var cfg = config.DefaultConfig()

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	interrupted := ctx.Err() != nil
	stop()

	if interrupted {
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, exiting...")
		os.Exit(130)
	}
	if err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "nodetree",
	Short:         "Explore the public surface of JavaScript and TypeScript packages",
	Long:          "nodetree reads a package's source and declaration files with tree-sitter, resolves its exports through re-exports and wrapper calls, and prints its module tree and callable signatures.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		c, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagASCII {
			c.ASCII = true
		}
		if flagNoColor {
			c.NoColor = true
		}
		if flagOffline {
			c.Offline = true
		}
		cfg = c

		level := log.InfoLevel
		switch {
		case flagVerbose:
			level = log.DebugLevel
		case flagQuiet:
			level = log.ErrorLevel
		}
		cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		return nil
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: text|json")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: nodetree.yaml in . or ~/.config/nodetree)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors")
	rootCmd.PersistentFlags().BoolVar(&flagASCII, "ascii", false, "use ASCII glyphs instead of emoji")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colour output")
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "never contact the registry; use local and cached packages only")

	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(sigCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openIndex opens (creating if needed) the package cache index under the
// configured cache directory.
func openIndex() (*store.Store, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", cfg.CacheDir, err)
	}
	idx, err := store.NewStore(filepath.Join(cfg.CacheDir, "index.db"))
	if err != nil {
		return nil, err
	}
	if err := idx.Migrate(); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

// openEngine builds an Engine whose package store is backed by the cache
// index. The returned close function releases the index.
func openEngine(ctx context.Context) (*nodetree.Engine, func(), error) {
	logger := loggerFromContext(ctx)
	idx, err := openIndex()
	if err != nil {
		return nil, nil, err
	}
	packages := registry.NewStore(cfg.CacheDir, idx,
		registry.WithRegistryURL(cfg.RegistryURL),
		registry.WithLogger(logger),
		registry.WithOffline(cfg.Offline),
	)
	engine := nodetree.New(
		nodetree.WithLogger(logger),
		nodetree.WithWorkers(cfg.Workers),
		nodetree.WithExclude(cfg.Exclude...),
		nodetree.WithRegistry(cfg.Registry()),
		nodetree.WithPackageStore(packages),
	)
	return engine, func() { idx.Close() }, nil
}

// isLocalPath reports whether a package argument names a directory on disk
// rather than a registry package.
func isLocalPath(arg string) bool {
	return arg == "." || strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") || filepath.IsAbs(arg)
}

// splitLocalRef splits a local package argument into the package directory
// and a path inside it. The package directory is the nearest directory at or
// above the argument holding a package.json, searched no higher than the
// argument's leading ./ or ../ part. Without one the whole argument is the
// package directory.
func splitLocalRef(ref string) (dir, hint string, err error) {
	abs, err := filepath.Abs(ref)
	if err != nil {
		return "", "", fmt.Errorf("resolving path %q: %w", ref, err)
	}
	stop := ""
	if !filepath.IsAbs(ref) {
		lead := "."
		for _, part := range strings.Split(filepath.ToSlash(ref), "/") {
			if part == ".." {
				lead = filepath.Join(lead, "..")
			} else if part != "." && part != "" {
				break
			}
		}
		if stop, err = filepath.Abs(lead); err != nil {
			return "", "", fmt.Errorf("resolving path %q: %w", ref, err)
		}
	}

	for cur := abs; ; cur = filepath.Dir(cur) {
		if info, err := os.Stat(filepath.Join(cur, "package.json")); err == nil && !info.IsDir() {
			rel, err := filepath.Rel(cur, abs)
			if err != nil {
				return "", "", fmt.Errorf("resolving path %q: %w", ref, err)
			}
			if rel == "." {
				rel = ""
			}
			return cur, filepath.ToSlash(rel), nil
		}
		if cur == stop || filepath.Dir(cur) == cur {
			break
		}
	}
	return abs, "", nil
}

// openPackage loads the package named by ref: a local directory, or a
// registry package fetched through the engine's package store.
func openPackage(ctx context.Context, e *nodetree.Engine, ref string) (*nodetree.Package, nodetree.PackageRef, error) {
	if isLocalPath(ref) {
		dir, hint, err := splitLocalRef(ref)
		if err != nil {
			return nil, nodetree.PackageRef{}, err
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, nodetree.PackageRef{}, fmt.Errorf("directory not found: %s", dir)
		}
		pkg, err := e.Load(ctx, dir)
		if err != nil {
			return nil, nodetree.PackageRef{}, err
		}
		return pkg, nodetree.PackageRef{Name: pkg.Name, Version: pkg.Version, Path: hint}, nil
	}

	pr, err := nodetree.ParsePackageRef(ref)
	if err != nil {
		return nil, pr, err
	}
	pkg, err := e.Fetch(ctx, pr.Name, pr.Version)
	if err != nil {
		return nil, pr, err
	}
	return pkg, pr, nil
}

// cancelled maps context cancellation to nil so main() can report the
// interrupt itself.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, nodetree.ErrCancelled) || errors.Is(err, context.Canceled))
}
