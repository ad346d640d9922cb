// Package registry fetches JS/TS packages for analysis: from a local
// node_modules tree, from the on-disk cache, or from an npm-compatible
// registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jward/nodetree/internal/store"
)

// Source records where a fetched package came from.
type Source string

const (
	SourceLocal    Source = "local"
	SourceCache    Source = "cache"
	SourceRegistry Source = "registry"
)

// Package is a package available on disk for analysis.
type Package struct {
	Name     string
	Version  string
	Root     string
	Manifest []byte
	Source   Source
}

// Store resolves package names to directories on disk, downloading and
// caching them as needed.
type Store struct {
	index      *store.Store
	cacheDir   string
	client     *client
	searchDirs []string
	logger     *log.Logger
	offline    bool
}

// Option configures a Store.
type Option func(*Store)

// WithRegistryURL sets the registry base URL.
func WithRegistryURL(u string) Option {
	return func(s *Store) {
		s.client.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client used for metadata and tarballs.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Store) {
		s.client.http = hc
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithSearchDirs sets the directories whose node_modules are searched before
// the cache. The default is the working directory and its two parents.
func WithSearchDirs(dirs ...string) Option {
	return func(s *Store) {
		s.searchDirs = dirs
	}
}

// WithOffline disables registry access; only local and cached packages
// are returned.
func WithOffline(offline bool) Option {
	return func(s *Store) {
		s.offline = offline
	}
}

// NewStore creates a Store that extracts packages under cacheDir and records
// them in index.
func NewStore(cacheDir string, index *store.Store, opts ...Option) *Store {
	s := &Store{
		index:    index,
		cacheDir: cacheDir,
		client:   newClient(DefaultRegistryURL, nil),
		logger:   log.New(io.Discard),
	}
	if wd, err := os.Getwd(); err == nil {
		s.searchDirs = []string{wd, filepath.Dir(wd), filepath.Dir(filepath.Dir(wd))}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheDir returns the directory packages are extracted into.
func (s *Store) CacheDir() string {
	return s.cacheDir
}

// Fetch returns the package name at the requested version, which may be
// empty, "latest", a dist-tag, an exact version or a range.
//
// Lookup order: local node_modules, the cache for an exact version, then
// registry metadata, the cache for the selected version, and finally a
// tarball download recorded in the cache.
func (s *Store) Fetch(ctx context.Context, name, version string) (*Package, error) {
	if name == "" {
		return nil, fmt.Errorf("registry: fetch: empty package name")
	}

	if pkg, ok := s.local(name, version); ok {
		s.logger.Debug("using local package", "name", name, "version", pkg.Version, "root", pkg.Root)
		return pkg, nil
	}

	if isExact(version) {
		pkg, err := s.cached(name, version)
		if err != nil {
			return nil, err
		}
		if pkg != nil {
			return pkg, nil
		}
	}

	if s.offline {
		return s.latestCached(name, version)
	}

	meta, err := s.client.metadata(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrNetwork) {
			// Fall back to whatever the cache holds.
			if pkg, cacheErr := s.latestCached(name, version); cacheErr == nil {
				s.logger.Warn("registry unreachable, using cached package", "name", name, "version", pkg.Version, "err", err)
				return pkg, nil
			}
		}
		return nil, fmt.Errorf("registry: metadata for %s: %w", name, err)
	}

	resolved, ok := selectVersion(meta, version)
	if !ok {
		return nil, fmt.Errorf("registry: %s@%s: %w", name, version, ErrPackageNotFound)
	}

	pkg, err := s.cached(name, resolved)
	if err != nil {
		return nil, err
	}
	if pkg != nil {
		return pkg, nil
	}

	tarball := meta.Versions[resolved].Dist.Tarball
	if tarball == "" {
		return nil, fmt.Errorf("registry: %s@%s: no tarball: %w", name, resolved, ErrPackageNotFound)
	}
	return s.download(ctx, name, resolved, tarball)
}

// local searches node_modules in the configured directories.
func (s *Store) local(name, version string) (*Package, bool) {
	for _, dir := range s.searchDirs {
		root := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		data, err := os.ReadFile(filepath.Join(root, "package.json"))
		if err != nil {
			continue
		}
		m, err := parseLocalManifest(data)
		if err != nil {
			s.logger.Debug("skipping unreadable manifest", "path", root, "err", err)
			continue
		}
		if version != "" && version != "latest" && !satisfies(m.Version, version) {
			continue
		}
		return &Package{Name: name, Version: m.Version, Root: root, Manifest: data, Source: SourceLocal}, true
	}
	return nil, false
}

// cached returns the cached package with an exact version, or nil. Index
// rows whose directory has disappeared are ignored.
func (s *Store) cached(name, version string) (*Package, error) {
	if s.index == nil {
		return nil, nil
	}
	row, err := s.index.PackageByVersion(name, version)
	if err != nil {
		return nil, fmt.Errorf("registry: cache lookup %s@%s: %w", name, version, err)
	}
	if row == nil {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(row.Root, "package.json"))
	if err != nil {
		s.logger.Debug("cached package missing on disk", "name", name, "version", version, "root", row.Root)
		return nil, nil
	}
	s.logger.Debug("using cached package", "name", name, "version", version)
	return &Package{Name: name, Version: version, Root: row.Root, Manifest: data, Source: SourceCache}, nil
}

// latestCached returns the greatest cached version satisfying version.
func (s *Store) latestCached(name, version string) (*Package, error) {
	if s.index == nil {
		return nil, fmt.Errorf("registry: %s: %w", name, ErrPackageNotFound)
	}
	rows, err := s.index.Packages(name)
	if err != nil {
		return nil, fmt.Errorf("registry: cache lookup %s: %w", name, err)
	}
	versions := make([]string, 0, len(rows))
	for _, r := range rows {
		versions = append(versions, r.Version)
	}
	best, ok := greatestMatch(versions, version)
	if !ok {
		return nil, fmt.Errorf("registry: %s: %w", name, ErrPackageNotFound)
	}
	pkg, err := s.cached(name, best)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, fmt.Errorf("registry: %s: %w", name, ErrPackageNotFound)
	}
	return pkg, nil
}

// dirName maps a package name and version to its cache directory name.
func dirName(name, version string) string {
	return strings.ReplaceAll(name, "/", "+") + "@" + version
}
