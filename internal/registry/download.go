package registry

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cavaliergopher/grab/v3"
	"github.com/mholt/archives"

	"github.com/jward/nodetree/internal/store"
)

// download fetches a tarball, extracts it into the cache and records it.
func (s *Store) download(ctx context.Context, name, version, tarballURL string) (*Package, error) {
	s.logger.Info("downloading package", "name", name, "version", version)

	downloads := filepath.Join(s.cacheDir, ".downloads")
	if err := os.MkdirAll(downloads, 0o755); err != nil {
		return nil, fmt.Errorf("registry: create download dir: %w", err)
	}
	dst := filepath.Join(downloads, dirName(name, version)+".tgz")
	_ = os.Remove(dst)
	defer os.Remove(dst)

	file, err := s.fetchTarball(ctx, tarballURL, dst)
	if err != nil {
		return nil, err
	}

	root := filepath.Join(s.cacheDir, dirName(name, version))
	batch := store.NewBatchedStore()
	if err := extractTarball(ctx, file, root, batch); err != nil {
		return nil, fmt.Errorf("registry: extract %s@%s: %w", name, version, err)
	}
	s.logger.Debug("extracted package", "name", name, "version", version, "files", batch.Len(), "root", root)

	if s.index != nil {
		row := &store.Package{
			Name:    name,
			Version: version,
			Root:    root,
			Source:  string(SourceRegistry),
			Tarball: tarballURL,
		}
		if err := s.index.CommitBatch(row, batch); err != nil {
			return nil, fmt.Errorf("registry: record %s@%s: %w", name, version, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		data = nil
	}
	return &Package{Name: name, Version: version, Root: root, Manifest: data, Source: SourceRegistry}, nil
}

// fetchTarball downloads url to dst with grab.
func (s *Store) fetchTarball(ctx context.Context, url, dst string) (string, error) {
	gc := grab.NewClient()
	gc.HTTPClient = s.client.http
	gc.UserAgent = userAgent

	req, err := grab.NewRequest(dst, url)
	if err != nil {
		return "", fmt.Errorf("registry: download request: %w", err)
	}
	req.NoResume = true
	req = req.WithContext(ctx)

	resp := gc.Do(req)
	if err := resp.Err(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("registry: download %s: %w: %v", url, ErrNetwork, err)
	}
	return resp.Filename, nil
}

// extractTarball unpacks a gzipped tar into root, dropping the leading path
// component ("package/" in npm tarballs). Entries that would escape root,
// links and special files are skipped. The directory is populated under a
// temporary name and renamed into place once complete.
func extractTarball(ctx context.Context, file, root string, batch *store.BatchedStore) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(root), 0o755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(filepath.Dir(root), ".extract-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	format := archives.CompressedArchive{
		Archival:    archives.Tar{},
		Compression: archives.Gz{},
		Extraction:  archives.Tar{},
	}
	err = format.Extract(ctx, f, func(ctx context.Context, info archives.FileInfo) error {
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		rel, ok := archivePath(info.NameInArchive)
		if !ok {
			return nil
		}
		return writeEntry(info, tmp, rel, batch)
	})
	if err != nil {
		return err
	}
	if batch.Len() == 0 {
		return fmt.Errorf("tarball has no files")
	}

	if err := os.RemoveAll(root); err != nil {
		return err
	}
	return os.Rename(tmp, root)
}

func writeEntry(info archives.FileInfo, dir, rel string, batch *store.BatchedStore) error {
	rc, err := info.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", info.NameInArchive, err)
	}
	defer rc.Close()

	dst := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), rc)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}

	batch.AddFile(&store.File{Path: rel, Hash: fmt.Sprintf("%x", h.Sum(nil)), Size: n})
	return nil
}

// archivePath strips the first component of an archive entry name and
// rejects absolute paths and paths that climb out of the package.
func archivePath(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return "", false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", false
		}
	}
	clean := path.Clean(name)
	i := strings.Index(clean, "/")
	if i < 0 {
		return "", false
	}
	rel := clean[i+1:]
	if rel == "" || rel == "." {
		return "", false
	}
	return rel, true
}
