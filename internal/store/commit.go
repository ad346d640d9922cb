package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CommitBatch records pkg and the buffered files of batch in a single
// transaction. An existing row for the same name and version is replaced.
// On success pkg.ID, pkg.ContentHash and the file IDs are real.
func (s *Store) CommitBatch(pkg *Package, batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM files WHERE package_id IN (SELECT id FROM packages WHERE name = ? AND version = ?)",
		pkg.Name, pkg.Version,
	); err != nil {
		return fmt.Errorf("commit batch: clear files of %s: %w", pkg, err)
	}
	if _, err := tx.Exec("DELETE FROM packages WHERE name = ? AND version = ?", pkg.Name, pkg.Version); err != nil {
		return fmt.Errorf("commit batch: clear %s: %w", pkg, err)
	}

	if pkg.FetchedAt.IsZero() {
		pkg.FetchedAt = time.Now().UTC().Truncate(time.Second)
	}
	pkg.ContentHash = ComputeContentHash(batch.Files)

	pkgID, err := insertPackageTx(tx, pkg)
	if err != nil {
		return fmt.Errorf("commit batch: package %s: %w", pkg, err)
	}

	fakeToReal := make(map[int64]int64, len(batch.Files))
	for i := range batch.Files {
		f := &batch.Files[i]
		f.PackageID = pkgID
		realID, err := insertFileTx(tx, f)
		if err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		fakeToReal[f.ID] = realID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}

	pkg.ID = pkgID
	for i := range batch.Files {
		batch.Files[i].ID = fakeToReal[batch.Files[i].ID]
	}
	return nil
}

func insertPackageTx(tx *sql.Tx, p *Package) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO packages (name, version, root, source, tarball, content_hash, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		p.Name, p.Version, p.Root, p.Source, p.Tarball, p.ContentHash, p.FetchedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertFileTx(tx *sql.Tx, f *File) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO files (package_id, path, hash, size) VALUES (?, ?, ?, ?)",
		f.PackageID, f.Path, f.Hash, f.Size,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
