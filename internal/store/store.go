package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite index of packages fetched into the on-disk cache.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the packages and files tables. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS packages (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL,
  version         TEXT NOT NULL,
  root            TEXT NOT NULL,
  source          TEXT NOT NULL,
  tarball         TEXT,
  content_hash    TEXT,
  fetched_at      TIMESTAMP,
  UNIQUE(name, version)
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  package_id      INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
  path            TEXT NOT NULL,
  hash            TEXT NOT NULL,
  size            INTEGER NOT NULL,
  UNIQUE(package_id, path)
);

CREATE INDEX IF NOT EXISTS idx_packages_name ON packages(name);
CREATE INDEX IF NOT EXISTS idx_files_package ON files(package_id);
`

// PackageByVersion returns the cached package with an exact name and
// version, or nil if it is not cached.
func (s *Store) PackageByVersion(name, version string) (*Package, error) {
	row := s.db.QueryRow(
		"SELECT "+packageColumns+" FROM packages WHERE name = ? AND version = ?", name, version,
	)
	p, err := scanPackage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("package by version: %w", err)
	}
	return p, nil
}

// Packages lists cached packages ordered by name and version. An empty name
// lists every package.
func (s *Store) Packages(name string) ([]*Package, error) {
	query := "SELECT " + packageColumns + " FROM packages"
	var args []any
	if name != "" {
		query += " WHERE name = ?"
		args = append(args, name)
	}
	query += " ORDER BY name, version"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("packages: %w", err)
	}
	defer rows.Close()

	var out []*Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("packages: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePackages removes cached packages and their file rows, returning the
// removed packages so their directories can be deleted. An empty name
// removes every package.
func (s *Store) DeletePackages(name string) ([]*Package, error) {
	pkgs, err := s.Packages(name)
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("delete packages: begin: %w", err)
	}
	defer tx.Rollback()

	for _, p := range pkgs {
		if _, err := tx.Exec("DELETE FROM files WHERE package_id = ?", p.ID); err != nil {
			return nil, fmt.Errorf("delete packages: files of %s: %w", p, err)
		}
		if _, err := tx.Exec("DELETE FROM packages WHERE id = ?", p.ID); err != nil {
			return nil, fmt.Errorf("delete packages: %s: %w", p, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete packages: commit: %w", err)
	}
	return pkgs, nil
}

// FilesByPackage returns the file rows of a package ordered by path.
func (s *Store) FilesByPackage(packageID int64) ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT id, package_id, path, hash, size FROM files WHERE package_id = ? ORDER BY path", packageID,
	)
	if err != nil {
		return nil, fmt.Errorf("files by package: %w", err)
	}
	defer rows.Close()

	var out []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.PackageID, &f.Path, &f.Hash, &f.Size); err != nil {
			return nil, fmt.Errorf("files by package: scan: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const packageColumns = "id, name, version, root, source, tarball, content_hash, fetched_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanPackage(row scanner) (*Package, error) {
	p := &Package{}
	var tarball, hash sql.NullString
	var fetched sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &p.Version, &p.Root, &p.Source, &tarball, &hash, &fetched); err != nil {
		return nil, err
	}
	p.Tarball = tarball.String
	p.ContentHash = hash.String
	p.FetchedAt = fetched.Time
	return p, nil
}
