package store

import "time"

// Package is one fetched package version in the cache.
type Package struct {
	ID          int64
	Name        string
	Version     string
	Root        string // extracted directory on disk
	Source      string // registry, local
	Tarball     string
	ContentHash string
	FetchedAt   time.Time
}

func (p *Package) String() string {
	return p.Name + "@" + p.Version
}

// File is one extracted file of a cached package.
type File struct {
	ID        int64
	PackageID int64
	Path      string // relative to Package.Root, forward slashes
	Hash      string
	Size      int64
}
