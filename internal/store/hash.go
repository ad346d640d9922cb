package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// ComputeContentHash computes a deterministic hash over a package's files.
// Covers: path, content hash and size. File order does NOT affect the hash.
func ComputeContentHash(files []File) string {
	type fileKey struct {
		path, hash string
		size       int64
	}
	keys := make([]fileKey, len(files))
	for i, f := range files {
		keys[i] = fileKey{f.Path, f.Hash, f.Size}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].path < keys[j].path
	})

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "file:%s:%s:%d\n", k.path, k.hash, k.size)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
