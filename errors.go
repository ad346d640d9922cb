package nodetree

import (
	"errors"

	"github.com/jward/nodetree/internal/graph"
	"github.com/jward/nodetree/internal/registry"
)

var (
	// ErrSymbolNotFound is returned by FindSignature when no module in the
	// search exports the symbol.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrCancelled is returned when the context is cancelled mid-operation.
	ErrCancelled = graph.ErrCancelled

	// ErrEmptyPackage is returned by Load for a package with no readable
	// source files.
	ErrEmptyPackage = graph.ErrEmptyPackage

	// ErrPackageNotFound is returned by Fetch when the package or version
	// does not exist.
	ErrPackageNotFound = registry.ErrPackageNotFound

	// ErrNoPackageStore is returned by Fetch on an Engine built without
	// WithPackageStore.
	ErrNoPackageStore = errors.New("no package store configured")
)
