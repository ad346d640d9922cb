package main

import (
	"time"

	"github.com/jward/nodetree"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLITree is the result of the tree command.
type CLITree struct {
	Package string                    `json:"package"`
	Version string                    `json:"version,omitempty"`
	Source  string                    `json:"source,omitempty"`
	Path    string                    `json:"path,omitempty"`
	Tree    *nodetree.ExplorationTree `json:"tree"`
}

// CLISignature is the result of the sig command. The embedded result is nil
// when no module exports the symbol.
type CLISignature struct {
	Package string `json:"package"`
	Version string `json:"version,omitempty"`
	*nodetree.SignatureResult
}

// CLICachedPackage is a JSON-friendly cache entry.
type CLICachedPackage struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Source    string    `json:"source"`
	Root      string    `json:"root"`
	Files     int       `json:"files"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CLICacheClear is the result of cache clear.
type CLICacheClear struct {
	Removed []CLICachedPackage `json:"removed"`
}
