// Package store defines the read-only hierarchical metadata store the loader
// consumes, plus local, in-memory, caching and throttling implementations.
package store

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a document or directory does not exist
var ErrNotFound = errors.New("not found")

// Entry is one child of a listed directory
type Entry struct {
	Name  string
	Path  string
	IsDir bool
}

// FileInfo is the storage-level metadata of a document
type FileInfo struct {
	ModTime time.Time
}

// MetadataStore is the hierarchical store rows are loaded from. Paths are
// slash-separated. Implementations never write.
type MetadataStore interface {
	List(ctx context.Context, dir string) ([]Entry, error)
	ReadDocument(ctx context.Context, docPath string) (string, error)
	ReadFileInfo(ctx context.Context, docPath string) (FileInfo, error)
}

// Join joins store path elements
func Join(elem ...string) string {
	return path.Join(elem...)
}

// Clean normalizes a store path to a rooted slash path
func Clean(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
