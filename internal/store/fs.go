package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FSStore serves a local directory tree. Store paths are resolved below Base.
type FSStore struct {
	Base string
}

// NewFSStore creates a store rooted at base
func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		return nil, fmt.Errorf("store base directory is required")
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store base %q: %w", base, err)
	}
	return &FSStore{Base: abs}, nil
}

// LocalPath maps a store path to the filesystem path below Base
func (s *FSStore) LocalPath(p string) string {
	return filepath.Join(s.Base, filepath.FromSlash(Clean(p)))
}

// List returns the children of dir sorted by name
func (s *FSStore) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := os.ReadDir(s.LocalPath(dir))
	if err != nil {
		return nil, translateFSError(err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			Name:  item.Name(),
			Path:  Join(Clean(dir), item.Name()),
			IsDir: item.IsDir(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ReadDocument returns the text content of a document
func (s *FSStore) ReadDocument(ctx context.Context, docPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.LocalPath(docPath))
	if err != nil {
		return "", translateFSError(err)
	}
	return string(data), nil
}

// ReadFileInfo returns the modification time of a document
func (s *FSStore) ReadFileInfo(ctx context.Context, docPath string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	info, err := os.Stat(s.LocalPath(docPath))
	if err != nil {
		return FileInfo{}, translateFSError(err)
	}
	return FileInfo{ModTime: info.ModTime()}, nil
}

func translateFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
