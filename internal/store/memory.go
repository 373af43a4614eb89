package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory tree. Directories exist implicitly for every
// parent of a stored document, or explicitly via AddDir.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]memoryDoc
	dirs  map[string]struct{}
	fails map[string]error
}

type memoryDoc struct {
	content string
	modTime time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]memoryDoc),
		dirs:  map[string]struct{}{"/": {}},
		fails: make(map[string]error),
	}
}

// Put stores a document, creating its parent directories
func (m *MemoryStore) Put(docPath, content string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Clean(docPath)
	m.docs[p] = memoryDoc{content: content, modTime: modTime}
	m.addParents(p)
}

// AddDir creates an (empty) directory
func (m *MemoryStore) AddDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Clean(dir)
	m.dirs[p] = struct{}{}
	m.addParents(p)
}

// Remove deletes a document
func (m *MemoryStore) Remove(docPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, Clean(docPath))
}

// FailOn makes every call touching p return err
func (m *MemoryStore) FailOn(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fails[Clean(p)] = err
}

func (m *MemoryStore) addParents(p string) {
	for {
		idx := strings.LastIndex(p, "/")
		if idx <= 0 {
			m.dirs["/"] = struct{}{}
			return
		}
		p = p[:idx]
		m.dirs[p] = struct{}{}
	}
}

// List returns the direct children of dir sorted by name
func (m *MemoryStore) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := Clean(dir)
	if err, ok := m.fails[p]; ok {
		return nil, err
	}
	if _, ok := m.dirs[p]; !ok {
		return nil, ErrNotFound
	}

	prefix := p + "/"
	if p == "/" {
		prefix = "/"
	}
	seen := make(map[string]Entry)
	for docPath := range m.docs {
		if name, ok := directChild(prefix, docPath); ok {
			seen[name] = Entry{Name: name, Path: prefix + name, IsDir: false}
		}
	}
	for dirPath := range m.dirs {
		if name, ok := directChild(prefix, dirPath); ok {
			seen[name] = Entry{Name: name, Path: prefix + name, IsDir: true}
		}
	}
	entries := make([]Entry, 0, len(seen))
	for _, entry := range seen {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ReadDocument returns a stored document
func (m *MemoryStore) ReadDocument(ctx context.Context, docPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := Clean(docPath)
	if err, ok := m.fails[p]; ok {
		return "", err
	}
	doc, ok := m.docs[p]
	if !ok {
		return "", ErrNotFound
	}
	return doc.content, nil
}

// ReadFileInfo returns the stored modification time of a document
func (m *MemoryStore) ReadFileInfo(ctx context.Context, docPath string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := Clean(docPath)
	if err, ok := m.fails[p]; ok {
		return FileInfo{}, err
	}
	doc, ok := m.docs[p]
	if !ok {
		return FileInfo{}, ErrNotFound
	}
	return FileInfo{ModTime: doc.modTime}, nil
}

func directChild(prefix, p string) (string, bool) {
	rest, ok := strings.CutPrefix(p, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
