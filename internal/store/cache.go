package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// cacheEntry holds one cached store result with expiration
type cacheEntry struct {
	entries   []Entry
	content   string
	info      FileInfo
	notFound  bool
	expiresAt time.Time
}

// CachedStore caches listings, documents and file infos of another store.
// Not-found results are cached too, since absent per-entity documents are
// probed on every load.
type CachedStore struct {
	next    MetadataStore
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// NewCachedStore wraps next with a TTL cache
func NewCachedStore(next MetadataStore, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:    next,
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: 10000,
		now:     time.Now,
	}
}

func (c *CachedStore) get(key string) *cacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil
	}
	if c.now().After(entry.expiresAt) {
		return nil
	}
	return entry
}

func (c *CachedStore) set(key string, entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	entry.expiresAt = c.now().Add(c.ttl)
	c.entries[key] = entry
}

// evictOldest removes expired entries, then 10% of the rest if still full
func (c *CachedStore) evictOldest() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) >= c.maxSize {
		count := 0
		target := c.maxSize / 10
		for key := range c.entries {
			delete(c.entries, key)
			count++
			if count >= target {
				break
			}
		}
	}
}

// Clear drops every cached result
func (c *CachedStore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Size returns the current number of cached results
func (c *CachedStore) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// List implements MetadataStore
func (c *CachedStore) List(ctx context.Context, dir string) ([]Entry, error) {
	key := "list:" + Clean(dir)
	if cached := c.get(key); cached != nil {
		if cached.notFound {
			return nil, ErrNotFound
		}
		return append([]Entry(nil), cached.entries...), nil
	}

	entries, err := c.next.List(ctx, dir)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.set(key, &cacheEntry{notFound: true})
		}
		return nil, err
	}
	c.set(key, &cacheEntry{entries: append([]Entry(nil), entries...)})
	return entries, nil
}

// ReadDocument implements MetadataStore
func (c *CachedStore) ReadDocument(ctx context.Context, docPath string) (string, error) {
	key := "doc:" + Clean(docPath)
	if cached := c.get(key); cached != nil {
		if cached.notFound {
			return "", ErrNotFound
		}
		return cached.content, nil
	}

	content, err := c.next.ReadDocument(ctx, docPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.set(key, &cacheEntry{notFound: true})
		}
		return "", err
	}
	c.set(key, &cacheEntry{content: content})
	return content, nil
}

// ReadFileInfo implements MetadataStore
func (c *CachedStore) ReadFileInfo(ctx context.Context, docPath string) (FileInfo, error) {
	key := "info:" + Clean(docPath)
	if cached := c.get(key); cached != nil {
		if cached.notFound {
			return FileInfo{}, ErrNotFound
		}
		return cached.info, nil
	}

	info, err := c.next.ReadFileInfo(ctx, docPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.set(key, &cacheEntry{notFound: true})
		}
		return FileInfo{}, err
	}
	c.set(key, &cacheEntry{info: info})
	return info, nil
}
