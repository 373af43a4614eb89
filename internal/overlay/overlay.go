// Package overlay holds uncommitted field edits keyed by row and merges them
// over canonical rows without touching the originals.
package overlay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/catalogspectre/internal/models"
)

// Edit is one requested field change
type Edit struct {
	Key   string
	Type  models.ResourceType
	Field string
	Value any
}

// Entry is the pending edit set of one row. Fields hold normalized values;
// nil means the field is explicitly nulled.
type Entry struct {
	Key    string              `json:"key"`
	Type   models.ResourceType `json:"type"`
	Fields map[string]any      `json:"fields"`
}

func (e Entry) clone() Entry {
	fields := make(map[string]any, len(e.Fields))
	for name, value := range e.Fields {
		fields[name] = cloneValue(value)
	}
	return Entry{Key: e.Key, Type: e.Type, Fields: fields}
}

// FieldNames returns the edited field names in sorted order
func (e Entry) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Overlay is the set of pending edits. Entries survive reloads; only
// Discard and Take remove them.
type Overlay struct {
	mu      sync.RWMutex
	entries map[string]Entry
	version uint64
}

// New creates an empty overlay
func New() *Overlay {
	return &Overlay{entries: make(map[string]Entry)}
}

// Set validates and records one edit. The most recent edit of a field wins.
func (o *Overlay) Set(key string, t models.ResourceType, field string, value any) error {
	return o.SetBatch([]Edit{{Key: key, Type: t, Field: field, Value: value}})
}

// SetBatch records all edits or none: every edit is validated before any
// is applied.
func (o *Overlay) SetBatch(edits []Edit) error {
	if len(edits) == 0 {
		return nil
	}

	normalized := make([]any, len(edits))
	for i, edit := range edits {
		if edit.Key == "" {
			return fmt.Errorf("%w: edit %d has an empty key", models.ErrUnknownRow, i)
		}
		value, err := models.ValidateEdit(edit.Type, edit.Field, edit.Value)
		if err != nil {
			return fmt.Errorf("edit %d (%s.%s): %w", i, edit.Key, edit.Field, err)
		}
		normalized[i] = value
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for i, edit := range edits {
		entry, ok := o.entries[edit.Key]
		if !ok || entry.Type != edit.Type {
			entry = Entry{Key: edit.Key, Type: edit.Type, Fields: make(map[string]any)}
		}
		entry.Fields[edit.Field] = normalized[i]
		o.entries[edit.Key] = entry
	}
	o.version++
	return nil
}

// Entry returns a copy of the pending edits of key
func (o *Overlay) Entry(key string) (Entry, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.entries[key]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// Has reports whether key has pending edits
func (o *Overlay) Has(key string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.entries[key]
	return ok
}

// Keys returns the keys with pending edits, sorted
func (o *Overlay) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return sortedKeys(o.entries)
}

// Len returns the number of rows with pending edits
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entries)
}

// Version increases on every mutation
func (o *Overlay) Version() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.version
}

// Snapshot returns an immutable copy of the current entries
func (o *Overlay) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entries := make(map[string]Entry, len(o.entries))
	for key, entry := range o.entries {
		entries[key] = entry.clone()
	}
	return Snapshot{version: o.version, entries: entries}
}

// Discard drops the entries of keys, or every entry when no key is given.
// It returns the number of entries removed.
func (o *Overlay) Discard(keys ...string) int {
	return len(o.Take(keys...))
}

// Take removes and returns the entries of keys (all entries when none are
// given), sorted by key.
func (o *Overlay) Take(keys ...string) []Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(keys) == 0 {
		keys = sortedKeys(o.entries)
	} else {
		keys = append([]string(nil), keys...)
		sort.Strings(keys)
	}

	taken := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entry, ok := o.entries[key]
		if !ok {
			continue
		}
		taken = append(taken, entry)
		delete(o.entries, key)
	}
	if len(taken) > 0 {
		o.version++
	}
	return taken
}

// Restore puts back entries returned by Take. Fields edited since the
// Take keep their newer value.
func (o *Overlay) Restore(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, restored := range entries {
		current, ok := o.entries[restored.Key]
		if !ok || current.Type != restored.Type {
			o.entries[restored.Key] = restored.clone()
			continue
		}
		for field, value := range restored.Fields {
			if _, edited := current.Fields[field]; !edited {
				current.Fields[field] = cloneValue(value)
			}
		}
	}
	o.version++
}

// Snapshot is a point-in-time copy of an overlay
type Snapshot struct {
	version uint64
	entries map[string]Entry
}

// Version is the overlay version the snapshot was taken at
func (s Snapshot) Version() uint64 { return s.version }

// Len returns the number of entries
func (s Snapshot) Len() int { return len(s.entries) }

// Has reports whether key has an entry
func (s Snapshot) Has(key string) bool {
	_, ok := s.entries[key]
	return ok
}

// Entry returns the entry of key
func (s Snapshot) Entry(key string) (Entry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// Keys returns the snapshot keys, sorted
func (s Snapshot) Keys() []string {
	return sortedKeys(s.entries)
}

// Entries returns copies of every entry, sorted by key
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, key := range sortedKeys(s.entries) {
		out = append(out, s.entries[key].clone())
	}
	return out
}

func sortedKeys(entries map[string]Entry) []string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cloneValue(value any) any {
	if list, ok := value.([]string); ok {
		return append([]string(nil), list...)
	}
	return value
}
