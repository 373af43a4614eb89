// Package commitlog persists committed review edits as a versioned JSON
// document.
package commitlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/overlay"
)

const (
	// DefaultFileName is used when no --commit-log path is given
	DefaultFileName = "commits.json"
	fileVersion     = 1
)

// Record is one committed row edit set
type Record struct {
	Key         string              `json:"key"`
	Type        models.ResourceType `json:"type"`
	Fields      map[string]any      `json:"fields"`
	Fingerprint string              `json:"fingerprint"`
}

// Commit is one call to Append
type Commit struct {
	ID          string    `json:"id"`
	CommittedAt time.Time `json:"committed_at"`
	Records     []Record  `json:"records"`
}

// File is the persisted commit log payload
type File struct {
	Version int      `json:"version"`
	Commits []Commit `json:"commits"`
}

// Log appends commits to a file. It implements the session commit sink.
type Log struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// Open returns a log writing to path. The file is created on first Append.
func Open(path string) (*Log, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("commit log path is empty")
	}
	return &Log{path: trimmed, now: time.Now}, nil
}

// Path returns the log file path
func (l *Log) Path() string { return l.path }

// Append records entries as one commit. Entries identical to the latest
// committed state of their row are skipped; when nothing is left no commit
// is written.
func (l *Log) Append(ctx context.Context, entries []overlay.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := Load(l.path)
	if err != nil {
		return err
	}
	latest := latestFingerprints(file)

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		fingerprint := Fingerprint(entry)
		if latest[entry.Key] == fingerprint {
			continue
		}
		records = append(records, Record{
			Key:         entry.Key,
			Type:        entry.Type,
			Fields:      entry.Fields,
			Fingerprint: fingerprint,
		})
	}
	if len(records) == 0 {
		return nil
	}

	file.Commits = append(file.Commits, Commit{
		ID:          uuid.NewString(),
		CommittedAt: l.now().UTC(),
		Records:     records,
	})
	return Save(l.path, file)
}

// Load reads a commit log. Missing files return an empty log.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{Version: fileVersion}, nil
		}
		return File{}, fmt.Errorf("read commit log: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse commit log: %w", err)
	}
	if file.Version != 0 && file.Version != fileVersion {
		return File{}, fmt.Errorf("unsupported commit log version: %d", file.Version)
	}
	file.Version = fileVersion
	return file, nil
}

// Save writes the log through a temporary file so readers never see a
// partial document
func Save(path string, file File) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create commit log directory: %w", err)
		}
	}

	file.Version = fileVersion
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal commit log: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write commit log: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace commit log: %w", err)
	}
	return nil
}

// Entries folds every commit into the latest committed fields per row,
// sorted by key. Later commits override earlier ones field by field.
func (f File) Entries() []overlay.Entry {
	byKey := make(map[string]overlay.Entry)
	for _, commit := range f.Commits {
		for _, record := range commit.Records {
			entry, ok := byKey[record.Key]
			if !ok || entry.Type != record.Type {
				entry = overlay.Entry{Key: record.Key, Type: record.Type, Fields: make(map[string]any)}
			}
			for field, value := range record.Fields {
				entry.Fields[field] = value
			}
			byKey[record.Key] = entry
		}
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]overlay.Entry, 0, len(keys))
	for _, key := range keys {
		out = append(out, byKey[key])
	}
	return out
}

// Apply merges committed entries over rows. Rows are never mutated.
func Apply(rows []models.Row, entries []overlay.Entry) []models.Row {
	byKey := make(map[string]overlay.Entry, len(entries))
	for _, entry := range entries {
		byKey[entry.Key] = entry
	}
	out := make([]models.Row, len(rows))
	for i, row := range rows {
		if entry, ok := byKey[row.Key]; ok {
			out[i] = overlay.Merge(row, entry)
			continue
		}
		out[i] = row
	}
	return out
}

// Fingerprint returns a stable hash of an entry. Values are normalized to
// their field kind first, so an entry read back from disk hashes like the
// one that was written.
func Fingerprint(entry overlay.Entry) string {
	parts := []string{"commit", entry.Key, string(entry.Type)}
	for _, field := range entry.FieldNames() {
		value := entry.Fields[field]
		if spec, ok := models.LookupField(entry.Type, field); ok {
			if normalized, err := models.Coerce(spec.Kind, value); err == nil {
				value = normalized
			}
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			encoded = []byte(fmt.Sprint(value))
		}
		parts = append(parts, field+"="+string(encoded))
	}
	return hash(parts...)
}

func latestFingerprints(file File) map[string]string {
	latest := make(map[string]string)
	for _, commit := range file.Commits {
		for _, record := range commit.Records {
			latest[record.Key] = record.Fingerprint
		}
	}
	return latest
}

func hash(parts ...string) string {
	canonical := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
