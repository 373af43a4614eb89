// Package loader builds review rows from the metadata store. It prefers the
// consolidated index and falls back to scanning entity directories, and it
// never fails because of a single broken entity.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/store"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

// Loader loads the rows of one resource root
type Loader struct {
	store  store.MetadataStore
	config *config.Config
}

// New creates a loader over st
func New(st store.MetadataStore, cfg *config.Config) *Loader {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Loader{store: st, config: cfg}
}

// LoadRows returns the rows under root. Only total inaccessibility of root
// is an error (ErrSourceUnavailable); a canceled context returns ctx.Err().
func (l *Loader) LoadRows(ctx context.Context, root string, t models.ResourceType) ([]models.Row, error) {
	start := time.Now()
	root = store.Clean(root)

	var (
		results   []entityResult
		fromIndex bool
	)

	if entries, ok := readIndex(ctx, l.store, root); ok {
		fromIndex = true
		jobs := make([]entityJob, len(entries))
		for i, entry := range entries {
			jobs[i] = entityJob{index: i, entry: entry}
		}
		results = runAll(ctx, l.config.Concurrency, jobs, func(ctx context.Context, job entityJob) (models.Row, bool) {
			return l.buildFromIndex(ctx, root, t, job.entry)
		})
	} else {
		listing, err := l.store.List(ctx, root)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &models.SourceError{Root: root, Err: err}
		}

		jobs := make([]entityJob, 0, len(listing))
		for _, entry := range listing {
			if !entry.IsDir || !strings.HasPrefix(entry.Name, t.DirPrefix()) {
				continue
			}
			if l.config.IsEntityExcluded(entry.Name) {
				slog.Debug("entity excluded", slog.String("dir", entry.Name))
				continue
			}
			jobs = append(jobs, entityJob{index: len(jobs), dir: entry.Path})
		}
		results = runAll(ctx, l.config.Concurrency, jobs, func(ctx context.Context, job entityJob) (models.Row, bool) {
			return l.buildFromDirectory(ctx, t, job.dir)
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]models.Row, 0, len(results))
	seen := make(map[string]string, len(results))
	for _, res := range results {
		if !res.ok {
			continue
		}
		row := res.row
		if l.config.IsEntityExcluded(baseName(row.Path), row.Name, row.Key) {
			slog.Debug("entity excluded", slog.String("key", row.Key))
			continue
		}
		if first, dup := seen[row.Key]; dup {
			slog.Warn("duplicate row key, keeping first",
				slog.String("key", row.Key),
				slog.String("kept", first),
				slog.String("dropped", row.Path),
			)
			continue
		}
		seen[row.Key] = row.Path
		rows = append(rows, row)
	}

	sortRows(rows, t, fromIndex)

	slog.Debug("rows loaded",
		slog.String("root", root),
		slog.String("type", string(t)),
		slog.Bool("index", fromIndex),
		slog.Int("rows", len(rows)),
		slog.Duration("duration", time.Since(start)),
	)
	return rows, nil
}

func (l *Loader) buildFromIndex(ctx context.Context, root string, t models.ResourceType, entry map[string]any) (models.Row, bool) {
	dirName := stringValue(entry, "dir")
	key := ""
	if t.IsArtifact() {
		if id, ok := numericID(entry); ok {
			key = id
		} else {
			key = dirName
		}
	} else {
		key = stringValue(entry, models.FieldName)
		if key == "" {
			key = strings.TrimPrefix(dirName, t.DirPrefix())
		}
	}
	if key == "" {
		key = stringValue(entry, models.FieldKey)
	}
	if key == "" {
		slog.Warn("index entry has no usable key, skipping", slog.String("root", root))
		return models.Row{}, false
	}

	dirPath := stringValue(entry, models.FieldPath)
	switch {
	case dirPath != "":
		dirPath = store.Clean(dirPath)
	case dirName != "":
		dirPath = store.Join(root, dirName)
	default:
		dirPath = store.Join(root, t.DirPrefix()+key)
	}

	row := models.NewRow(t, key)
	row.Path = dirPath
	writer := newFieldWriter(&row)
	writer.apply(entry, IndexDocument)

	l.finish(ctx, &row, writer, newEntityDocs(l.store, dirPath))
	return row, true
}

func (l *Loader) buildFromDirectory(ctx context.Context, t models.ResourceType, dirPath string) (models.Row, bool) {
	docs := newEntityDocs(l.store, dirPath)
	dirName := baseName(dirPath)
	shortName := strings.TrimPrefix(dirName, t.DirPrefix())
	definition := docs.get(ctx, DefinitionDocument)

	key := ""
	if t.IsArtifact() {
		if id, ok := numericID(definition); ok {
			key = id
		} else {
			key = dirName
		}
	} else {
		key = stringValue(definition, models.FieldName)
		if key == "" {
			key = shortName
		}
	}

	row := models.NewRow(t, key)
	row.Name = shortName
	row.Path = dirPath
	writer := newFieldWriter(&row)
	for _, name := range []string{DefinitionDocument, AnalysisDocument, SampleDocument, DetailsDocument} {
		if doc := docs.get(ctx, name); doc != nil {
			writer.apply(doc, name)
		}
	}

	l.finish(ctx, &row, writer, docs)
	return row, true
}

// finish applies staleness, activity backfill and URL derivation
func (l *Loader) finish(ctx context.Context, row *models.Row, writer *fieldWriter, docs *entityDocs) {
	row.Stale = docs.exists(ctx, StaleMarker)

	for _, alias := range timestampAliases {
		if writer.assigned[alias.field] {
			continue
		}
		if doc := docs.get(ctx, alias.document); doc != nil {
			writer.set(alias.field, doc[alias.key], alias.document)
		}
	}

	activity := []string{
		models.FieldLastOverviewAt,
		models.FieldLastSampleAt,
		models.FieldLastDetailAt,
		models.FieldLastAnalysisAt,
	}
	missing := false
	for _, field := range activity {
		if !writer.assigned[field] {
			missing = true
			break
		}
	}
	if missing {
		if modTime, ok := docs.modTime(ctx, OverviewDocument); ok {
			for _, field := range activity {
				writer.set(field, modTime, OverviewDocument)
			}
		}
	}

	if row.Portal.ResourceURL == nil {
		if url, ok := DeriveResourceURL(l.config.URLTemplates, l.config.EnvironmentMarker, *row); ok {
			row.Portal.ResourceURL = models.StringPtr(url)
		}
	}
}

// entityDocs reads the documents of one entity at most once each
type entityDocs struct {
	store store.MetadataStore
	dir   string
	cache map[string]map[string]any
}

func newEntityDocs(st store.MetadataStore, dir string) *entityDocs {
	return &entityDocs{store: st, dir: dir, cache: make(map[string]map[string]any)}
}

func (d *entityDocs) get(ctx context.Context, name string) map[string]any {
	if doc, ok := d.cache[name]; ok {
		return doc
	}
	doc, err := readJSON(ctx, d.store, store.Join(d.dir, name))
	if err != nil {
		logDocumentError(err)
		doc = nil
	}
	d.cache[name] = doc
	return doc
}

func (d *entityDocs) exists(ctx context.Context, name string) bool {
	_, err := d.store.ReadFileInfo(ctx, store.Join(d.dir, name))
	if err == nil {
		return true
	}
	if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("failed to check marker",
			slog.String("path", store.Join(d.dir, name)),
			slog.String("error", err.Error()),
		)
	}
	return false
}

func (d *entityDocs) modTime(ctx context.Context, name string) (time.Time, bool) {
	info, err := d.store.ReadFileInfo(ctx, store.Join(d.dir, name))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Debug("failed to stat document",
				slog.String("path", store.Join(d.dir, name)),
				slog.String("error", err.Error()),
			)
		}
		return time.Time{}, false
	}
	if info.ModTime.IsZero() {
		return time.Time{}, false
	}
	return info.ModTime.UTC(), true
}

// sortRows orders artifacts by display name. Tables keep index order when
// the index supplied them.
func sortRows(rows []models.Row, t models.ResourceType, fromIndex bool) {
	if t == models.ResourceTable && fromIndex {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].Name), strings.ToLower(rows[j].Name)
		if a != b {
			return a < b
		}
		return rows[i].Key < rows[j].Key
	})
}

func baseName(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
