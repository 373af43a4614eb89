package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/store"
)

// Document names inside an entity directory
const (
	IndexDocument      = "index.json"
	DefinitionDocument = "definition.json"
	AnalysisDocument   = "analysis.json"
	SampleDocument     = "sample.json"
	DetailsDocument    = "details.json"
	StaleMarker        = "STALE"
	OverviewDocument   = "overview.md"
)

// timestampAliases maps the timestamp a supporting document records about
// itself onto the activity field it backfills.
var timestampAliases = []struct {
	document string
	key      string
	field    string
}{
	{document: SampleDocument, key: "sampled_at", field: models.FieldLastSampleAt},
	{document: DetailsDocument, key: "generated_at", field: models.FieldLastDetailAt},
	{document: AnalysisDocument, key: "analyzed_at", field: models.FieldLastAnalysisAt},
}

// structural fields are owned by the loader, never copied from documents
var structuralFields = map[string]bool{
	models.FieldKey:  true,
	models.FieldType: true,
	models.FieldPath: true,
}

type indexDocument struct {
	Entries []map[string]any `json:"entries"`
}

// readJSON reads and decodes one per-entity document into a field map
func readJSON(ctx context.Context, st store.MetadataStore, docPath string) (map[string]any, error) {
	content, err := st.ReadDocument(ctx, docPath)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &models.DocumentError{Path: docPath, Kind: models.ErrDocumentMissing}
		}
		return nil, &models.DocumentError{Path: docPath, Kind: models.ErrDocumentMalformed, Err: err}
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, &models.DocumentError{Path: docPath, Kind: models.ErrDocumentMalformed, Err: err}
	}
	if doc == nil {
		return nil, &models.DocumentError{Path: docPath, Kind: models.ErrDocumentMalformed, Err: fmt.Errorf("document is not an object")}
	}
	return doc, nil
}

// readIndex reads the consolidated index. ok is false when the index is
// absent, unreadable, unparseable or empty.
func readIndex(ctx context.Context, st store.MetadataStore, root string) ([]map[string]any, bool) {
	docPath := store.Join(root, IndexDocument)
	content, err := st.ReadDocument(ctx, docPath)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Debug("no index document, scanning directories", slog.String("root", root))
		} else {
			slog.Warn("index document unreadable, scanning directories",
				slog.String("path", docPath),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var index indexDocument
	if err := json.Unmarshal([]byte(content), &index); err != nil {
		// Tolerate a bare array of entries.
		var entries []map[string]any
		if arrErr := json.Unmarshal([]byte(content), &entries); arrErr != nil {
			slog.Warn("index document malformed, scanning directories",
				slog.String("path", docPath),
				slog.String("error", err.Error()),
			)
			return nil, false
		}
		index.Entries = entries
	}

	entries := make([]map[string]any, 0, len(index.Entries))
	for _, entry := range index.Entries {
		if entry != nil {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		slog.Debug("index document empty, scanning directories", slog.String("path", docPath))
		return nil, false
	}
	return entries, true
}

// logDocumentError logs a per-entity document failure at a level matching its kind
func logDocumentError(err error) {
	if errors.Is(err, models.ErrDocumentMissing) {
		slog.Debug("document missing", slog.String("error", err.Error()))
		return
	}
	slog.Warn("document malformed", slog.String("error", err.Error()))
}

// fieldWriter copies document values into a row. The first document to
// supply a field wins.
type fieldWriter struct {
	row      *models.Row
	assigned map[string]bool
}

func newFieldWriter(row *models.Row) *fieldWriter {
	return &fieldWriter{row: row, assigned: make(map[string]bool)}
}

func (w *fieldWriter) apply(doc map[string]any, source string) {
	for _, spec := range models.FieldSpecs(w.row.Type) {
		if structuralFields[spec.Name] || !spec.Writable() {
			continue
		}
		raw, ok := doc[spec.Name]
		if !ok || raw == nil {
			continue
		}
		w.set(spec.Name, raw, source)
	}
}

func (w *fieldWriter) set(field string, raw any, source string) {
	if w.assigned[field] || raw == nil {
		return
	}
	if err := w.row.Set(field, raw); err != nil {
		slog.Debug("ignoring field value",
			slog.String("source", source),
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
		return
	}
	w.assigned[field] = true
}

// numericID returns the numeric identifier of a document, if any
func numericID(doc map[string]any) (string, bool) {
	raw, ok := doc["id"]
	if !ok || raw == nil {
		return "", false
	}

	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) || v < 0 {
			return "", false
		}
		return strconv.FormatInt(int64(v), 10), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", false
		}
		if _, err := strconv.ParseUint(trimmed, 10, 64); err != nil {
			return "", false
		}
		return trimmed, true
	default:
		return "", false
	}
}

func stringValue(doc map[string]any, key string) string {
	if doc == nil {
		return ""
	}
	s, _ := doc[key].(string)
	return strings.TrimSpace(s)
}
