package overlay

import (
	"github.com/ppiankov/catalogspectre/internal/models"
)

// Merge returns a copy of row with every field of entry applied over it.
// Fields that do not exist on the row's variant are ignored, as is an entry
// recorded for another resource type. Read-only fields are never
// overridden. row is never modified.
func Merge(row models.Row, entry Entry) models.Row {
	merged := row.Clone()
	if entry.Type != "" && entry.Type != row.Type {
		return merged
	}
	for _, field := range entry.FieldNames() {
		if spec, ok := models.LookupField(row.Type, field); !ok || !spec.Editable {
			continue
		}
		_ = merged.Set(field, entry.Fields[field])
	}
	return merged
}

// Apply merges snapshot entries over rows and returns the merged list in
// the same order. Rows without an entry are returned as they are.
func Apply(rows []models.Row, snapshot Snapshot) []models.Row {
	out := make([]models.Row, len(rows))
	for i, row := range rows {
		if entry, ok := snapshot.entries[row.Key]; ok {
			out[i] = Merge(row, entry)
			continue
		}
		out[i] = row
	}
	return out
}
