// Package reconcile computes the minimal set of row patches that turns one
// displayed row list into the next.
package reconcile

import (
	"github.com/ppiankov/catalogspectre/internal/models"
)

// Diff returns the patches that turn prev into next. Removals come first in
// prev order, then inserts and updates in next order. Rows whose fields are
// all equal produce nothing.
func Diff(prev, next []models.Row) []models.Patch {
	prevByKey := indexRows(prev)
	nextByKey := indexRows(next)

	var patches []models.Patch
	for _, row := range prev {
		if _, ok := nextByKey[row.Key]; !ok {
			patches = append(patches, models.Patch{Op: models.PatchRemove, Key: row.Key})
		}
	}

	for _, row := range next {
		old, ok := prevByKey[row.Key]
		if !ok {
			inserted := row.Clone()
			patches = append(patches, models.Patch{Op: models.PatchInsert, Key: row.Key, Row: &inserted})
			continue
		}
		if old.Type != row.Type {
			inserted := row.Clone()
			patches = append(patches,
				models.Patch{Op: models.PatchRemove, Key: row.Key},
				models.Patch{Op: models.PatchInsert, Key: row.Key, Row: &inserted},
			)
			continue
		}
		if changes := FieldChanges(old, row); len(changes) > 0 {
			patches = append(patches, models.Patch{Op: models.PatchUpdate, Key: row.Key, Changes: changes})
		}
	}
	return patches
}

// FieldChanges lists the fields of next whose value differs from prev.
// Both rows must share a resource type.
func FieldChanges(prev, next models.Row) []models.FieldChange {
	before := prev.Fields()
	after := next.Fields()

	var changes []models.FieldChange
	for i, field := range after {
		if i >= len(before) || before[i].Name != field.Name {
			continue
		}
		if !models.ValuesEqual(before[i].Value, field.Value) {
			changes = append(changes, models.FieldChange{
				Field: field.Name,
				Old:   before[i].Value,
				New:   field.Value,
			})
		}
	}
	return changes
}

func indexRows(rows []models.Row) map[string]models.Row {
	index := make(map[string]models.Row, len(rows))
	for _, row := range rows {
		if _, exists := index[row.Key]; !exists {
			index[row.Key] = row
		}
	}
	return index
}
