package reconcile

import (
	"github.com/ppiankov/catalogspectre/internal/models"
)

// Reconciler remembers the last displayed rows and reports what changed
// when a new list is displayed. It is not safe for concurrent use; the
// session serializes every call.
type Reconciler struct {
	rows []models.Row
}

// New creates a reconciler with nothing displayed
func New() *Reconciler {
	return &Reconciler{}
}

// Rows returns the rows currently displayed
func (r *Reconciler) Rows() []models.Row {
	out := make([]models.Row, len(r.rows))
	copy(out, r.rows)
	return out
}

// Len returns the number of displayed rows
func (r *Reconciler) Len() int { return len(r.rows) }

// Replace sets the displayed rows without computing patches
func (r *Reconciler) Replace(rows []models.Row) {
	r.rows = copyRows(rows)
}

// Reconcile diffs rows against the displayed list and makes rows current
func (r *Reconciler) Reconcile(rows []models.Row) []models.Patch {
	patches := Diff(r.rows, rows)
	r.rows = copyRows(rows)
	return patches
}

// ReconcileKeys is Reconcile restricted to keys. Rows outside keys are
// assumed unchanged and are not compared, which keeps single-row edits
// proportional to the edit instead of the list.
func (r *Reconciler) ReconcileKeys(rows []models.Row, keys []string) []models.Patch {
	if len(keys) == 0 {
		r.rows = copyRows(rows)
		return nil
	}

	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}

	patches := Diff(selectKeys(r.rows, wanted), selectKeys(rows, wanted))
	r.rows = copyRows(rows)
	return patches
}

func selectKeys(rows []models.Row, keys map[string]struct{}) []models.Row {
	var out []models.Row
	for _, row := range rows {
		if _, ok := keys[row.Key]; ok {
			out = append(out, row)
		}
	}
	return out
}

func copyRows(rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	copy(out, rows)
	return out
}
