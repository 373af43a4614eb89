// Package filter selects the rows a reviewer wants to see.
package filter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/overlay"
)

// Mode is a review filter
type Mode string

const (
	ModeAll         Mode = "all"
	ModeNeedsReview Mode = "needs-review"
	ModeModified    Mode = "modified"
	ModeDeleted     Mode = "deleted"
)

// Modes lists every review mode
func Modes() []Mode {
	return []Mode{ModeAll, ModeNeedsReview, ModeModified, ModeDeleted}
}

// ParseMode converts user input into a Mode. Empty input means all.
func ParseMode(value string) (Mode, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	if normalized == "" {
		return ModeAll, nil
	}
	for _, mode := range Modes() {
		if string(mode) == normalized {
			return mode, nil
		}
	}
	return "", fmt.Errorf("invalid review mode %q: must be one of all, needs-review, modified, deleted", value)
}

// Criteria are the inputs of a predicate evaluation
type Criteria struct {
	Mode              Mode
	NeedsReviewMarker string
	Overlay           overlay.Snapshot
}

// Match reports whether a merged row passes the review mode
func Match(row models.Row, c Criteria) bool {
	switch c.Mode {
	case ModeNeedsReview:
		action, _ := row.Get(models.FieldAction).(string)
		return action == c.NeedsReviewMarker
	case ModeModified:
		return c.Overlay.Has(row.Key)
	case ModeDeleted:
		return row.Stale
	default:
		return true
	}
}

type cacheKey struct {
	generation uint64
	version    uint64
	mode       Mode
}

// Engine applies a review mode to merged rows and caches the result until
// the generation, the overlay version or the mode changes.
type Engine struct {
	marker string

	mu     sync.Mutex
	key    cacheKey
	cached []models.Row
	valid  bool
}

// NewEngine creates an engine that treats rows whose action equals marker
// as needing review
func NewEngine(marker string) *Engine {
	return &Engine{marker: marker}
}

// Filter returns the rows of merged that pass mode. generation identifies
// the canonical row set merged was built from.
func (e *Engine) Filter(generation uint64, snapshot overlay.Snapshot, mode Mode, merged []models.Row) []models.Row {
	key := cacheKey{generation: generation, version: snapshot.Version(), mode: mode}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.valid && e.key == key {
		return copyRows(e.cached)
	}

	criteria := Criteria{Mode: mode, NeedsReviewMarker: e.marker, Overlay: snapshot}
	out := make([]models.Row, 0, len(merged))
	for _, row := range merged {
		if Match(row, criteria) {
			out = append(out, row)
		}
	}

	e.key = key
	e.cached = out
	e.valid = true
	return copyRows(out)
}

// Invalidate drops the cached result
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.valid = false
	e.cached = nil
}

func copyRows(rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	copy(out, rows)
	return out
}
