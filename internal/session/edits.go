package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/catalogspectre/internal/filter"
	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/overlay"
)

// FieldEdit is one cell of a bulk edit
type FieldEdit struct {
	Key   string
	Field string
	Value any
}

// ErrNoCommitSink is returned by Commit when the session has nowhere to
// persist edits
var ErrNoCommitSink = errors.New("no commit sink configured")

// OnEdit records one field edit and publishes the resulting patch
func (s *Session) OnEdit(key, field string, value any) error {
	return s.OnBulkEdit([]FieldEdit{{Key: key, Field: field, Value: value}})
}

// OnBulkEdit records every edit or none and publishes one patch list
func (s *Session) OnBulkEdit(edits []FieldEdit) error {
	if len(edits) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]overlay.Edit, 0, len(edits))
	keys := make([]string, 0, len(edits))
	seen := make(map[string]struct{}, len(edits))
	for _, edit := range edits {
		t, ok := s.byKey[edit.Key]
		if !ok {
			return fmt.Errorf("%w: %q", models.ErrUnknownRow, edit.Key)
		}
		batch = append(batch, overlay.Edit{Key: edit.Key, Type: t, Field: edit.Field, Value: edit.Value})
		if _, dup := seen[edit.Key]; !dup {
			seen[edit.Key] = struct{}{}
			keys = append(keys, edit.Key)
		}
	}

	if err := s.overlay.SetBatch(batch); err != nil {
		return err
	}
	s.refreshLocked(s.shownGen, keys)
	return nil
}

// SetReviewFilter changes the review mode and publishes the rows that
// entered or left the view
func (s *Session) SetReviewFilter(mode filter.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == s.mode {
		return
	}
	s.mode = mode
	if !s.shown {
		return
	}
	s.refreshLocked(s.shownGen, nil)
}

// Discard drops the pending edits of keys, or all of them when no key is
// given, and returns how many rows were reverted
func (s *Session) Discard(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := s.overlay.Take(keys...)
	if len(taken) == 0 {
		return 0
	}
	s.refreshLocked(s.shownGen, entryKeys(taken))
	return len(taken)
}

// Commit persists the pending edits of keys (all when none are given) and
// folds them into the canonical rows. On failure the edits stay pending.
func (s *Session) Commit(ctx context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		return 0, ErrNoCommitSink
	}

	taken := s.overlay.Take(keys...)
	if len(taken) == 0 {
		return 0, nil
	}
	if err := s.sink.Append(ctx, taken); err != nil {
		s.overlay.Restore(taken)
		return 0, fmt.Errorf("failed to commit %d edits: %w", len(taken), err)
	}

	byKey := make(map[string]overlay.Entry, len(taken))
	for _, entry := range taken {
		byKey[entry.Key] = entry
	}
	committed := make([]models.Row, len(s.canonical))
	for i, row := range s.canonical {
		if entry, ok := byKey[row.Key]; ok {
			committed[i] = overlay.Merge(row, entry)
			continue
		}
		committed[i] = row
	}
	s.setCanonicalLocked(committed)
	s.refreshLocked(s.shownGen, entryKeys(taken))

	s.log.Info("edits committed", slog.Int("rows", len(taken)))
	return len(taken), nil
}

func entryKeys(entries []overlay.Entry) []string {
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}
	return keys
}
