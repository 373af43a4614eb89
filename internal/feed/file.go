package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/catalogspectre/internal/models"
)

// FileFeed serves view events from a JSON-lines export. Each line is one
// event object carrying its domain.
type FileFeed struct {
	path string
}

type fileRecord struct {
	Domain     string `json:"domain"`
	EntityRef  string `json:"entity_ref"`
	Date       string `json:"date"`
	ViewCount  int64  `json:"view_count"`
	UserID     string `json:"user_id"`
	IsInternal bool   `json:"is_internal"`
}

// NewFileFeed creates a feed over the export at path
func NewFileFeed(path string) *FileFeed {
	return &FileFeed{path: path}
}

// Query reads the export and returns matching non-internal events
func (f *FileFeed) Query(ctx context.Context, domain, pathPrefix string) ([]models.FeedEvent, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file %q: %w", f.path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		events  []models.FeedEvent
		lineNum int
		skipped int
	)
	for scanner.Scan() {
		lineNum++
		if lineNum%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record fileRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			skipped++
			continue
		}
		if record.Domain != domain || record.IsInternal || !strings.HasPrefix(record.EntityRef, pathPrefix) {
			continue
		}
		date, err := parseDate(record.Date)
		if err != nil {
			skipped++
			continue
		}

		events = append(events, models.FeedEvent{
			EntityRef: record.EntityRef,
			Date:      date,
			ViewCount: record.ViewCount,
			UserID:    record.UserID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feed file %q: %w", f.path, err)
	}

	if skipped > 0 {
		slog.Warn("skipped malformed feed lines", slog.String("path", f.path), slog.Int("skipped", skipped))
	}
	return events, nil
}

// Close is a no-op
func (f *FileFeed) Close() error { return nil }

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, value)
}
