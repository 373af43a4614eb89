package reporter

import (
	"github.com/ppiankov/catalogspectre/internal/models"
)

// Summarize counts rows per resource type, health status and review mode.
// modified is the number of rows with pending edits.
func Summarize(rows []models.Row, needsReviewMarker string, modified int) models.Summary {
	summary := models.Summary{
		TotalRows: len(rows),
		ByType:    make(map[string]int),
		ByHealth:  make(map[string]int),
		Modified:  modified,
	}
	for _, row := range rows {
		summary.ByType[string(row.Type)]++
		if row.Stale {
			summary.Deleted++
		}
		if action, _ := row.Get(models.FieldAction).(string); action != "" && action == needsReviewMarker {
			summary.NeedsReview++
		}
		if row.Type != models.ResourceDashboard {
			continue
		}
		if status, ok := row.Get(models.FieldHealthStatus).(string); ok {
			summary.ByHealth[status]++
		} else {
			summary.ByHealth["unscored"]++
		}
	}
	return summary
}
