package analytics

import (
	"time"

	"github.com/ppiankov/catalogspectre/internal/health"
	"github.com/ppiankov/catalogspectre/internal/models"
)

// Trailing window lengths in whole days. An event of age a is inside a
// window of length n when a < n.
const (
	window7d  = 7
	window30d = 30
	window90d = 90
)

// Aggregate folds feed events into one trailing-window aggregate per entity
// reference, anchored at now. Internal traffic and events without a
// reference are ignored; future-dated events count as age 0.
func Aggregate(events []models.FeedEvent, now time.Time) map[string]models.AnalyticsWindow {
	windows := make(map[string]*models.AnalyticsWindow)
	users := make(map[string]map[string]struct{})

	for _, event := range events {
		if event.IsInternal || event.EntityRef == "" {
			continue
		}

		window, exists := windows[event.EntityRef]
		if !exists {
			window = &models.AnalyticsWindow{}
			windows[event.EntityRef] = window
		}

		views := event.ViewCount
		if views < 0 {
			views = 0
		}

		age := health.DaysBetween(event.Date, now)
		if age < window90d {
			window.Views90d += views
		}
		if age < window30d {
			window.Views30d += views
			if event.UserID != "" {
				seen, ok := users[event.EntityRef]
				if !ok {
					seen = make(map[string]struct{})
					users[event.EntityRef] = seen
				}
				seen[event.UserID] = struct{}{}
			}
		}
		if age < window7d {
			window.Views7d += views
		}

		if views > 0 && (window.LastViewed == nil || event.Date.After(*window.LastViewed)) {
			last := event.Date.UTC()
			window.LastViewed = &last
		}
	}

	result := make(map[string]models.AnalyticsWindow, len(windows))
	for ref, window := range windows {
		window.UniqueUsers30d = int64(len(users[ref]))
		result[ref] = *window
	}
	return result
}
