package session

import "github.com/ppiankov/catalogspectre/internal/models"

// carryAnalytics fills the missing analytics and health blocks of freshly
// loaded dashboard rows from the previous generation, so an unchanged
// reload does not blank them until enrichment returns. Rows are cloned
// before they change.
func carryAnalytics(rows, prev []models.Row) []models.Row {
	previous := dashboardsByKey(prev)
	if len(previous) == 0 {
		return rows
	}
	out := make([]models.Row, len(rows))
	for i, row := range rows {
		out[i] = row
		d := row.Dashboard()
		if d == nil || d.Analytics != nil || d.Health != nil {
			continue
		}
		old, ok := previous[row.Key]
		if !ok || (old.Analytics == nil && old.Health == nil) {
			continue
		}
		out[i] = withAnalytics(row, old)
	}
	return out
}

// applyAnalytics overwrites the analytics and health blocks of rows with
// those of enriched, matched by key. Every other field of rows is kept.
func applyAnalytics(rows, enriched []models.Row) []models.Row {
	fresh := dashboardsByKey(enriched)
	out := make([]models.Row, len(rows))
	for i, row := range rows {
		out[i] = row
		d := row.Dashboard()
		if d == nil {
			continue
		}
		src, ok := fresh[row.Key]
		if !ok || sameAnalytics(d, src) {
			continue
		}
		out[i] = withAnalytics(row, src)
	}
	return out
}

func dashboardsByKey(rows []models.Row) map[string]*models.DashboardDetails {
	out := make(map[string]*models.DashboardDetails)
	for _, row := range rows {
		if d := row.Dashboard(); d != nil {
			if _, dup := out[row.Key]; !dup {
				out[row.Key] = d
			}
		}
	}
	return out
}

func withAnalytics(row models.Row, src *models.DashboardDetails) models.Row {
	out := row.Clone()
	d := out.Dashboard()
	d.Analytics = nil
	d.Health = nil
	if src.Analytics != nil {
		window := *src.Analytics
		if src.Analytics.LastViewed != nil {
			window.LastViewed = models.TimePtr(*src.Analytics.LastViewed)
		}
		d.Analytics = &window
	}
	if src.Health != nil {
		score := *src.Health
		d.Health = &score
	}
	return out
}

func sameAnalytics(a, b *models.DashboardDetails) bool {
	if (a.Health == nil) != (b.Health == nil) || (a.Analytics == nil) != (b.Analytics == nil) {
		return false
	}
	if a.Health != nil && *a.Health != *b.Health {
		return false
	}
	if a.Analytics == nil {
		return true
	}
	x, y := *a.Analytics, *b.Analytics
	if (x.LastViewed == nil) != (y.LastViewed == nil) {
		return false
	}
	if x.LastViewed != nil && !x.LastViewed.Equal(*y.LastViewed) {
		return false
	}
	x.LastViewed, y.LastViewed = nil, nil
	return x == y
}
