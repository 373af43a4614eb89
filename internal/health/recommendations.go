package health

import (
	"log/slog"
	"sort"

	"github.com/ppiankov/catalogspectre/internal/models"
)

// GenerateRecommendations buckets enriched dashboard rows by health status.
// Rows already marked stale are left out: their source entity is gone.
func GenerateRecommendations(rows []models.Row) models.Recommendations {
	// Initialize as empty slices instead of nil to avoid JSON null values
	recs := models.Recommendations{
		Retire:   []string{},
		Review:   []string{},
		Keep:     []string{},
		Unscored: []string{},
	}

	type scored struct {
		key   string
		score int
	}
	var retire, review []scored

	for _, row := range rows {
		dashboard := row.Dashboard()
		if dashboard == nil || row.Stale {
			continue
		}
		if dashboard.Health == nil {
			recs.Unscored = append(recs.Unscored, row.Key)
			continue
		}

		switch dashboard.Health.Status {
		case models.HealthActive:
			recs.Keep = append(recs.Keep, row.Key)
		case models.HealthDeclining, models.HealthStale:
			review = append(review, scored{key: row.Key, score: dashboard.Health.Score})
		default:
			retire = append(retire, scored{key: row.Key, score: dashboard.Health.Score})
		}
	}

	// Lowest score first = most obvious candidates
	for _, bucket := range []*[]scored{&retire, &review} {
		sort.SliceStable(*bucket, func(i, j int) bool {
			a, b := (*bucket)[i], (*bucket)[j]
			if a.score != b.score {
				return a.score < b.score
			}
			return a.key < b.key
		})
	}
	for _, item := range retire {
		recs.Retire = append(recs.Retire, item.key)
	}
	for _, item := range review {
		recs.Review = append(recs.Review, item.key)
	}
	sort.Strings(recs.Keep)
	sort.Strings(recs.Unscored)

	slog.Debug("recommendations summary",
		slog.Int("retire", len(recs.Retire)),
		slog.Int("review", len(recs.Review)),
		slog.Int("keep", len(recs.Keep)),
		slog.Int("unscored", len(recs.Unscored)),
	)

	return recs
}
