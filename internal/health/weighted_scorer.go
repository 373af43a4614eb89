package health

import (
	"time"

	"github.com/ppiankov/catalogspectre/internal/models"
)

// weeksPerMonth pro-rates 30-day views into a weekly share
const weeksPerMonth = 4.3

// WeightedScorer implements the fixed-weight recency/frequency/trend score
type WeightedScorer struct{}

// Score calculates a score for a dashboard (0 - 100)
func (s *WeightedScorer) Score(window models.AnalyticsWindow, now time.Time) int {
	if window.Views90d <= 0 {
		return 0
	}

	total := recencyPoints(window, now) + frequencyPoints(window) + trendPoints(window)
	if total > 100 {
		total = 100
	}
	return total
}

// Categorize returns a status based on the score
func (s *WeightedScorer) Categorize(score int) models.HealthStatus {
	switch {
	case score >= 80:
		return models.HealthActive
	case score >= 50:
		return models.HealthDeclining
	case score >= 20:
		return models.HealthStale
	case score >= 1:
		return models.HealthDead
	default:
		return models.HealthUnused
	}
}

// Factor 1: days since the last non-zero view (40 points)
func recencyPoints(window models.AnalyticsWindow, now time.Time) int {
	if window.LastViewed == nil {
		return 0
	}

	days := DaysBetween(*window.LastViewed, now)
	switch {
	case days <= 7:
		return 40
	case days <= 14:
		return 30
	case days <= 30:
		return 20
	case days <= 60:
		return 10
	default:
		return 0
	}
}

// Factor 2: view volume, first matching tier (30 points)
func frequencyPoints(window models.AnalyticsWindow) int {
	switch {
	case window.Views7d >= 10:
		return 30
	case window.Views30d >= 20:
		return 25
	case window.Views30d >= 5:
		return 15
	case window.Views90d >= 5:
		return 10
	default:
		return 5
	}
}

// Factor 3: this week against the pro-rated monthly share (30 points)
func trendPoints(window models.AnalyticsWindow) int {
	if window.Views30d > 0 && window.Views7d > 0 {
		weeklyShare := float64(window.Views30d) / weeksPerMonth
		if float64(window.Views7d) >= 0.8*weeklyShare {
			return 30
		}
		return 15
	}
	if window.Views90d > 0 && window.Views30d == 0 {
		return 5
	}
	return 10
}
