// Package health turns a dashboard's trailing-window analytics into a 0-100
// engagement score and status.
package health

import (
	"time"

	"github.com/ppiankov/catalogspectre/internal/models"
)

// Scorer interface for dashboard health scoring algorithms
type Scorer interface {
	Score(window models.AnalyticsWindow, now time.Time) int
	Categorize(score int) models.HealthStatus
}

// NewScorer returns the weighted scorer, the only algorithm
func NewScorer() Scorer {
	return &WeightedScorer{}
}

// Evaluate scores window and categorizes the result
func Evaluate(s Scorer, window models.AnalyticsWindow, now time.Time) models.HealthScore {
	score := s.Score(window, now)
	return models.HealthScore{Score: score, Status: s.Categorize(score)}
}

// Score evaluates window with the weighted scorer
func Score(window models.AnalyticsWindow, now time.Time) models.HealthScore {
	return Evaluate(NewScorer(), window, now)
}

// DaysBetween returns the whole calendar days from from to to, in UTC.
// A from after to yields 0.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.UTC().Date()
	ty, tm, td := to.UTC().Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(start).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
