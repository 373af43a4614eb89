package models

import "time"

// FeedEvent is one row of the external engagement feed
type FeedEvent struct {
	EntityRef  string    `json:"entity_ref"`
	Date       time.Time `json:"date"`
	ViewCount  int64     `json:"view_count"`
	UserID     string    `json:"user_id,omitempty"`
	IsInternal bool      `json:"is_internal"`
}

// AnalyticsWindow is the trailing-window aggregate of one dashboard
type AnalyticsWindow struct {
	Views7d        int64      `json:"views_7d"`
	Views30d       int64      `json:"views_30d"`
	Views90d       int64      `json:"views_90d"`
	UniqueUsers30d int64      `json:"unique_users_30d"`
	LastViewed     *time.Time `json:"last_viewed"`
}

// HealthStatus is the engagement bucket derived from a health score
type HealthStatus string

const (
	HealthUnused    HealthStatus = "unused"
	HealthDead      HealthStatus = "dead"
	HealthStale     HealthStatus = "stale"
	HealthDeclining HealthStatus = "declining"
	HealthActive    HealthStatus = "active"
)

// HealthStatuses lists statuses from best to worst
func HealthStatuses() []HealthStatus {
	return []HealthStatus{HealthActive, HealthDeclining, HealthStale, HealthDead, HealthUnused}
}

// HealthScore is the 0-100 engagement score of a dashboard
type HealthScore struct {
	Score  int          `json:"score"`
	Status HealthStatus `json:"status"`
}
