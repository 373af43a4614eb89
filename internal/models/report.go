package models

import "time"

// Report is the complete output structure of a review run
type Report struct {
	Tool      string   `json:"tool"`
	Version   string   `json:"version"`
	Timestamp string   `json:"timestamp"`
	Metadata  Metadata `json:"metadata"`
	Rows      []Row    `json:"rows"`
	Summary   Summary  `json:"summary"`

	Recommendations Recommendations `json:"recommendations"`
}

// Metadata contains report generation info
type Metadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	StoreRoot        string    `json:"store_root"`
	ResourceTypes    []string  `json:"resource_types"`
	ReviewMode       string    `json:"review_mode"`
	Generation       uint64    `json:"generation"`
	LoadDuration     string    `json:"load_duration"`
	Version          string    `json:"version"`
	AnalyticsEnabled bool      `json:"analytics_enabled"`
	PendingEdits     int       `json:"pending_edits"`
}

// Summary groups row counts for the report header
type Summary struct {
	TotalRows   int            `json:"total_rows"`
	ByType      map[string]int `json:"by_type"`
	ByHealth    map[string]int `json:"by_health"`
	NeedsReview int            `json:"needs_review"`
	Modified    int            `json:"modified"`
	Deleted     int            `json:"deleted"`
}

// Recommendations buckets scored dashboards by what a reviewer should do
// with them. Values are row keys.
type Recommendations struct {
	Retire   []string `json:"retire"`
	Review   []string `json:"review"`
	Keep     []string `json:"keep"`
	Unscored []string `json:"unscored"`
}
