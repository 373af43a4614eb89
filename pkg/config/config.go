package config

import "time"

// Config holds all runtime configuration
type Config struct {
	// Metadata store settings
	StoreBase      string
	StoreRoot      string
	ResourceTypes  []string
	Concurrency    int
	CacheTTL       time.Duration
	StoreRateLimit int

	// Row loading settings
	EnvironmentMarker string
	URLTemplates      URLTemplates
	ExcludeEntities   []string

	// Analytics feed settings
	FeedDSN      string
	FeedTable    string
	FeedFile     string
	FeedTimeout  time.Duration
	FeedLookback time.Duration

	// Review settings
	ReviewMode        string
	NeedsReviewMarker string
	CommitLogPath     string

	// Watch settings
	WatchDebounce time.Duration

	// Output settings
	OutputDir string
	Format    string

	// Operational flags
	Verbose bool
	DryRun  bool
}

// URLTemplates are the resource URL patterns used when an entity has no
// recorded URL. {domain}, {id}, {catalog}, {schema} and {name} are replaced.
type URLTemplates struct {
	Dashboard string `yaml:"dashboard"`
	Query     string `yaml:"query"`
	Workflow  string `yaml:"workflow"`
	Table     string `yaml:"table"`
	Domain    string `yaml:"domain"`
}

// DefaultURLTemplates returns the built-in URL patterns
func DefaultURLTemplates() URLTemplates {
	return URLTemplates{
		Dashboard: "https://{domain}/sql/dashboards/{id}",
		Query:     "https://{domain}/sql/queries/{id}",
		Workflow:  "https://{domain}/jobs/{id}",
		Table:     "https://{domain}/explore/data/{catalog}/{schema}/{name}",
		Domain:    "https://{domain}/",
	}
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		StoreBase:         ".",
		StoreRoot:         "/",
		ResourceTypes:     []string{"dashboard"},
		Concurrency:       5,
		CacheTTL:          0,
		StoreRateLimit:    0,
		EnvironmentMarker: "environments",
		URLTemplates:      DefaultURLTemplates(),
		ExcludeEntities:   []string{},
		FeedTable:         "view_events",
		FeedTimeout:       2 * time.Minute,
		FeedLookback:      90 * 24 * time.Hour, // 90 days
		ReviewMode:        "all",
		NeedsReviewMarker: "Needs Review",
		CommitLogPath:     "",
		WatchDebounce:     500 * time.Millisecond,
		OutputDir:         "./report",
		Format:            "json",
		Verbose:           false,
		DryRun:            false,
	}
}
