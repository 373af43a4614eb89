package main

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/catalogspectre/internal/filter"
	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/store"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

// options holds the flags shared by every command that loads rows
type options struct {
	configPath     string
	storeBase      string
	root           string
	types          []string
	concurrency    int
	cacheTTL       string
	storeRateLimit int
	feedDSN        string
	feedTable      string
	feedFile       string
	feedTimeout    string
	lookback       string
	mode           string
	marker         string
	commitLog      string
	exclude        []string
}

func (o *options) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.configPath, "config", "", "Config file (default: .catalogspectre.yaml in the working or home directory)")
	flags.StringVar(&o.storeBase, "store", ".", "Local directory backing the metadata tree")
	flags.StringVar(&o.root, "root", "/", "Root of the metadata tree to review")
	flags.StringSliceVar(&o.types, "type", []string{"dashboard"}, "Resource types to load (table, query, dashboard, workflow)")
	flags.IntVar(&o.concurrency, "concurrency", 5, "Entity loading worker pool size")
	flags.StringVar(&o.cacheTTL, "cache-ttl", "0", "Document cache TTL (e.g., 30s, 5m); 0 disables the cache")
	flags.IntVar(&o.storeRateLimit, "store-rate-limit", 0, "Store rate limit (requests/sec); 0 disables limiting")
	flags.StringVar(&o.feedDSN, "feed-dsn", "", "ClickHouse DSN of the engagement feed")
	flags.StringVar(&o.feedTable, "feed-table", "view_events", "ClickHouse table holding engagement events")
	flags.StringVar(&o.feedFile, "feed-file", "", "JSON-lines export of engagement events")
	flags.StringVar(&o.feedTimeout, "feed-timeout", "2m", "Feed query timeout (e.g., 30s, 2m)")
	flags.StringVar(&o.lookback, "lookback", "90d", "Feed lookback period (e.g., 30d, 90d)")
	flags.StringVar(&o.mode, "mode", "all", "Review filter (all, needs-review, modified, deleted)")
	flags.StringVar(&o.marker, "needs-review-marker", "Needs Review", "Action value that marks a row for review")
	flags.StringVar(&o.commitLog, "commit-log", "", "Commit log file (default: user config directory)")
	flags.StringSliceVar(&o.exclude, "exclude", nil, "Entity name patterns to skip (repeatable)")
}

// resolve builds the effective config: defaults, then the config file, then
// flags the user set explicitly.
func (o *options) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	fileCfg, source, err := o.loadFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := fileCfg.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", source, err)
		}
		slog.Debug("loaded config file", slog.String("path", source))
	}

	changed := cmd.Flags().Changed
	if changed("store") {
		cfg.StoreBase = o.storeBase
	}
	if changed("root") {
		cfg.StoreRoot = o.root
	}
	if changed("type") {
		cfg.ResourceTypes = append([]string(nil), o.types...)
	}
	if changed("concurrency") {
		if o.concurrency <= 0 {
			return nil, fmt.Errorf("--concurrency must be greater than 0, got %d", o.concurrency)
		}
		cfg.Concurrency = o.concurrency
	}
	if changed("store-rate-limit") {
		cfg.StoreRateLimit = o.storeRateLimit
	}
	if changed("feed-dsn") {
		cfg.FeedDSN = o.feedDSN
	}
	if changed("feed-table") {
		cfg.FeedTable = o.feedTable
	}
	if changed("feed-file") {
		cfg.FeedFile = o.feedFile
	}
	if changed("mode") {
		cfg.ReviewMode = o.mode
	}
	if changed("needs-review-marker") {
		cfg.NeedsReviewMarker = o.marker
	}
	if changed("commit-log") {
		cfg.CommitLogPath = o.commitLog
	}
	if changed("exclude") {
		cfg.ExcludeEntities = append([]string(nil), o.exclude...)
	}

	durations := []struct {
		flag   string
		value  string
		target *time.Duration
	}{
		{flag: "cache-ttl", value: o.cacheTTL, target: &cfg.CacheTTL},
		{flag: "feed-timeout", value: o.feedTimeout, target: &cfg.FeedTimeout},
		{flag: "lookback", value: o.lookback, target: &cfg.FeedLookback},
	}
	for _, d := range durations {
		if !changed(d.flag) {
			continue
		}
		parsed, err := config.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s duration: %w", d.flag, err)
		}
		*d.target = parsed
	}

	if _, err := resourceTypes(cfg); err != nil {
		return nil, err
	}
	mode, err := filter.ParseMode(cfg.ReviewMode)
	if err != nil {
		return nil, err
	}
	cfg.ReviewMode = string(mode)
	cfg.StoreRoot = store.Clean(cfg.StoreRoot)
	cfg.Normalize()
	return cfg, nil
}

func (o *options) loadFile() (*config.FileConfig, string, error) {
	if strings.TrimSpace(o.configPath) != "" {
		fileCfg, err := config.LoadFile(o.configPath)
		return fileCfg, o.configPath, err
	}
	return config.AutoLoadFile()
}

// resourceTypes parses cfg.ResourceTypes, dropping duplicates
func resourceTypes(cfg *config.Config) ([]models.ResourceType, error) {
	if len(cfg.ResourceTypes) == 0 {
		return nil, fmt.Errorf("at least one resource type is required")
	}
	seen := make(map[models.ResourceType]bool)
	var out []models.ResourceType
	for _, value := range cfg.ResourceTypes {
		t, err := models.ParseResourceType(value)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// typeRoot returns the directory rows of t are loaded from. A single type
// loads from root itself; several types load from the plural directory below root
// (tables, queries, dashboards, workflows).
func typeRoot(root string, t models.ResourceType, multi bool) string {
	if !multi {
		return root
	}
	dir := string(t) + "s"
	if t == models.ResourceQuery {
		dir = "queries"
	}
	return store.Clean(path.Join(root, dir))
}

// storeStack is the metadata store with its optional cache layer
type storeStack struct {
	fs    *store.FSStore
	cache *store.CachedStore
	store store.MetadataStore
}

// openStore layers the cache and rate limiter over the local tree. A cache
// is always added when forceCache is set, falling back to defaultTTL.
func openStore(cfg *config.Config, forceCache bool, defaultTTL time.Duration) (*storeStack, error) {
	fsStore, err := store.NewFSStore(cfg.StoreBase)
	if err != nil {
		return nil, err
	}
	stack := &storeStack{fs: fsStore, store: fsStore}

	if cfg.StoreRateLimit > 0 {
		stack.store = store.NewRateLimitedStore(stack.store, cfg.StoreRateLimit)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 && forceCache {
		ttl = defaultTTL
	}
	if ttl > 0 {
		stack.cache = store.NewCachedStore(stack.store, ttl)
		stack.store = stack.cache
	}
	return stack, nil
}
