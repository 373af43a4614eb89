package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".catalogspectre.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".catalogspectre.yml"
)

// FileConfig represents values loaded from a .catalogspectre.yaml file.
type FileConfig struct {
	StoreBase         string        `yaml:"store_base"`
	StoreRoot         string        `yaml:"store_root"`
	ResourceTypes     []string      `yaml:"resource_types"`
	Concurrency       *int          `yaml:"concurrency"`
	CacheTTL          string        `yaml:"cache_ttl"`
	StoreRateLimit    *int          `yaml:"store_rate_limit"`
	EnvironmentMarker string        `yaml:"environment_marker"`
	URLTemplates      *URLTemplates `yaml:"url_templates"`
	ExcludeEntities   []string      `yaml:"exclude_entities"`
	FeedURL           string        `yaml:"feed_url"`
	FeedDSN           string        `yaml:"feed_dsn"`
	FeedTable         string        `yaml:"feed_table"`
	FeedFile          string        `yaml:"feed_file"`
	Timeout           string        `yaml:"timeout"`
	FeedTimeout       string        `yaml:"feed_timeout"`
	Lookback          string        `yaml:"lookback"`
	ReviewMode        string        `yaml:"review_mode"`
	NeedsReviewMarker string        `yaml:"needs_review_marker"`
	CommitLog         string        `yaml:"commit_log"`
	Format            string        `yaml:"format"`
}

// FeedEndpoint returns the first configured analytics feed endpoint.
func (fc *FileConfig) FeedEndpoint() string {
	if fc == nil {
		return ""
	}
	if dsn := strings.TrimSpace(fc.FeedDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(fc.FeedURL)
}

// FeedTimeoutValue returns timeout from timeout/feed_timeout fields.
func (fc *FileConfig) FeedTimeoutValue() string {
	if fc == nil {
		return ""
	}
	if timeout := strings.TrimSpace(fc.Timeout); timeout != "" {
		return timeout
	}
	return strings.TrimSpace(fc.FeedTimeout)
}

// Normalize trims and removes empty items from list fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.ResourceTypes = normalizeList(fc.ResourceTypes)
	fc.ExcludeEntities = normalizeList(fc.ExcludeEntities)
	fc.StoreBase = strings.TrimSpace(fc.StoreBase)
	fc.StoreRoot = strings.TrimSpace(fc.StoreRoot)
	fc.CacheTTL = strings.TrimSpace(fc.CacheTTL)
	fc.EnvironmentMarker = strings.TrimSpace(fc.EnvironmentMarker)
	fc.FeedURL = strings.TrimSpace(fc.FeedURL)
	fc.FeedDSN = strings.TrimSpace(fc.FeedDSN)
	fc.FeedTable = strings.TrimSpace(fc.FeedTable)
	fc.FeedFile = strings.TrimSpace(fc.FeedFile)
	fc.Timeout = strings.TrimSpace(fc.Timeout)
	fc.FeedTimeout = strings.TrimSpace(fc.FeedTimeout)
	fc.Lookback = strings.TrimSpace(fc.Lookback)
	fc.ReviewMode = strings.TrimSpace(fc.ReviewMode)
	fc.CommitLog = strings.TrimSpace(fc.CommitLog)
	fc.Format = strings.TrimSpace(fc.Format)
}

// Apply copies every value set in the file onto cfg. Flags parsed later
// override these.
func (fc *FileConfig) Apply(cfg *Config) error {
	if fc == nil || cfg == nil {
		return nil
	}

	if fc.StoreBase != "" {
		cfg.StoreBase = fc.StoreBase
	}
	if fc.StoreRoot != "" {
		cfg.StoreRoot = fc.StoreRoot
	}
	if len(fc.ResourceTypes) > 0 {
		cfg.ResourceTypes = append([]string(nil), fc.ResourceTypes...)
	}
	if fc.Concurrency != nil {
		if *fc.Concurrency <= 0 {
			return fmt.Errorf("concurrency must be greater than 0, got %d", *fc.Concurrency)
		}
		cfg.Concurrency = *fc.Concurrency
	}
	if fc.StoreRateLimit != nil {
		cfg.StoreRateLimit = *fc.StoreRateLimit
	}
	if fc.EnvironmentMarker != "" {
		cfg.EnvironmentMarker = fc.EnvironmentMarker
	}
	if fc.URLTemplates != nil {
		cfg.URLTemplates = mergeTemplates(cfg.URLTemplates, *fc.URLTemplates)
	}
	if len(fc.ExcludeEntities) > 0 {
		cfg.ExcludeEntities = append([]string(nil), fc.ExcludeEntities...)
	}
	if endpoint := fc.FeedEndpoint(); endpoint != "" {
		cfg.FeedDSN = endpoint
	}
	if fc.FeedTable != "" {
		cfg.FeedTable = fc.FeedTable
	}
	if fc.FeedFile != "" {
		cfg.FeedFile = fc.FeedFile
	}
	if fc.ReviewMode != "" {
		cfg.ReviewMode = fc.ReviewMode
	}
	if fc.NeedsReviewMarker != "" {
		cfg.NeedsReviewMarker = fc.NeedsReviewMarker
	}
	if fc.CommitLog != "" {
		cfg.CommitLogPath = fc.CommitLog
	}
	if fc.Format != "" {
		cfg.Format = fc.Format
	}

	durations := []struct {
		name   string
		value  string
		target *time.Duration
	}{
		{name: "cache_ttl", value: fc.CacheTTL, target: &cfg.CacheTTL},
		{name: "timeout", value: fc.FeedTimeoutValue(), target: &cfg.FeedTimeout},
		{name: "lookback", value: fc.Lookback, target: &cfg.FeedLookback},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", d.name, d.value, err)
		}
		*d.target = parsed
	}

	cfg.Normalize()
	return nil
}

func mergeTemplates(base, override URLTemplates) URLTemplates {
	pick := func(current, next string) string {
		if strings.TrimSpace(next) != "" {
			return strings.TrimSpace(next)
		}
		return current
	}
	return URLTemplates{
		Dashboard: pick(base.Dashboard, override.Dashboard),
		Query:     pick(base.Query, override.Query),
		Workflow:  pick(base.Workflow, override.Workflow),
		Table:     pick(base.Table, override.Table),
		Domain:    pick(base.Domain, override.Domain),
	}
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
