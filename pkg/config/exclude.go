package config

import (
	"path"
	"strings"
)

// Normalize trims config patterns and removes empty values.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.ExcludeEntities = normalizePatterns(c.ExcludeEntities)
	c.ResourceTypes = normalizeList(c.ResourceTypes)
}

// IsEntityExcluded reports whether an entity directory or display name
// matches one of the exclude patterns.
func (c *Config) IsEntityExcluded(names ...string) bool {
	if c == nil || len(c.ExcludeEntities) == 0 {
		return false
	}

	for _, name := range names {
		value := normalizePattern(name)
		if value == "" {
			continue
		}
		for _, pattern := range c.ExcludeEntities {
			if patternMatches(pattern, value) {
				return true
			}
		}
	}

	return false
}

func normalizePatterns(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, pattern := range values {
		p := normalizePattern(pattern)
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	return normalized
}

func normalizePattern(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func patternMatches(pattern, value string) bool {
	normalizedPattern := normalizePattern(pattern)
	normalizedValue := normalizePattern(value)
	if normalizedPattern == "" || normalizedValue == "" {
		return false
	}

	// Invalid glob patterns are treated as exact matches.
	matched, err := path.Match(normalizedPattern, normalizedValue)
	if err == nil {
		return matched
	}
	return normalizedPattern == normalizedValue
}
