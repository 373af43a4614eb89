// Package feed provides the engagement event sources used for dashboard
// analytics: a ClickHouse table and a JSON-lines export.
package feed

import (
	"context"
	"fmt"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

// Source is a closable feed
type Source interface {
	Query(ctx context.Context, domain, pathPrefix string) ([]models.FeedEvent, error)
	Close() error
}

// New opens the feed named by cfg. It returns nil when no feed is
// configured, which disables analytics.
func New(cfg *config.Config) (Source, error) {
	switch {
	case cfg.FeedDSN != "":
		f, err := NewClickHouseFeed(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create ClickHouse feed: %w", err)
		}
		return f, nil
	case cfg.FeedFile != "":
		return NewFileFeed(cfg.FeedFile), nil
	default:
		return nil, nil
	}
}
