package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/catalogspectre/internal/analytics"
	"github.com/ppiankov/catalogspectre/internal/app"
	"github.com/ppiankov/catalogspectre/internal/commitlog"
	"github.com/ppiankov/catalogspectre/internal/feed"
	"github.com/ppiankov/catalogspectre/internal/filter"
	"github.com/ppiankov/catalogspectre/internal/loader"
	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/overlay"
	"github.com/ppiankov/catalogspectre/internal/session"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

// pipeline is the loading stack shared by the sessions of one command run
type pipeline struct {
	cfg      *config.Config
	stores   *storeStack
	loader   session.RowLoader
	enricher session.RowEnricher
	feed     feed.Source
}

func newPipeline(cfg *config.Config, forceCache bool) (*pipeline, error) {
	stores, err := openStore(cfg, forceCache, 5*time.Minute)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:    cfg,
		stores: stores,
		loader: committedLoader{next: loader.New(stores.store, cfg), path: commitLogPath(cfg)},
	}

	src, err := feed.New(cfg)
	if err != nil {
		return nil, err
	}
	if src != nil {
		p.feed = src
		p.enricher = analytics.NewEnricher(src, cfg)
	}
	return p, nil
}

func (p *pipeline) analyticsEnabled() bool {
	return p.enricher != nil
}

func (p *pipeline) newSession(sink session.CommitSink) (*session.Session, error) {
	mode, err := filter.ParseMode(p.cfg.ReviewMode)
	if err != nil {
		return nil, err
	}
	opts := session.Options{
		Loader:            p.loader,
		Sink:              sink,
		NeedsReviewMarker: p.cfg.NeedsReviewMarker,
		Mode:              mode,
	}
	if p.enricher != nil {
		opts.Enricher = p.enricher
	}
	return session.New(opts), nil
}

func (p *pipeline) Close() {
	if p.feed == nil {
		return
	}
	if err := p.feed.Close(); err != nil {
		slog.Warn("failed to close feed", slog.String("error", err.Error()))
	}
}

// commitLogPath returns the configured commit log, or the per-user default
func commitLogPath(cfg *config.Config) string {
	if strings.TrimSpace(cfg.CommitLogPath) != "" {
		return cfg.CommitLogPath
	}
	p, err := app.DefaultCommitLogPath()
	if err != nil {
		slog.Debug("no default commit log path", slog.String("error", err.Error()))
		return commitlog.DefaultFileName
	}
	return p
}

// committedLoader merges previously committed edits over freshly loaded rows
type committedLoader struct {
	next session.RowLoader
	path string
}

func (l committedLoader) LoadRows(ctx context.Context, root string, t models.ResourceType) ([]models.Row, error) {
	rows, err := l.next.LoadRows(ctx, root, t)
	if err != nil {
		return nil, err
	}
	if l.path == "" {
		return rows, nil
	}

	file, err := commitlog.Load(l.path)
	if err != nil {
		slog.Warn("ignoring unreadable commit log",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
		return rows, nil
	}

	var entries []overlay.Entry
	for _, entry := range file.Entries() {
		if entry.Type == t {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return rows, nil
	}
	slog.Debug("applying committed edits", slog.String("type", string(t)), slog.Int("rows", len(entries)))
	return commitlog.Apply(rows, entries), nil
}

// loadSession loads one resource type to completion, enrichment included
func loadSession(ctx context.Context, sess *session.Session, root string, t models.ResourceType) ([]models.Row, error) {
	sess.SetSource(ctx, root, t)
	sess.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sess.Err(); err != nil {
		return nil, fmt.Errorf("failed to load %s rows: %w", t, err)
	}
	return sess.MergedRows(), nil
}
