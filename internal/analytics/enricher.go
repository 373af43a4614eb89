// Package analytics aggregates the engagement feed into per-dashboard
// trailing windows and attaches them, with a health score, to dashboard rows.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/catalogspectre/internal/health"
	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

// Feed is the external engagement event source. Results are already limited
// to domain and to non-internal traffic.
type Feed interface {
	Query(ctx context.Context, domain, pathPrefix string) ([]models.FeedEvent, error)
}

// Enricher attaches analytics and health scores to dashboard rows
type Enricher struct {
	feed       Feed
	scorer     health.Scorer
	pathPrefix string
	now        func() time.Time
}

// NewEnricher creates an enricher. The feed path prefix is taken from the
// dashboard URL template.
func NewEnricher(feed Feed, cfg *config.Config) *Enricher {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Enricher{
		feed:       feed,
		scorer:     health.NewScorer(),
		pathPrefix: PathPrefix(cfg.URLTemplates.Dashboard),
		now:        time.Now,
	}
}

// PathPrefix returns the URL path of template up to its {id} placeholder
func PathPrefix(template string) string {
	before, _, _ := strings.Cut(template, "{id}")
	if idx := strings.Index(before, "://"); idx >= 0 {
		before = before[idx+3:]
		if slash := strings.Index(before, "/"); slash >= 0 {
			before = before[slash:]
		} else {
			before = "/"
		}
	}
	return before
}

// EntityRef returns the domain and feed reference of a dashboard row,
// both taken from its resource URL.
func EntityRef(row models.Row) (domain, ref string, ok bool) {
	if row.Portal.ResourceURL == nil {
		return "", "", false
	}
	parsed, err := url.Parse(strings.TrimSpace(*row.Portal.ResourceURL))
	if err != nil || parsed.Host == "" {
		return "", "", false
	}
	return parsed.Host, normalizeRef(parsed.Path), true
}

func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if len(ref) > 1 {
		ref = strings.TrimRight(ref, "/")
	}
	return ref
}

// Enrich returns rows with every dashboard row's analytics block and health
// score filled from the feed. Input rows are never mutated. When the feed
// fails for any domain the input is returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, rows []models.Row) []models.Row {
	domains := make(map[string]struct{})
	for _, row := range rows {
		if row.Type != models.ResourceDashboard {
			continue
		}
		if domain, _, ok := EntityRef(row); ok {
			domains[domain] = struct{}{}
		}
	}

	if len(domains) == 0 {
		return e.apply(rows, nil)
	}

	names := make([]string, 0, len(domains))
	for domain := range domains {
		names = append(names, domain)
	}
	sort.Strings(names)

	var (
		mu         sync.Mutex
		aggregates = make(map[string]map[string]models.AnalyticsWindow, len(names))
		now        = e.now()
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, domain := range names {
		g.Go(func() error {
			events, err := e.feed.Query(gctx, domain, e.pathPrefix)
			if err != nil {
				return fmt.Errorf("%w: domain %s: %w", models.ErrAnalyticsUnavailable, domain, err)
			}
			byRef := make(map[string]models.AnalyticsWindow)
			for ref, window := range Aggregate(events, now) {
				byRef[normalizeRef(ref)] = window
			}

			mu.Lock()
			aggregates[domain] = byRef
			mu.Unlock()

			slog.Debug("analytics feed queried",
				slog.String("domain", domain),
				slog.Int("events", len(events)),
				slog.Int("entities", len(byRef)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Warn("analytics unavailable, rows left unmodified", slog.String("error", err.Error()))
		return rows
	}

	return e.apply(rows, aggregates)
}

func (e *Enricher) apply(rows []models.Row, aggregates map[string]map[string]models.AnalyticsWindow) []models.Row {
	now := e.now()
	out := make([]models.Row, len(rows))
	for i, row := range rows {
		if row.Type != models.ResourceDashboard {
			out[i] = row
			continue
		}

		enriched := row.Clone()
		dashboard := enriched.Dashboard()
		if dashboard == nil {
			out[i] = row
			continue
		}
		dashboard.Analytics = nil
		dashboard.Health = nil

		if window, ok := lookup(aggregates, row); ok {
			w := window
			dashboard.Analytics = &w
			score := health.Evaluate(e.scorer, window, now)
			dashboard.Health = &score
		}
		out[i] = enriched
	}
	return out
}

// lookup finds a row's aggregate by URL path, then by key
func lookup(aggregates map[string]map[string]models.AnalyticsWindow, row models.Row) (models.AnalyticsWindow, bool) {
	domain, ref, ok := EntityRef(row)
	if !ok {
		return models.AnalyticsWindow{}, false
	}
	byRef := aggregates[domain]
	if window, found := byRef[ref]; found {
		return window, true
	}
	window, found := byRef[row.Key]
	return window, found
}
