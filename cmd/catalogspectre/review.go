package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/catalogspectre/internal/health"
	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/reporter"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

// NewReviewCmd creates the review command
func NewReviewCmd() *cobra.Command {
	opts := &options{}
	var (
		outputDir    string
		format       string
		dryRun       bool
		failOnReview bool
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Load catalog rows and write a review report",
		Long: `Load every requested resource type from the metadata tree, merge
committed edits, score dashboards from the engagement feed and write a
report of the rows matching the review filter.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputDir = outputDir
			}
			if cmd.Flags().Changed("format") {
				cfg.Format = format
			}
			if err := validateFormat(cfg.Format); err != nil {
				return err
			}
			cfg.DryRun = dryRun

			report, err := runReview(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if cfg.DryRun {
				cmd.Println("Dry run mode - skipping output")
			} else {
				if err := reporter.New(cfg).Generate(report); err != nil {
					return fmt.Errorf("failed to generate report: %w", err)
				}
				cmd.Printf("Report written to: %s\n", cfg.OutputDir)
			}
			cmd.Printf("%d rows, %d need review\n", report.Summary.TotalRows, report.Summary.NeedsReview)

			if failOnReview && report.Summary.NeedsReview > 0 {
				return &FindingsError{Count: report.Summary.NeedsReview}
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&outputDir, "output", "./report", "Output directory")
	cmd.Flags().StringVar(&format, "format", "json", "Output format (json, text, all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Dry run mode (don't write output)")
	cmd.Flags().BoolVar(&failOnReview, "fail-on-review", false, "Exit with code 6 when rows need review")
	return cmd
}

func validateFormat(format string) error {
	switch format {
	case "json", "text", "all":
		return nil
	default:
		return fmt.Errorf("invalid --format value %q: must be json, text or all", format)
	}
}

// runReview loads every configured resource type concurrently and builds
// the report
func runReview(ctx context.Context, cfg *config.Config) (*models.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()

	types, err := resourceTypes(cfg)
	if err != nil {
		return nil, err
	}

	p, err := newPipeline(cfg, false)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	results := make([][]models.Row, len(types))
	generations := make([]uint64, len(types))
	multi := len(types) > 1

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			sess, err := p.newSession(nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			rows, err := loadSession(gctx, sess, typeRoot(cfg.StoreRoot, t, multi), t)
			if err != nil {
				return err
			}
			results[i] = rows
			generations[i] = sess.Generation()
			slog.Debug("resource type loaded",
				slog.String("type", string(t)),
				slog.Int("rows", len(rows)),
				slog.String("session", sess.ID()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []models.Row
	var generation uint64
	for i := range types {
		rows = append(rows, results[i]...)
		generation = max(generation, generations[i])
	}

	return buildReport(cfg, types, rows, generation, p.analyticsEnabled(), startTime), nil
}

// buildReport constructs the final report
func buildReport(
	cfg *config.Config,
	types []models.ResourceType,
	rows []models.Row,
	generation uint64,
	analyticsEnabled bool,
	startTime time.Time,
) *models.Report {
	now := time.Now()
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}
	if rows == nil {
		rows = []models.Row{}
	}

	return &models.Report{
		Tool:      "catalogspectre",
		Version:   version,
		Timestamp: now.UTC().Format(time.RFC3339),
		Metadata: models.Metadata{
			GeneratedAt:      now,
			StoreRoot:        cfg.StoreRoot,
			ResourceTypes:    typeNames,
			ReviewMode:       cfg.ReviewMode,
			Generation:       generation,
			LoadDuration:     time.Since(startTime).Round(time.Millisecond).String(),
			Version:          version,
			AnalyticsEnabled: analyticsEnabled,
		},
		Rows:            rows,
		Summary:         reporter.Summarize(rows, cfg.NeedsReviewMarker, 0),
		Recommendations: health.GenerateRecommendations(rows),
	}
}
