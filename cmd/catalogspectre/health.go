package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/catalogspectre/internal/health"
	"github.com/ppiankov/catalogspectre/internal/models"
)

const dateLayout = "2006-01-02"

// healthResult is printed by the health command
type healthResult struct {
	Window models.AnalyticsWindow `json:"window"`
	Health models.HealthScore     `json:"health"`
}

// NewHealthCmd creates the health command
func NewHealthCmd() *cobra.Command {
	var (
		window     models.AnalyticsWindow
		lastViewed string
		nowStr     string
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Score a single analytics window",
		Long: `Compute the 0-100 engagement score and status of one dashboard
from its trailing-window view counts, without loading a metadata tree.`,
		Example: `  catalogspectre health --views-7d 12 --views-30d 40 --views-90d 90 --last-viewed 2026-10-15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if nowStr != "" {
				parsed, err := time.Parse(dateLayout, nowStr)
				if err != nil {
					return fmt.Errorf("invalid --now date %q: expected YYYY-MM-DD", nowStr)
				}
				now = parsed
			}
			if lastViewed != "" {
				parsed, err := time.Parse(dateLayout, lastViewed)
				if err != nil {
					return fmt.Errorf("invalid --last-viewed date %q: expected YYYY-MM-DD", lastViewed)
				}
				window.LastViewed = &parsed
			}
			if window.Views7d < 0 || window.Views30d < 0 || window.Views90d < 0 || window.UniqueUsers30d < 0 {
				return fmt.Errorf("view counts must be non-negative")
			}

			result := healthResult{
				Window: window,
				Health: health.Score(window, now),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().Int64Var(&window.Views7d, "views-7d", 0, "Views in the last 7 days")
	cmd.Flags().Int64Var(&window.Views30d, "views-30d", 0, "Views in the last 30 days")
	cmd.Flags().Int64Var(&window.Views90d, "views-90d", 0, "Views in the last 90 days")
	cmd.Flags().Int64Var(&window.UniqueUsers30d, "unique-users-30d", 0, "Distinct viewers in the last 30 days")
	cmd.Flags().StringVar(&lastViewed, "last-viewed", "", "Date of the last non-zero view (YYYY-MM-DD)")
	cmd.Flags().StringVar(&nowStr, "now", "", "Reference date (YYYY-MM-DD, default today)")
	return cmd
}
