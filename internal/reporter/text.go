package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

const (
	textANSIReset = "\x1b[0m"
	textANSIBold  = "\x1b[1m"
)

// WriteText writes a human-readable text report to report.txt and stdout.
func WriteText(report *models.Report, cfg *config.Config) error {
	return writeText(report, cfg, os.Stdout)
}

func writeText(report *models.Report, cfg *config.Config, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if out == nil {
		return fmt.Errorf("writer is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rendered := renderTextReport(report, supportsANSI(out))
	outputPath := filepath.Join(cfg.OutputDir, "report.txt")

	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write report.txt: %w", err)
	}

	if _, err := io.WriteString(out, rendered); err != nil {
		return fmt.Errorf("failed to write text report to output: %w", err)
	}

	return nil
}

func renderTextReport(report *models.Report, useANSI bool) string {
	var b strings.Builder

	generatedAt := strings.TrimSpace(report.Timestamp)
	if generatedAt == "" {
		if !report.Metadata.GeneratedAt.IsZero() {
			generatedAt = report.Metadata.GeneratedAt.UTC().Format(time.RFC3339)
		} else {
			generatedAt = "unknown"
		}
	}

	root := strings.TrimSpace(report.Metadata.StoreRoot)
	if root == "" {
		root = "unknown"
	}
	mode := strings.TrimSpace(report.Metadata.ReviewMode)
	if mode == "" {
		mode = "all"
	}

	writeTextSectionHeader(&b, "CatalogSpectre Review Report", useANSI)
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt)
	fmt.Fprintf(&b, "Store root: %s\n", root)
	fmt.Fprintf(&b, "Resource types: %s\n", strings.Join(report.Metadata.ResourceTypes, ", "))
	fmt.Fprintf(&b, "Review mode: %s\n", mode)
	fmt.Fprintf(&b, "Analytics: %s\n", enabledLabel(report.Metadata.AnalyticsEnabled))
	b.WriteString("\n")

	summary := report.Summary
	writeTextSectionHeader(&b, "Summary", useANSI)
	fmt.Fprintf(&b, "Total rows: %d\n", summary.TotalRows)
	for _, name := range sortedCountKeys(summary.ByType) {
		fmt.Fprintf(&b, "  %s: %d\n", name, summary.ByType[name])
	}
	fmt.Fprintf(&b, "Needs review: %d\n", summary.NeedsReview)
	fmt.Fprintf(&b, "Modified: %d\n", summary.Modified)
	fmt.Fprintf(&b, "Deleted: %d\n", summary.Deleted)
	if len(summary.ByHealth) > 0 {
		b.WriteString("Health:\n")
		for _, status := range healthOrder(summary.ByHealth) {
			fmt.Fprintf(&b, "  %s: %d\n", status, summary.ByHealth[status])
		}
	}
	b.WriteString("\n")

	writeTextSectionHeader(&b, "Rows", useANSI)
	if len(report.Rows) == 0 {
		b.WriteString("No rows match the review mode.\n")
	} else {
		b.WriteString("KEY                  TYPE       NAME                             HEALTH      ACTION\n")
		b.WriteString("--------------------------------------------------------------------------------------\n")
		for _, row := range report.Rows {
			name := row.Name
			if row.Stale {
				name += " (stale)"
			}
			fmt.Fprintf(
				&b,
				"%-20s %-10s %-32s %-11s %s\n",
				truncateTextValue(row.Key, 20),
				row.Type,
				truncateTextValue(name, 32),
				healthLabel(row),
				textValue(row.Get(models.FieldAction)),
			)
		}
	}

	recs := report.Recommendations
	if len(recs.Retire)+len(recs.Review)+len(recs.Keep)+len(recs.Unscored) > 0 {
		b.WriteString("\n")
		writeTextSectionHeader(&b, "Recommendations", useANSI)
		writeKeyList(&b, "Retire", recs.Retire)
		writeKeyList(&b, "Review", recs.Review)
		writeKeyList(&b, "Keep", recs.Keep)
		writeKeyList(&b, "Unscored", recs.Unscored)
	}

	return b.String()
}

func writeTextSectionHeader(b *strings.Builder, title string, useANSI bool) {
	header := title
	if useANSI {
		header = textANSIBold + title + textANSIReset
	}
	fmt.Fprintf(b, "%s\n", header)
	fmt.Fprintf(b, "%s\n", strings.Repeat("-", len(title)))
}

func writeKeyList(b *strings.Builder, label string, keys []string) {
	fmt.Fprintf(b, "%s (%d)\n", label, len(keys))
	for _, key := range keys {
		fmt.Fprintf(b, "  - %s\n", key)
	}
}

func supportsANSI(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

func healthLabel(row models.Row) string {
	score, ok := row.Get(models.FieldHealthScore).(int64)
	if !ok {
		if row.Type == models.ResourceDashboard {
			return "n/a"
		}
		return "-"
	}
	status, _ := row.Get(models.FieldHealthStatus).(string)
	return fmt.Sprintf("%d/%s", score, status)
}

func healthOrder(counts map[string]int) []string {
	order := make([]string, 0, len(counts))
	for _, status := range models.HealthStatuses() {
		if _, ok := counts[string(status)]; ok {
			order = append(order, string(status))
		}
	}
	for _, name := range sortedCountKeys(counts) {
		if _, err := parseStatus(name); err != nil {
			order = append(order, name)
		}
	}
	return order
}

func parseStatus(value string) (models.HealthStatus, error) {
	for _, status := range models.HealthStatuses() {
		if string(status) == value {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown health status %q", value)
}

func sortedCountKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func textValue(value any) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprint(value)
}

func truncateTextValue(value string, width int) string {
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}
