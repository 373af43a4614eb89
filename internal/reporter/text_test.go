package reporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

func sampleReport() *models.Report {
	active := models.NewRow(models.ResourceDashboard, "101")
	active.Name = "Revenue overview"
	active.Classification.Action = models.StringPtr("Keep")
	active.Dashboard().Analytics = &models.AnalyticsWindow{Views7d: 40, Views30d: 120, Views90d: 300}
	active.Dashboard().Health = &models.HealthScore{Score: 100, Status: models.HealthActive}

	stale := models.NewRow(models.ResourceDashboard, "102")
	stale.Name = "Old funnel"
	stale.Stale = true
	stale.Classification.Action = models.StringPtr("Needs Review")

	rows := []models.Row{active, stale}
	return &models.Report{
		Tool:      "catalogspectre",
		Timestamp: "2026-02-17T00:00:00Z",
		Metadata: models.Metadata{
			StoreRoot:        "/environments/acme.example.com/dashboards",
			ResourceTypes:    []string{"dashboard"},
			ReviewMode:       "all",
			AnalyticsEnabled: true,
		},
		Rows:    rows,
		Summary: Summarize(rows, "Needs Review", 1),
		Recommendations: models.Recommendations{
			Keep:     []string{"101"},
			Unscored: []string{},
		},
	}
}

func TestWriteTextProducesReadableOutput(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	var out bytes.Buffer
	if err := writeText(sampleReport(), cfg, &out); err != nil {
		t.Fatalf("writeText failed: %v", err)
	}

	textOutput := out.String()
	assertContains(t, textOutput, "CatalogSpectre Review Report")
	assertContains(t, textOutput, "Store root: /environments/acme.example.com/dashboards")
	assertContains(t, textOutput, "Total rows: 2")
	assertContains(t, textOutput, "Needs review: 1")
	assertContains(t, textOutput, "Modified: 1")
	assertContains(t, textOutput, "Deleted: 1")
	assertContains(t, textOutput, "100/active")
	assertContains(t, textOutput, "Old funnel (stale)")
	assertContains(t, textOutput, "Keep (1)")
	assertContains(t, textOutput, "Analytics: enabled")

	if strings.Contains(textOutput, textANSIBold) {
		t.Fatal("expected no ANSI codes for a non-terminal writer")
	}

	fileOutput, err := os.ReadFile(filepath.Join(cfg.OutputDir, "report.txt"))
	if err != nil {
		t.Fatalf("failed to read report.txt: %v", err)
	}
	if string(fileOutput) != textOutput {
		t.Fatal("expected report.txt to match stdout output")
	}
}

func TestRenderTextEmptyRows(t *testing.T) {
	rendered := renderTextReport(&models.Report{}, false)
	assertContains(t, rendered, "Generated: unknown")
	assertContains(t, rendered, "Store root: unknown")
	assertContains(t, rendered, "No rows match the review mode.")
	if strings.Contains(rendered, "Recommendations") {
		t.Fatal("expected no recommendations section without recommendations")
	}
}

func TestWriteTextRejectsNilInputs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	if err := writeText(nil, cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for nil report")
	}
	if err := writeText(&models.Report{}, nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for nil config")
	}
	if err := writeText(&models.Report{}, cfg, nil); err == nil {
		t.Fatal("expected error for nil writer")
	}
}

func TestSummarize(t *testing.T) {
	table := models.NewRow(models.ResourceTable, "orders")
	table.Classification.Action = models.StringPtr("needs review")
	rows := append(sampleReport().Rows, table)

	summary := Summarize(rows, "Needs Review", 0)
	if summary.TotalRows != 3 || summary.ByType["dashboard"] != 2 || summary.ByType["table"] != 1 {
		t.Fatalf("unexpected type counts: %+v", summary)
	}
	if summary.NeedsReview != 1 {
		t.Fatalf("expected exact marker match, got %d", summary.NeedsReview)
	}
	if summary.ByHealth["active"] != 1 || summary.ByHealth["unscored"] != 1 {
		t.Fatalf("unexpected health counts: %+v", summary.ByHealth)
	}
}

func TestTruncateTextValue(t *testing.T) {
	cases := []struct {
		value string
		width int
		want  string
	}{
		{value: "short", width: 10, want: "short"},
		{value: "abcdefghij", width: 8, want: "abcde..."},
		{value: "abcdef", width: 2, want: "ab"},
	}
	for _, tc := range cases {
		if got := truncateTextValue(tc.value, tc.width); got != tc.want {
			t.Fatalf("truncateTextValue(%q, %d) = %q, want %q", tc.value, tc.width, got, tc.want)
		}
	}
}

func assertContains(t *testing.T, text, want string) {
	t.Helper()
	if !strings.Contains(text, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, text)
	}
}
