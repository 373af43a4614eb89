package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/store"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

const envRoot = "/environments/acme.example.com"

// isolate keeps config discovery and the default commit log inside a temp dir
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	return dir
}

func writeFixture(t *testing.T, base, storePath, content string) {
	t.Helper()
	local := filepath.Join(base, filepath.FromSlash(storePath))
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(local, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func writeCatalog(t *testing.T, base string) {
	t.Helper()
	writeFixture(t, base, envRoot+"/dashboards/index.json", `{"entries":[
		{"id": 12, "name": "revenue", "action": "Needs Review"},
		{"id": 7, "name": "alpha", "action": "Keep"}
	]}`)
	writeFixture(t, base, envRoot+"/tables/index.json", `{"entries":[{"name": "orders"}]}`)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "findings", err: fmt.Errorf("wrapped: %w", &FindingsError{Count: 2}), want: ExitFindings},
		{name: "source_unavailable", err: &models.SourceError{Root: "/x", Err: store.ErrNotFound}, want: ExitNotFound},
		{name: "unknown_row", err: fmt.Errorf("%w: %q", models.ErrUnknownRow, "9"), want: ExitInvalidArg},
		{name: "read_only", err: models.ErrReadOnlyField, want: ExitInvalidArg},
		{name: "invalid_flag", err: errors.New("invalid --format value \"yaml\""), want: ExitInvalidArg},
		{name: "network", err: errors.New("dial tcp 10.0.0.1:9000: connection refused"), want: ExitNetwork},
		{name: "internal", err: errors.New("boom"), want: ExitInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); got != tc.want {
				t.Fatalf("expected exit code %d, got %d", tc.want, got)
			}
		})
	}
}

func TestParseEdits(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantKey string
		field   string
		value   any
		wantErr bool
	}{
		{name: "simple", input: []string{"12:action=Keep"}, wantKey: "12", field: "action", value: "Keep"},
		{name: "colon_in_key", input: []string{"main:sales:category=finance"}, wantKey: "main:sales", field: "category", value: "finance"},
		{name: "equals_in_value", input: []string{"q1:summary=a=b"}, wantKey: "q1", field: "summary", value: "a=b"},
		{name: "empty_clears", input: []string{"q1:category="}, wantKey: "q1", field: "category", value: nil},
		{name: "missing_value", input: []string{"q1:category"}, wantErr: true},
		{name: "missing_field", input: []string{"q1=x"}, wantErr: true},
		{name: "empty_field", input: []string{"q1:=x"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			edits, err := parseEdits(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %v", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(edits) != 1 {
				t.Fatalf("expected 1 edit, got %d", len(edits))
			}
			edit := edits[0]
			if edit.Key != tc.wantKey || edit.Field != tc.field || edit.Value != tc.value {
				t.Fatalf("unexpected edit %+v", edit)
			}
		})
	}
}

func TestTypeRoot(t *testing.T) {
	if got := typeRoot("/env", models.ResourceDashboard, false); got != "/env" {
		t.Fatalf("single type should load from the root, got %q", got)
	}
	if got := typeRoot("/env/", models.ResourceQuery, true); got != "/env/queries" {
		t.Fatalf("unexpected multi-type root %q", got)
	}
	if got := typeRoot("/env", models.ResourceTable, true); got != "/env/tables" {
		t.Fatalf("expected /env/tables, got %q", got)
	}
}

func TestResolveFlagsOverrideConfigFile(t *testing.T) {
	dir := isolate(t)

	// Config file intentionally contains an invalid review mode.
	content := "store_root: /from-config\nreview_mode: sideways\nresource_types: [table]\ncache_ttl: 2m\n"
	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFileYAML), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	opts := &options{}
	cmd := &cobra.Command{Use: "test"}
	opts.register(cmd)
	if _, err := opts.resolve(cmd); err == nil {
		t.Fatal("expected invalid review mode from config file to fail")
	}

	if err := cmd.Flags().Set("mode", "needs_review"); err != nil {
		t.Fatalf("failed to set mode flag: %v", err)
	}
	if err := cmd.Flags().Set("type", "dashboards,query"); err != nil {
		t.Fatalf("failed to set type flag: %v", err)
	}

	cfg, err := opts.resolve(cmd)
	if err != nil {
		t.Fatalf("expected flags to override invalid config values, got %v", err)
	}
	if cfg.ReviewMode != "needs-review" {
		t.Fatalf("expected normalized review mode, got %q", cfg.ReviewMode)
	}
	if cfg.StoreRoot != "/from-config" {
		t.Fatalf("expected store root from config file, got %q", cfg.StoreRoot)
	}
	if cfg.CacheTTL.Minutes() != 2 {
		t.Fatalf("expected cache TTL from config file, got %s", cfg.CacheTTL)
	}
	types, err := resourceTypes(cfg)
	if err != nil || len(types) != 2 || types[0] != models.ResourceDashboard || types[1] != models.ResourceQuery {
		t.Fatalf("unexpected resource types %v (%v)", types, err)
	}
}

func TestResolveRejectsInvalidFlags(t *testing.T) {
	isolate(t)

	tests := []struct {
		flag    string
		value   string
		wantErr string
	}{
		{flag: "type", value: "notebook", wantErr: "invalid resource type"},
		{flag: "mode", value: "sideways", wantErr: "invalid review mode"},
		{flag: "cache-ttl", value: "bad", wantErr: "invalid --cache-ttl duration"},
		{flag: "concurrency", value: "0", wantErr: "--concurrency must be greater than 0"},
	}

	for _, tc := range tests {
		t.Run(tc.flag, func(t *testing.T) {
			opts := &options{}
			cmd := &cobra.Command{Use: "test"}
			opts.register(cmd)
			if err := cmd.Flags().Set(tc.flag, tc.value); err != nil {
				t.Fatalf("failed to set %s flag: %v", tc.flag, err)
			}
			_, err := opts.resolve(cmd)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRunReviewLoadsEveryType(t *testing.T) {
	dir := isolate(t)
	base := filepath.Join(dir, "tree")
	writeCatalog(t, base)

	cfg := config.DefaultConfig()
	cfg.StoreBase = base
	cfg.StoreRoot = envRoot
	cfg.ResourceTypes = []string{"dashboard", "table"}
	cfg.CommitLogPath = filepath.Join(dir, "commits.json")

	report, err := runReview(context.Background(), cfg)
	if err != nil {
		t.Fatalf("runReview failed: %v", err)
	}
	if report.Tool != "catalogspectre" || report.Version != version {
		t.Fatalf("unexpected report identity %q %q", report.Tool, report.Version)
	}
	if report.Summary.TotalRows != 3 {
		t.Fatalf("expected 3 rows, got %d", report.Summary.TotalRows)
	}
	if report.Summary.ByType["dashboard"] != 2 || report.Summary.ByType["table"] != 1 {
		t.Fatalf("unexpected per-type counts %v", report.Summary.ByType)
	}
	if report.Summary.NeedsReview != 1 {
		t.Fatalf("expected 1 row needing review, got %d", report.Summary.NeedsReview)
	}
	if report.Metadata.AnalyticsEnabled {
		t.Fatal("expected analytics to be disabled without a feed")
	}
	if len(report.Recommendations.Unscored) != 2 {
		t.Fatalf("expected both dashboards unscored, got %v", report.Recommendations)
	}
	if report.Rows[0].Type != models.ResourceDashboard || report.Rows[2].Type != models.ResourceTable {
		t.Fatalf("expected rows grouped in type order, got %v then %v", report.Rows[0].Type, report.Rows[2].Type)
	}
}

func TestRunReviewMissingRoot(t *testing.T) {
	dir := isolate(t)

	cfg := config.DefaultConfig()
	cfg.StoreBase = dir
	cfg.StoreRoot = "/nowhere"
	cfg.CommitLogPath = filepath.Join(dir, "commits.json")

	_, err := runReview(context.Background(), cfg)
	if !errors.Is(err, models.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if classifyError(err) != ExitNotFound {
		t.Fatalf("expected exit code %d, got %d", ExitNotFound, classifyError(err))
	}
}

func TestEditCommitThenReview(t *testing.T) {
	dir := isolate(t)
	base := filepath.Join(dir, "tree")
	writeCatalog(t, base)
	logPath := filepath.Join(dir, "commits.json")
	common := []string{"--store", base, "--root", envRoot + "/dashboards", "--commit-log", logPath}

	_, err := execute(t, append([]string{"review", "--dry-run", "--fail-on-review"}, common...)...)
	var fe *FindingsError
	if !errors.As(err, &fe) || fe.Count != 1 {
		t.Fatalf("expected findings error for 1 row, got %v", err)
	}

	out, err := execute(t, append([]string{"edit", "--set", "12:action=Keep", "--commit"}, common...)...)
	if err != nil {
		t.Fatalf("edit failed: %v (%s)", err, out)
	}
	var result struct {
		Rows []struct {
			Key            string `json:"key"`
			Classification struct {
				Action string `json:"action"`
			} `json:"classification"`
		} `json:"rows"`
		Pending   []string `json:"pending"`
		Committed int      `json:"committed"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("failed to decode edit output %q: %v", out, err)
	}
	if result.Committed != 1 || len(result.Pending) != 0 {
		t.Fatalf("unexpected edit result %+v", result)
	}
	if len(result.Rows) != 1 || result.Rows[0].Key != "12" || result.Rows[0].Classification.Action != "Keep" {
		t.Fatalf("expected edited row with new action, got %+v", result.Rows)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected commit log to be written: %v", err)
	}

	if _, err := execute(t, append([]string{"review", "--dry-run", "--fail-on-review"}, common...)...); err != nil {
		t.Fatalf("expected committed edit to clear the review finding, got %v", err)
	}
}

func TestEditRejectsInvalidEdits(t *testing.T) {
	dir := isolate(t)
	base := filepath.Join(dir, "tree")
	writeCatalog(t, base)
	common := []string{"--store", base, "--root", envRoot + "/dashboards", "--commit-log", filepath.Join(dir, "commits.json")}

	tests := []struct {
		name string
		set  string
		want error
	}{
		{name: "unknown_row", set: "99:action=Keep", want: models.ErrUnknownRow},
		{name: "unknown_field", set: "12:colour=red", want: models.ErrUnknownField},
		{name: "read_only", set: "12:views_7d=3", want: models.ErrReadOnlyField},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"edit", "--set", tc.set}, common...)...)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if classifyError(err) != ExitInvalidArg {
				t.Fatalf("expected exit code %d, got %d", ExitInvalidArg, classifyError(err))
			}
		})
	}
}

func TestHealthCommand(t *testing.T) {
	out, err := execute(t, "health", "--views-90d", "0", "--now", "2026-10-01")
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	var result healthResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("failed to decode health output %q: %v", out, err)
	}
	if result.Health.Score != 0 || result.Health.Status != models.HealthUnused {
		t.Fatalf("expected unused dashboard, got %+v", result.Health)
	}

	out, err = execute(t, "health", "--views-7d", "20", "--views-30d", "60", "--views-90d", "120",
		"--unique-users-30d", "9", "--last-viewed", "2026-09-30", "--now", "2026-10-01")
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("failed to decode health output %q: %v", out, err)
	}
	if result.Health.Score <= 0 || result.Health.Score > 100 || result.Health.Status == models.HealthUnused {
		t.Fatalf("expected a scored dashboard, got %+v", result.Health)
	}

	if _, err := execute(t, "health", "--last-viewed", "yesterday"); err == nil {
		t.Fatal("expected invalid date to fail")
	}
}

func TestBuildReportIncludesMetadata(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StoreRoot = envRoot

	row := models.NewRow(models.ResourceDashboard, "12")
	row.Dashboard().Health = &models.HealthScore{Score: 5, Status: models.HealthDead}

	report := buildReport(cfg, []models.ResourceType{models.ResourceDashboard}, []models.Row{row}, 3, true, time.Now().Add(-time.Second))
	if report.Metadata.Generation != 3 || !report.Metadata.AnalyticsEnabled {
		t.Fatalf("unexpected metadata %+v", report.Metadata)
	}
	if report.Metadata.StoreRoot != envRoot || len(report.Metadata.ResourceTypes) != 1 {
		t.Fatalf("unexpected metadata %+v", report.Metadata)
	}
	if len(report.Recommendations.Retire) != 1 || report.Recommendations.Retire[0] != "12" {
		t.Fatalf("expected dead dashboard to be retired, got %+v", report.Recommendations)
	}
	if report.Metadata.LoadDuration == "" || report.Timestamp == "" {
		t.Fatalf("expected timing fields, got %+v", report.Metadata)
	}
}

func TestReportHandler(t *testing.T) {
	dir := t.TempDir()
	if _, err := newReportHandler(dir); err == nil || !strings.Contains(err.Error(), "report.json not found") {
		t.Fatalf("expected missing report error, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "report.json"), []byte(`{"tool":"catalogspectre"}`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), []byte("CatalogSpectre Review Report"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	handler, err := newReportHandler(dir)
	if err != nil {
		t.Fatalf("newReportHandler failed: %v", err)
	}

	tests := []struct {
		path string
		want string
	}{
		{path: "/", want: `"tool":"catalogspectre"`},
		{path: "/report.txt", want: "CatalogSpectre Review Report"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Fatalf("expected body to contain %q, got %q", tc.want, rec.Body.String())
			}
		})
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunWatchStreamsReplaceThenPatch(t *testing.T) {
	dir := isolate(t)
	base := filepath.Join(dir, "tree")
	writeCatalog(t, base)

	cfg := config.DefaultConfig()
	cfg.StoreBase = base
	cfg.StoreRoot = envRoot + "/dashboards"
	cfg.CommitLogPath = filepath.Join(dir, "commits.json")
	cfg.WatchDebounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, cfg, models.ResourceDashboard, out)
	}()

	waitFor := func(substr string) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if strings.Contains(out.String(), substr) {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Fatalf("timed out waiting for %q, got %q", substr, out.String())
	}

	waitFor(`"kind":"replace"`)

	writeFixture(t, base, envRoot+"/dashboards/index.json", `{"entries":[
		{"id": 12, "name": "revenue", "action": "Keep"},
		{"id": 7, "name": "alpha", "action": "Keep"}
	]}`)
	waitFor(`"kind":"patch"`)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runWatch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runWatch did not stop after cancel")
	}
}
