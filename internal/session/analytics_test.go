package session

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/catalogspectre/internal/models"
)

func scoredDashboard(key string, views int64, score int) models.Row {
	row := models.NewRow(models.ResourceDashboard, key)
	last := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	row.Dashboard().Analytics = &models.AnalyticsWindow{Views7d: views, Views30d: views, Views90d: views, LastViewed: &last}
	row.Dashboard().Health = &models.HealthScore{Score: score, Status: models.HealthActive}
	return row
}

func TestCarryAnalytics(t *testing.T) {
	prev := []models.Row{scoredDashboard("a", 5, 80), models.NewRow(models.ResourceDashboard, "b")}
	loaded := []models.Row{
		models.NewRow(models.ResourceDashboard, "a"),
		models.NewRow(models.ResourceDashboard, "b"),
		models.NewRow(models.ResourceDashboard, "c"),
		models.NewRow(models.ResourceTable, "a"),
	}

	got := carryAnalytics(loaded, prev)

	if got[0].Dashboard().Analytics == nil || got[0].Dashboard().Analytics.Views7d != 5 {
		t.Fatalf("expected analytics carried onto a, got %+v", got[0].Dashboard())
	}
	if got[1].Dashboard().Analytics != nil || got[2].Dashboard().Analytics != nil {
		t.Fatalf("rows without a previous window must stay null")
	}
	if got[3].Table() == nil {
		t.Fatalf("non-dashboard rows pass through")
	}
	if loaded[0].Dashboard().Analytics != nil {
		t.Fatalf("input rows must not be mutated")
	}
	*got[0].Dashboard().Analytics.LastViewed = time.Time{}
	if prev[0].Dashboard().Analytics.LastViewed.IsZero() {
		t.Fatalf("carried window must not alias the previous row")
	}
}

func TestApplyAnalyticsKeepsOtherFields(t *testing.T) {
	current := models.NewRow(models.ResourceDashboard, "a")
	current.Dashboard().Owner = models.StringPtr("ops")
	stale := scoredDashboard("b", 9, 90)

	enrichedA := scoredDashboard("a", 5, 80)
	enrichedB := models.NewRow(models.ResourceDashboard, "b")

	got := applyAnalytics([]models.Row{current, stale}, []models.Row{enrichedA, enrichedB})

	if got[0].Get(models.FieldOwner) != "ops" {
		t.Fatalf("owner lost: %v", got[0].Get(models.FieldOwner))
	}
	if diff := cmp.Diff(enrichedA.Dashboard().Analytics, got[0].Dashboard().Analytics); diff != "" {
		t.Fatalf("analytics mismatch (-want +got):\n%s", diff)
	}
	if got[1].Dashboard().Analytics != nil || got[1].Dashboard().Health != nil {
		t.Fatalf("missing aggregate must null the block, got %+v", got[1].Dashboard())
	}

	same := applyAnalytics(got, []models.Row{enrichedA, enrichedB})
	if same[0].Dashboard() != got[0].Dashboard() {
		t.Fatalf("unchanged analytics should keep the row as is")
	}
}
