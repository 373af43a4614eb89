package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRowJSONTags(t *testing.T) {
	cases := []struct {
		name        string
		row         Row
		mustContain []string
		mustAbsent  []string
	}{
		{
			name: "dashboard_includes_analytics_block",
			row: func() Row {
				row := NewRow(ResourceDashboard, "42")
				row.Dashboard().Analytics = &AnalyticsWindow{Views7d: 3}
				return row
			}(),
			mustContain: []string{"\"key\"", "\"classification\"", "\"portal\"", "\"analytics\"", "\"views_7d\""},
			mustAbsent:  []string{"\"column_count\""},
		},
		{
			name:        "table_includes_counts",
			row:         NewRow(ResourceTable, "orders"),
			mustContain: []string{"\"column_count\"", "\"stale\"", "\"last_overview_at\""},
			mustAbsent:  []string{"\"analytics\""},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := json.Marshal(tc.row)
			if err != nil {
				t.Fatalf("failed to marshal row: %v", err)
			}
			encoded := string(payload)
			for _, key := range tc.mustContain {
				if !strings.Contains(encoded, key) {
					t.Fatalf("expected JSON to contain %s, got %s", key, encoded)
				}
			}
			for _, key := range tc.mustAbsent {
				if strings.Contains(encoded, key) {
					t.Fatalf("expected JSON to not contain %s, got %s", key, encoded)
				}
			}
		})
	}
}

func TestParseResourceType(t *testing.T) {
	cases := []struct {
		input   string
		want    ResourceType
		wantErr bool
	}{
		{input: "table", want: ResourceTable},
		{input: "Dashboards", want: ResourceDashboard},
		{input: " queries ", want: ResourceQuery},
		{input: "workflow", want: ResourceWorkflow},
		{input: "notebook", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseResourceType(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	row := NewRow(ResourceQuery, "q1")
	row.Classification.Category = StringPtr("finance")
	row.Classification.Tags = []string{"a"}
	row.Details.(*QueryDetails).ReferencedTables = []string{"orders"}

	clone := row.Clone()
	*clone.Classification.Category = "marketing"
	clone.Classification.Tags[0] = "b"
	clone.Details.(*QueryDetails).ReferencedTables[0] = "users"

	if *row.Classification.Category != "finance" {
		t.Fatalf("clone mutated original category")
	}
	if row.Classification.Tags[0] != "a" {
		t.Fatalf("clone mutated original tags")
	}
	if row.Details.(*QueryDetails).ReferencedTables[0] != "orders" {
		t.Fatalf("clone mutated original details")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		typ   ResourceType
		field string
		value any
		want  any
	}{
		{name: "string", typ: ResourceTable, field: FieldCategory, value: "finance", want: "finance"},
		{name: "string_null", typ: ResourceTable, field: FieldCategory, value: nil, want: nil},
		{name: "bool_from_text", typ: ResourceQuery, field: FieldSitemapIncluded, value: "yes", want: true},
		{name: "list_from_paste", typ: ResourceDashboard, field: FieldTags, value: "a, b;c", want: []string{"a", "b", "c"}},
		{name: "int_from_json", typ: ResourceTable, field: FieldRowCount, value: float64(12), want: int64(12)},
		{name: "time_from_text", typ: ResourceTable, field: FieldLastSampleAt, value: "2026-03-01T12:00:00Z", want: when},
		{name: "variant_owner", typ: ResourceWorkflow, field: FieldOwner, value: "ops", want: "ops"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := NewRow(tc.typ, "k")
			if err := row.Set(tc.field, tc.value); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if got := row.Get(tc.field); !ValuesEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestValidateEdit(t *testing.T) {
	cases := []struct {
		name    string
		typ     ResourceType
		field   string
		value   any
		wantErr error
	}{
		{name: "editable", typ: ResourceDashboard, field: FieldAction, value: "Needs Review"},
		{name: "variant_field_on_wrong_type", typ: ResourceTable, field: FieldOwner, value: "x", wantErr: ErrUnknownField},
		{name: "analytics_read_only", typ: ResourceDashboard, field: FieldViews7d, value: 1, wantErr: ErrReadOnlyField},
		{name: "key_read_only", typ: ResourceQuery, field: FieldKey, value: "x", wantErr: ErrReadOnlyField},
		{name: "wrong_kind", typ: ResourceQuery, field: FieldSitemapIncluded, value: 3.5, wantErr: ErrInvalidValue},
		{name: "null_name", typ: ResourceQuery, field: FieldName, value: nil, wantErr: ErrInvalidValue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateEdit(tc.typ, tc.field, tc.value)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAnalyticsFieldsNullWithoutWindow(t *testing.T) {
	row := NewRow(ResourceDashboard, "7")
	for _, field := range []string{FieldViews7d, FieldViews30d, FieldViews90d, FieldUniqueUsers30d, FieldLastViewedAt, FieldHealthScore, FieldHealthStatus} {
		if got := row.Get(field); got != nil {
			t.Fatalf("expected %s to be null, got %v", field, got)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	var err error = &SourceError{Root: "/x", Err: errors.New("boom")}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected SourceError to match ErrSourceUnavailable")
	}

	err = &DocumentError{Path: "/x/analysis.json", Kind: ErrDocumentMalformed}
	if !errors.Is(err, ErrDocumentMalformed) || errors.Is(err, ErrDocumentMissing) {
		t.Fatalf("expected DocumentError to match only its kind")
	}
}
