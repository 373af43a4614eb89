package models

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// Kind is the value kind of a row field
type Kind string

const (
	KindString     Kind = "string"
	KindBool       Kind = "bool"
	KindInt        Kind = "int"
	KindTime       Kind = "time"
	KindStringList Kind = "string_list"
)

// Field names shared by every resource type
const (
	FieldKey             = "key"
	FieldName            = "name"
	FieldType            = "type"
	FieldPath            = "path"
	FieldCategory        = "category"
	FieldSubCategory     = "sub_category"
	FieldUsageStatus     = "usage_status"
	FieldAction          = "action"
	FieldSource          = "source"
	FieldTags            = "tags"
	FieldShortSummary    = "short_summary"
	FieldSummary         = "summary"
	FieldSitemapIncluded = "sitemap_included"
	FieldSitemapGroups   = "sitemap_groups"
	FieldSolution        = "solution"
	FieldResourceURL     = "resource_url"
	FieldStale           = "stale"
	FieldLastSampleAt    = "last_sample_at"
	FieldLastDetailAt    = "last_detail_at"
	FieldLastAnalysisAt  = "last_analysis_at"
	FieldLastOverviewAt  = "last_overview_at"
)

// Variant field names
const (
	FieldCatalog          = "catalog"
	FieldSchema           = "schema"
	FieldColumnCount      = "column_count"
	FieldRowCount         = "row_count"
	FieldWorkflowCount    = "workflow_count"
	FieldQueryCount       = "query_count"
	FieldDashboardCount   = "dashboard_count"
	FieldReferencedTables = "referenced_tables"
	FieldOwner            = "owner"
	FieldTaskCount        = "task_count"
	FieldSchedule         = "schedule"
	FieldWidgetCount      = "widget_count"
	FieldViews7d          = "views_7d"
	FieldViews30d         = "views_30d"
	FieldViews90d         = "views_90d"
	FieldUniqueUsers30d   = "unique_users_30d"
	FieldLastViewedAt     = "last_viewed_at"
	FieldHealthScore      = "health_score"
	FieldHealthStatus     = "health_status"
)

// FieldSpec describes one addressable field of a row variant
type FieldSpec struct {
	Name     string
	Kind     Kind
	Editable bool
	get      func(*Row) any
	set      func(*Row, any) error
}

// Writable reports whether the field can be populated from stored documents.
// Derived fields (type, stale, analytics) are never written.
func (f FieldSpec) Writable() bool { return f.set != nil }

// FieldValue is a field name paired with its current value
type FieldValue struct {
	Name  string
	Value any
}

var (
	baseFields    []FieldSpec
	variantFields map[ResourceType][]FieldSpec
	fieldIndex    map[ResourceType]map[string]FieldSpec
)

func init() {
	baseFields = []FieldSpec{
		plainString(FieldKey, false, func(r *Row) *string { return &r.Key }),
		plainString(FieldName, true, func(r *Row) *string { return &r.Name }),
		{Name: FieldType, Kind: KindString, get: func(r *Row) any { return string(r.Type) }},
		plainString(FieldPath, false, func(r *Row) *string { return &r.Path }),
		optString(FieldCategory, true, func(r *Row, _ bool) **string { return &r.Classification.Category }),
		optString(FieldSubCategory, true, func(r *Row, _ bool) **string { return &r.Classification.SubCategory }),
		optString(FieldUsageStatus, true, func(r *Row, _ bool) **string { return &r.Classification.UsageStatus }),
		optString(FieldAction, true, func(r *Row, _ bool) **string { return &r.Classification.Action }),
		optString(FieldSource, true, func(r *Row, _ bool) **string { return &r.Classification.Source }),
		stringList(FieldTags, true, func(r *Row, _ bool) *[]string { return &r.Classification.Tags }),
		optString(FieldShortSummary, true, func(r *Row, _ bool) **string { return &r.Classification.ShortSummary }),
		optString(FieldSummary, true, func(r *Row, _ bool) **string { return &r.Classification.Summary }),
		optBool(FieldSitemapIncluded, true, func(r *Row, _ bool) **bool { return &r.Portal.SitemapIncluded }),
		stringList(FieldSitemapGroups, true, func(r *Row, _ bool) *[]string { return &r.Portal.SitemapGroups }),
		optString(FieldSolution, true, func(r *Row, _ bool) **string { return &r.Portal.Solution }),
		optString(FieldResourceURL, true, func(r *Row, _ bool) **string { return &r.Portal.ResourceURL }),
		{Name: FieldStale, Kind: KindBool, get: func(r *Row) any { return r.Stale }},
		optTime(FieldLastSampleAt, false, func(r *Row, _ bool) **time.Time { return &r.Activity.LastSampleAt }),
		optTime(FieldLastDetailAt, false, func(r *Row, _ bool) **time.Time { return &r.Activity.LastDetailAt }),
		optTime(FieldLastAnalysisAt, false, func(r *Row, _ bool) **time.Time { return &r.Activity.LastAnalysisAt }),
		optTime(FieldLastOverviewAt, false, func(r *Row, _ bool) **time.Time { return &r.Activity.LastOverviewAt }),
	}

	variantFields = map[ResourceType][]FieldSpec{
		ResourceTable: {
			optString(FieldCatalog, false, tableString(func(d *TableDetails) **string { return &d.Catalog })),
			optString(FieldSchema, false, tableString(func(d *TableDetails) **string { return &d.Schema })),
			optInt(FieldColumnCount, false, tableInt(func(d *TableDetails) **int64 { return &d.ColumnCount })),
			optInt(FieldRowCount, false, tableInt(func(d *TableDetails) **int64 { return &d.RowCount })),
			optInt(FieldWorkflowCount, false, tableInt(func(d *TableDetails) **int64 { return &d.WorkflowCount })),
			optInt(FieldQueryCount, false, tableInt(func(d *TableDetails) **int64 { return &d.QueryCount })),
			optInt(FieldDashboardCount, false, tableInt(func(d *TableDetails) **int64 { return &d.DashboardCount })),
		},
		ResourceQuery: {
			stringList(FieldReferencedTables, false, func(r *Row, create bool) *[]string {
				if d := queryDetails(r, create); d != nil {
					return &d.ReferencedTables
				}
				return nil
			}),
			optString(FieldOwner, true, func(r *Row, create bool) **string {
				if d := queryDetails(r, create); d != nil {
					return &d.Owner
				}
				return nil
			}),
		},
		ResourceWorkflow: {
			optInt(FieldTaskCount, false, func(r *Row, create bool) **int64 {
				if d := workflowDetails(r, create); d != nil {
					return &d.TaskCount
				}
				return nil
			}),
			optString(FieldSchedule, false, func(r *Row, create bool) **string {
				if d := workflowDetails(r, create); d != nil {
					return &d.Schedule
				}
				return nil
			}),
			optString(FieldOwner, true, func(r *Row, create bool) **string {
				if d := workflowDetails(r, create); d != nil {
					return &d.Owner
				}
				return nil
			}),
		},
		ResourceDashboard: {
			optInt(FieldWidgetCount, false, func(r *Row, create bool) **int64 {
				if d := dashboardDetails(r, create); d != nil {
					return &d.WidgetCount
				}
				return nil
			}),
			optString(FieldOwner, true, func(r *Row, create bool) **string {
				if d := dashboardDetails(r, create); d != nil {
					return &d.Owner
				}
				return nil
			}),
			analyticsInt(FieldViews7d, func(w *AnalyticsWindow) int64 { return w.Views7d }),
			analyticsInt(FieldViews30d, func(w *AnalyticsWindow) int64 { return w.Views30d }),
			analyticsInt(FieldViews90d, func(w *AnalyticsWindow) int64 { return w.Views90d }),
			analyticsInt(FieldUniqueUsers30d, func(w *AnalyticsWindow) int64 { return w.UniqueUsers30d }),
			{Name: FieldLastViewedAt, Kind: KindTime, get: func(r *Row) any {
				if d := dashboardDetails(r, false); d != nil && d.Analytics != nil && d.Analytics.LastViewed != nil {
					return *d.Analytics.LastViewed
				}
				return nil
			}},
			{Name: FieldHealthScore, Kind: KindInt, get: func(r *Row) any {
				if d := dashboardDetails(r, false); d != nil && d.Health != nil {
					return int64(d.Health.Score)
				}
				return nil
			}},
			{Name: FieldHealthStatus, Kind: KindString, get: func(r *Row) any {
				if d := dashboardDetails(r, false); d != nil && d.Health != nil {
					return string(d.Health.Status)
				}
				return nil
			}},
		},
	}

	fieldIndex = make(map[ResourceType]map[string]FieldSpec, len(variantFields))
	for _, t := range ResourceTypes() {
		index := make(map[string]FieldSpec)
		for _, spec := range FieldSpecs(t) {
			index[spec.Name] = spec
		}
		fieldIndex[t] = index
	}
}

// FieldSpecs returns the ordered field list for a resource type (base fields first)
func FieldSpecs(t ResourceType) []FieldSpec {
	variant, ok := variantFields[t]
	if !ok {
		return nil
	}
	specs := make([]FieldSpec, 0, len(baseFields)+len(variant))
	specs = append(specs, baseFields...)
	specs = append(specs, variant...)
	return specs
}

// LookupField finds a field spec by name for the given type
func LookupField(t ResourceType, name string) (FieldSpec, bool) {
	spec, ok := fieldIndex[t][name]
	return spec, ok
}

// ValidateEdit checks that field exists on the variant, is editable and that
// value can be stored in it. It returns the normalized value.
func ValidateEdit(t ResourceType, field string, value any) (any, error) {
	spec, ok := LookupField(t, field)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a %s field", ErrUnknownField, field, t)
	}
	if !spec.Editable {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlyField, field)
	}
	normalized, err := Coerce(spec.Kind, value)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidValue, field, err)
	}
	if normalized == nil && (field == FieldName) {
		return nil, fmt.Errorf("%w: field %s cannot be null", ErrInvalidValue, field)
	}
	return normalized, nil
}

// Get returns the normalized value of a field, nil when the field is null or unknown
func (r Row) Get(field string) any {
	spec, ok := LookupField(r.Type, field)
	if !ok {
		return nil
	}
	return spec.get(&r)
}

// Set writes a field in place. Callers that must not mutate a canonical row
// work on a Clone.
func (r *Row) Set(field string, value any) error {
	spec, ok := LookupField(r.Type, field)
	if !ok {
		return fmt.Errorf("%w: %q is not a %s field", ErrUnknownField, field, r.Type)
	}
	if spec.set == nil {
		return fmt.Errorf("%w: %s", ErrReadOnlyField, field)
	}
	normalized, err := Coerce(spec.Kind, value)
	if err != nil {
		return fmt.Errorf("%w: field %s: %v", ErrInvalidValue, field, err)
	}
	return spec.set(r, normalized)
}

// Fields returns every field of the row's variant in registry order
func (r Row) Fields() []FieldValue {
	specs := FieldSpecs(r.Type)
	values := make([]FieldValue, 0, len(specs))
	for _, spec := range specs {
		values = append(values, FieldValue{Name: spec.Name, Value: spec.get(&r)})
	}
	return values
}

// Coerce normalizes a raw value into the canonical representation of kind.
// nil always means null.
func Coerce(kind Kind, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch kind {
	case KindString:
		switch v := value.(type) {
		case string:
			return v, nil
		case *string:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		}
	case KindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case *bool:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes", "1":
				return true, nil
			case "false", "no", "0":
				return false, nil
			}
		}
	case KindInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case *int64:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		case float64:
			if v == math.Trunc(v) && !math.IsInf(v, 0) {
				return int64(v), nil
			}
		}
	case KindTime:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case *time.Time:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		case string:
			parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected RFC3339 timestamp: %w", err)
			}
			return parsed, nil
		}
	case KindStringList:
		switch v := value.(type) {
		case []string:
			return cloneList(v), nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected list of strings, got element %T", item)
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			return splitList(v), nil
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return nil, fmt.Errorf("expected %s, got %T", kind, value)
}

// ValuesEqual compares two normalized field values
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []string:
		bv, ok := b.([]string)
		return ok && slices.Equal(av, bv)
	default:
		return a == b
	}
}

// splitList turns a pasted "a, b; c" cell into a list
func splitList(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func plainString(name string, editable bool, acc func(*Row) *string) FieldSpec {
	return FieldSpec{
		Name:     name,
		Kind:     KindString,
		Editable: editable,
		get:      func(r *Row) any { return *acc(r) },
		set: func(r *Row, v any) error {
			s, _ := v.(string)
			*acc(r) = s
			return nil
		},
	}
}

func optString(name string, editable bool, acc func(*Row, bool) **string) FieldSpec {
	return FieldSpec{
		Name:     name,
		Kind:     KindString,
		Editable: editable,
		get: func(r *Row) any {
			p := acc(r, false)
			if p == nil || *p == nil {
				return nil
			}
			return **p
		},
		set: func(r *Row, v any) error {
			p := acc(r, true)
			if v == nil {
				*p = nil
				return nil
			}
			s := v.(string)
			*p = &s
			return nil
		},
	}
}

func optBool(name string, editable bool, acc func(*Row, bool) **bool) FieldSpec {
	return FieldSpec{
		Name:     name,
		Kind:     KindBool,
		Editable: editable,
		get: func(r *Row) any {
			p := acc(r, false)
			if p == nil || *p == nil {
				return nil
			}
			return **p
		},
		set: func(r *Row, v any) error {
			p := acc(r, true)
			if v == nil {
				*p = nil
				return nil
			}
			b := v.(bool)
			*p = &b
			return nil
		},
	}
}

func optInt(name string, editable bool, acc func(*Row, bool) **int64) FieldSpec {
	return FieldSpec{
		Name:     name,
		Kind:     KindInt,
		Editable: editable,
		get: func(r *Row) any {
			p := acc(r, false)
			if p == nil || *p == nil {
				return nil
			}
			return **p
		},
		set: func(r *Row, v any) error {
			p := acc(r, true)
			if v == nil {
				*p = nil
				return nil
			}
			n := v.(int64)
			*p = &n
			return nil
		},
	}
}

func optTime(name string, editable bool, acc func(*Row, bool) **time.Time) FieldSpec {
	return FieldSpec{
		Name:     name,
		Kind:     KindTime,
		Editable: editable,
		get: func(r *Row) any {
			p := acc(r, false)
			if p == nil || *p == nil {
				return nil
			}
			return **p
		},
		set: func(r *Row, v any) error {
			p := acc(r, true)
			if v == nil {
				*p = nil
				return nil
			}
			t := v.(time.Time)
			*p = &t
			return nil
		},
	}
}

func stringList(name string, editable bool, acc func(*Row, bool) *[]string) FieldSpec {
	return FieldSpec{
		Name:     name,
		Kind:     KindStringList,
		Editable: editable,
		get: func(r *Row) any {
			p := acc(r, false)
			if p == nil || *p == nil {
				return nil
			}
			return cloneList(*p)
		},
		set: func(r *Row, v any) error {
			p := acc(r, true)
			if v == nil {
				*p = nil
				return nil
			}
			*p = cloneList(v.([]string))
			return nil
		},
	}
}

func analyticsInt(name string, pick func(*AnalyticsWindow) int64) FieldSpec {
	return FieldSpec{
		Name: name,
		Kind: KindInt,
		get: func(r *Row) any {
			if d := dashboardDetails(r, false); d != nil && d.Analytics != nil {
				return pick(d.Analytics)
			}
			return nil
		},
	}
}

func tableString(pick func(*TableDetails) **string) func(*Row, bool) **string {
	return func(r *Row, create bool) **string {
		if d := tableDetails(r, create); d != nil {
			return pick(d)
		}
		return nil
	}
}

func tableInt(pick func(*TableDetails) **int64) func(*Row, bool) **int64 {
	return func(r *Row, create bool) **int64 {
		if d := tableDetails(r, create); d != nil {
			return pick(d)
		}
		return nil
	}
}

func tableDetails(r *Row, create bool) *TableDetails {
	if d, ok := r.Details.(*TableDetails); ok && d != nil {
		return d
	}
	if !create {
		return nil
	}
	d := &TableDetails{}
	r.Details = d
	return d
}

func queryDetails(r *Row, create bool) *QueryDetails {
	if d, ok := r.Details.(*QueryDetails); ok && d != nil {
		return d
	}
	if !create {
		return nil
	}
	d := &QueryDetails{}
	r.Details = d
	return d
}

func workflowDetails(r *Row, create bool) *WorkflowDetails {
	if d, ok := r.Details.(*WorkflowDetails); ok && d != nil {
		return d
	}
	if !create {
		return nil
	}
	d := &WorkflowDetails{}
	r.Details = d
	return d
}

func dashboardDetails(r *Row, create bool) *DashboardDetails {
	if d, ok := r.Details.(*DashboardDetails); ok && d != nil {
		return d
	}
	if !create {
		return nil
	}
	d := &DashboardDetails{}
	r.Details = d
	return d
}
