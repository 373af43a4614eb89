package models

import (
	"fmt"
	"strings"
	"time"
)

// ResourceType identifies which variant payload a Row carries
type ResourceType string

const (
	ResourceTable     ResourceType = "table"
	ResourceQuery     ResourceType = "query"
	ResourceDashboard ResourceType = "dashboard"
	ResourceWorkflow  ResourceType = "workflow"
)

// ResourceTypes lists every supported resource type in display order
func ResourceTypes() []ResourceType {
	return []ResourceType{ResourceTable, ResourceQuery, ResourceDashboard, ResourceWorkflow}
}

// ParseResourceType converts user input (singular or plural) into a ResourceType
func ParseResourceType(value string) (ResourceType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.TrimSuffix(normalized, "s")
	for _, t := range ResourceTypes() {
		if string(t) == normalized {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid resource type %q: must be one of table, query, dashboard, workflow", value)
}

// IsArtifact reports whether the type is an artifact (anything but a table)
func (t ResourceType) IsArtifact() bool {
	return t == ResourceQuery || t == ResourceDashboard || t == ResourceWorkflow
}

// DirPrefix is the directory name prefix used for entity directories of this type
func (t ResourceType) DirPrefix() string {
	return string(t) + "_"
}

// Classification holds the review classification attributes
type Classification struct {
	Category     *string  `json:"category"`
	SubCategory  *string  `json:"sub_category"`
	UsageStatus  *string  `json:"usage_status"`
	Action       *string  `json:"action"`
	Source       *string  `json:"source"`
	Tags         []string `json:"tags"`
	ShortSummary *string  `json:"short_summary"`
	Summary      *string  `json:"summary"`
}

// Portal holds the portal-publishing attributes
type Portal struct {
	SitemapIncluded *bool    `json:"sitemap_included"`
	SitemapGroups   []string `json:"sitemap_groups"`
	Solution        *string  `json:"solution"`
	ResourceURL     *string  `json:"resource_url"`
}

// Activity holds the "last activity" timestamps
type Activity struct {
	LastSampleAt   *time.Time `json:"last_sample_at"`
	LastDetailAt   *time.Time `json:"last_detail_at"`
	LastAnalysisAt *time.Time `json:"last_analysis_at"`
	LastOverviewAt *time.Time `json:"last_overview_at"`
}

// Row is one reviewable catalog entity. Details holds the variant payload
// and always matches Type.
type Row struct {
	Key            string         `json:"key"`
	Name           string         `json:"name"`
	Type           ResourceType   `json:"type"`
	Path           string         `json:"path"`
	Classification Classification `json:"classification"`
	Portal         Portal         `json:"portal"`
	Stale          bool           `json:"stale"`
	Activity       Activity       `json:"activity"`
	Details        Details        `json:"details"`
}

// Details is the resource-specific payload of a Row
type Details interface {
	ResourceType() ResourceType
	clone() Details
}

// TableDetails is the payload of table rows
type TableDetails struct {
	Catalog        *string `json:"catalog"`
	Schema         *string `json:"schema"`
	ColumnCount    *int64  `json:"column_count"`
	RowCount       *int64  `json:"row_count"`
	WorkflowCount  *int64  `json:"workflow_count"`
	QueryCount     *int64  `json:"query_count"`
	DashboardCount *int64  `json:"dashboard_count"`
}

// QueryDetails is the payload of query rows
type QueryDetails struct {
	ReferencedTables []string `json:"referenced_tables"`
	Owner            *string  `json:"owner"`
}

// WorkflowDetails is the payload of workflow rows
type WorkflowDetails struct {
	TaskCount *int64  `json:"task_count"`
	Schedule  *string `json:"schedule"`
	Owner     *string `json:"owner"`
}

// DashboardDetails is the payload of dashboard rows. Analytics and Health
// stay nil until enrichment finds an aggregate for the dashboard.
type DashboardDetails struct {
	WidgetCount *int64           `json:"widget_count"`
	Owner       *string          `json:"owner"`
	Analytics   *AnalyticsWindow `json:"analytics"`
	Health      *HealthScore     `json:"health"`
}

func (d *TableDetails) ResourceType() ResourceType     { return ResourceTable }
func (d *QueryDetails) ResourceType() ResourceType     { return ResourceQuery }
func (d *WorkflowDetails) ResourceType() ResourceType  { return ResourceWorkflow }
func (d *DashboardDetails) ResourceType() ResourceType { return ResourceDashboard }

func (d *TableDetails) clone() Details {
	return &TableDetails{
		Catalog:        cloneString(d.Catalog),
		Schema:         cloneString(d.Schema),
		ColumnCount:    cloneInt(d.ColumnCount),
		RowCount:       cloneInt(d.RowCount),
		WorkflowCount:  cloneInt(d.WorkflowCount),
		QueryCount:     cloneInt(d.QueryCount),
		DashboardCount: cloneInt(d.DashboardCount),
	}
}

func (d *QueryDetails) clone() Details {
	return &QueryDetails{
		ReferencedTables: cloneList(d.ReferencedTables),
		Owner:            cloneString(d.Owner),
	}
}

func (d *WorkflowDetails) clone() Details {
	return &WorkflowDetails{
		TaskCount: cloneInt(d.TaskCount),
		Schedule:  cloneString(d.Schedule),
		Owner:     cloneString(d.Owner),
	}
}

func (d *DashboardDetails) clone() Details {
	out := &DashboardDetails{
		WidgetCount: cloneInt(d.WidgetCount),
		Owner:       cloneString(d.Owner),
	}
	if d.Analytics != nil {
		window := *d.Analytics
		window.LastViewed = cloneTime(d.Analytics.LastViewed)
		out.Analytics = &window
	}
	if d.Health != nil {
		health := *d.Health
		out.Health = &health
	}
	return out
}

// NewDetails returns an empty payload for the given type
func NewDetails(t ResourceType) Details {
	switch t {
	case ResourceTable:
		return &TableDetails{}
	case ResourceQuery:
		return &QueryDetails{}
	case ResourceWorkflow:
		return &WorkflowDetails{}
	case ResourceDashboard:
		return &DashboardDetails{}
	default:
		return nil
	}
}

// NewRow creates an empty row of the given type with a matching payload
func NewRow(t ResourceType, key string) Row {
	return Row{
		Key:     key,
		Name:    key,
		Type:    t,
		Details: NewDetails(t),
	}
}

// Clone returns a deep copy of the row. Mutating the copy never affects r.
func (r Row) Clone() Row {
	out := r
	out.Classification = Classification{
		Category:     cloneString(r.Classification.Category),
		SubCategory:  cloneString(r.Classification.SubCategory),
		UsageStatus:  cloneString(r.Classification.UsageStatus),
		Action:       cloneString(r.Classification.Action),
		Source:       cloneString(r.Classification.Source),
		Tags:         cloneList(r.Classification.Tags),
		ShortSummary: cloneString(r.Classification.ShortSummary),
		Summary:      cloneString(r.Classification.Summary),
	}
	out.Portal = Portal{
		SitemapIncluded: cloneBool(r.Portal.SitemapIncluded),
		SitemapGroups:   cloneList(r.Portal.SitemapGroups),
		Solution:        cloneString(r.Portal.Solution),
		ResourceURL:     cloneString(r.Portal.ResourceURL),
	}
	out.Activity = Activity{
		LastSampleAt:   cloneTime(r.Activity.LastSampleAt),
		LastDetailAt:   cloneTime(r.Activity.LastDetailAt),
		LastAnalysisAt: cloneTime(r.Activity.LastAnalysisAt),
		LastOverviewAt: cloneTime(r.Activity.LastOverviewAt),
	}
	if r.Details != nil {
		out.Details = r.Details.clone()
	}
	return out
}

// Dashboard returns the dashboard payload, or nil for other variants
func (r Row) Dashboard() *DashboardDetails {
	d, _ := r.Details.(*DashboardDetails)
	return d
}

// Table returns the table payload, or nil for other variants
func (r Row) Table() *TableDetails {
	d, _ := r.Details.(*TableDetails)
	return d
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string { return &s }

// Int64Ptr returns a pointer to n
func Int64Ptr(n int64) *int64 { return &n }

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool { return &b }

// TimePtr returns a pointer to t
func TimePtr(t time.Time) *time.Time { return &t }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneList(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
