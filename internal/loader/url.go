package loader

import (
	"regexp"
	"strings"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

var numericSuffix = regexp.MustCompile(`_(\d+)$`)

// DeriveResourceURL builds a resource URL from the entity path. The path
// segment following marker is the domain. ok is false when the path carries
// no domain.
func DeriveResourceURL(templates config.URLTemplates, marker string, row models.Row) (string, bool) {
	domain := domainFromPath(row.Path, marker)
	if domain == "" {
		return "", false
	}

	vars := map[string]string{"domain": domain, "name": row.Key}

	if row.Type == models.ResourceTable {
		if d := row.Table(); d != nil && nonEmpty(d.Catalog) && nonEmpty(d.Schema) && templates.Table != "" {
			vars["catalog"] = *d.Catalog
			vars["schema"] = *d.Schema
			return expand(templates.Table, vars), true
		}
		return expand(templates.Domain, vars), true
	}

	template := artifactTemplate(templates, row.Type)
	id := directoryID(row.Path)
	if id == "" && isDigits(row.Key) {
		id = row.Key
	}
	if template == "" || id == "" {
		return expand(templates.Domain, vars), true
	}
	vars["id"] = id
	return expand(template, vars), true
}

func artifactTemplate(templates config.URLTemplates, t models.ResourceType) string {
	switch t {
	case models.ResourceDashboard:
		return templates.Dashboard
	case models.ResourceQuery:
		return templates.Query
	case models.ResourceWorkflow:
		return templates.Workflow
	default:
		return ""
	}
}

func domainFromPath(p, marker string) string {
	if marker == "" {
		return ""
	}
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == marker {
			return segments[i+1]
		}
	}
	return ""
}

// directoryID is the numeric suffix of the entity directory name
func directoryID(p string) string {
	dir := p
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		dir = p[idx+1:]
	}
	if m := numericSuffix.FindStringSubmatch(dir); m != nil {
		return m[1]
	}
	return ""
}

func expand(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func nonEmpty(p *string) bool {
	return p != nil && strings.TrimSpace(*p) != ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
