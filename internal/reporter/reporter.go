package reporter

import (
	"fmt"
	"strings"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

// Reporter interface for generating reports
type Reporter interface {
	Generate(report *models.Report) error
}

// reporter implements the Reporter interface
type reporter struct {
	config *config.Config
}

// New creates a new reporter instance
func New(cfg *config.Config) Reporter {
	return &reporter{
		config: cfg,
	}
}

// Generate writes the report in the configured format: json, text or all
func (r *reporter) Generate(report *models.Report) error {
	switch strings.ToLower(strings.TrimSpace(r.config.Format)) {
	case "", "json":
		return WriteJSON(report, r.config)
	case "text":
		return WriteText(report, r.config)
	case "all":
		if err := WriteJSON(report, r.config); err != nil {
			return err
		}
		return WriteText(report, r.config)
	default:
		return fmt.Errorf("invalid format %q: must be json, text or all", r.config.Format)
	}
}
