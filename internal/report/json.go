package report

import (
	"context"
	"encoding/json"
	"io"

	"github.com/0x6d61/wpleech/internal/engine"
)

// JSONReporter outputs structured JSON.
type JSONReporter struct {
	// Compact outputs single-line JSON when true (no indentation).
	Compact bool
}

// Format returns "json".
func (r *JSONReporter) Format() string {
	return "json"
}

// jsonOutput is the top-level JSON structure: the scan report tree plus an
// envelope and a summary.
type jsonOutput struct {
	SchemaVersion string `json:"schema_version"`
	Tool          string `json:"tool"`
	*engine.ScanReport
	DurationSeconds float64     `json:"duration_seconds"`
	Summary         jsonSummary `json:"summary"`
}

// jsonSummary represents the summary in JSON.
type jsonSummary struct {
	IsWordPress          bool `json:"is_wordpress"`
	PluginsFound         int  `json:"plugins_found"`
	VulnerablePlugins    int  `json:"vulnerable_plugins"`
	OutdatedPlugins      int  `json:"outdated_plugins"`
	TotalVulnerabilities int  `json:"total_vulnerabilities"`
}

// Generate writes JSON scan results to w.
func (r *JSONReporter) Generate(ctx context.Context, report *engine.ScanReport, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	output := jsonOutput{
		SchemaVersion:   "1.0",
		Tool:            "wpleech",
		ScanReport:      report,
		DurationSeconds: report.EndTime.Sub(report.StartTime).Seconds(),
		Summary: jsonSummary{
			IsWordPress:          report.Detection.IsWordPress,
			VulnerablePlugins:    report.VulnerableCount(),
			OutdatedPlugins:      report.OutdatedCount(),
			TotalVulnerabilities: totalFindings(report.Vulnerabilities),
		},
	}
	if report.Plugins != nil {
		output.Summary.PluginsFound = report.Plugins.TotalFound
	}

	enc := json.NewEncoder(w)
	if !r.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(output)
}
