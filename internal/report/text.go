package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/0x6d61/wpleech/internal/engine"
)

const (
	doubleLine = "\u2550" // ═
	singleLine = "\u2500" // ─
	lineWidth  = 50
)

// TextReporter outputs plain terminal text.
type TextReporter struct {
	// Verbose controls detail level: 0=results only, 1=+warnings.
	Verbose int
}

// Format returns "text".
func (r *TextReporter) Format() string {
	return "text"
}

// Generate writes formatted scan results to w.
func (r *TextReporter) Generate(ctx context.Context, report *engine.ScanReport, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := &strings.Builder{}

	doubleBar := strings.Repeat(doubleLine, lineWidth)
	singleBar := strings.Repeat(singleLine, lineWidth)

	// Header
	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, "wpleech - WordPress Plugin Scan Results")
	fmt.Fprintln(b, doubleBar)

	// Target info
	det := report.Detection
	fmt.Fprintf(b, "Target:     %s\n", report.Target.URL())
	if det.IsWordPress {
		fmt.Fprintf(b, "WordPress:  yes (confidence %d, %s)\n", det.Confidence, strings.Join(det.DetectedBy, ", "))
		if det.WPVersion != "" {
			fmt.Fprintf(b, "Version:    %s\n", det.WPVersion)
		}
	} else {
		fmt.Fprintf(b, "WordPress:  no (confidence %d)\n", det.Confidence)
	}
	fmt.Fprintf(b, "Scan level: %s\n", report.Level)

	duration := report.EndTime.Sub(report.StartTime)
	fmt.Fprintf(b, "Duration:   %.1fs\n", duration.Seconds())
	fmt.Fprintf(b, "Requests:   %d\n", report.RequestCount)

	if det.Error != "" {
		fmt.Fprintf(b, "Error:      %s\n", det.Error)
	}
	if r.Verbose > 0 {
		for _, warn := range det.Warnings {
			fmt.Fprintf(b, "Warning:    %s\n", warn)
		}
	}

	if !det.IsWordPress {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintln(b, "Target does not appear to be WordPress; plugin scan skipped.")
		fmt.Fprintln(b, doubleBar)
		_, err := io.WriteString(w, b.String())
		return err
	}

	// Plugins
	fmt.Fprintln(b, singleBar)
	if report.Plugins == nil || len(report.Plugins.Plugins) == 0 {
		fmt.Fprintln(b, "No plugins found.")
	} else {
		fmt.Fprintf(b, "Plugins (%s):\n", strings.Join(report.Plugins.DetectionMethods, ", "))
		for _, p := range report.Plugins.Plugins {
			fmt.Fprintf(b, "  - %s %s [%s]\n", p.Slug, versionOrUnknown(p.Version), p.DetectedBy)
			if p.AssetVersion != "" && p.AssetVersion != p.Version {
				fmt.Fprintf(b, "      asset version hint: %s\n", p.AssetVersion)
			}
			if r.Verbose > 0 {
				for _, warn := range p.Warnings {
					fmt.Fprintf(b, "      warning: %s\n", warn)
				}
			}
		}
	}

	// Vulnerabilities
	for _, v := range report.Vulnerabilities {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintf(b, "[%s] %s %s", status(v), v.Slug, versionOrUnknown(v.InstalledVersion))
		if v.LatestVersion != "" {
			fmt.Fprintf(b, " (latest %s)", v.LatestVersion)
		}
		fmt.Fprintf(b, " - %s\n", v.Source.Label())
		for _, f := range v.Findings {
			cve := ""
			if f.CVE != "" {
				cve = " (" + f.CVE + ")"
			}
			fmt.Fprintf(b, "    - %s%s, fixed in: %s\n", f.Title, cve, f.FixedIn)
		}
		if v.Error != "" {
			fmt.Fprintf(b, "    error: %s\n", v.Error)
		}
	}

	// Summary
	fmt.Fprintln(b, doubleBar)
	found := 0
	if report.Plugins != nil {
		found = report.Plugins.TotalFound
	}
	fmt.Fprintf(b, "Summary: %d plugin(s) found, %d vulnerable, %d outdated, %d vulnerabilities\n",
		found, report.VulnerableCount(), report.OutdatedCount(), totalFindings(report.Vulnerabilities))
	fmt.Fprintln(b, doubleBar)

	_, err := io.WriteString(w, b.String())
	return err
}

// status returns the bracketed label of a plugin report.
func status(v engine.PluginVulnerabilityReport) string {
	switch {
	case len(v.Findings) > 0:
		return "VULNERABLE"
	case v.IsOutdated:
		return "OUTDATED"
	default:
		return "OK"
	}
}

func versionOrUnknown(v string) string {
	if v == "" {
		return "(version unknown)"
	}
	return v
}
