package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/0x6d61/wpleech/internal/engine"
)

// newTestScanReport creates a realistic report for a WordPress site with one
// vulnerable, one outdated and one current plugin.
func newTestScanReport(t *testing.T) *engine.ScanReport {
	t.Helper()
	target, err := engine.NewScanTarget("https://blog.example.com")
	if err != nil {
		t.Fatalf("NewScanTarget: %v", err)
	}
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	end := start.Add(12*time.Second + 300*time.Millisecond)

	return &engine.ScanReport{
		Target: target,
		Level:  engine.DefaultScanLevel,
		Detection: engine.DetectionResult{
			IsWordPress: true,
			Confidence:  100,
			DetectedBy:  []string{"wp-content/wp-includes paths", "meta generator tag", "REST API endpoint"},
			WPVersion:   "6.4.3",
			FinalURL:    "https://blog.example.com",
			Warnings:    []string{"REST API endpoint: slow"},
		},
		Plugins: &engine.EnumerationResult{
			Plugins: []engine.PluginRecord{
				{Slug: "contact-form-7", Installed: true, Version: "5.4.2", DetectedBy: engine.DetectedByReadme, AssetVersion: "5.4.1"},
				{Slug: "akismet", Installed: true, Version: "5.3", DetectedBy: engine.DetectedByReadme},
				{Slug: "hidden-gem", Installed: true, DetectedBy: engine.DetectedByAsset, Warnings: []string{"readme.txt: timeout"}},
			},
			TotalFound:       3,
			DetectionMethods: []string{engine.MethodHTML, engine.MethodCandidates},
		},
		Vulnerabilities: []engine.PluginVulnerabilityReport{
			{Slug: "akismet", InstalledVersion: "5.3", LatestVersion: "5.3", Source: engine.SourceFreeRegistryUpToDate, Findings: []engine.VulnerabilityFinding{}},
			{
				Slug: "contact-form-7", InstalledVersion: "5.4.2", LatestVersion: "5.5.0", IsOutdated: true,
				Source: engine.SourcePaidDatabase,
				Findings: []engine.VulnerabilityFinding{
					{Title: "Reflected XSS", CVE: "CVE-2021-0001", FixedIn: "5.4.3"},
					{Title: "Open redirect", FixedIn: engine.NotFixed},
				},
			},
			{Slug: "hidden-gem", IsOutdated: true, Source: engine.SourceFreeRegistry, Findings: []engine.VulnerabilityFinding{}, Error: "WordPress.org API error: 404"},
		},
		StartTime:    start,
		EndTime:      end,
		RequestCount: 147,
	}
}

// newNotWordPressReport creates a report for a site that failed detection.
func newNotWordPressReport(t *testing.T) *engine.ScanReport {
	t.Helper()
	target, _ := engine.NewScanTarget("example.org")
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	return &engine.ScanReport{
		Target:       target,
		Level:        engine.ScanLevelFull,
		Detection:    engine.DetectionResult{Confidence: 0, DetectedBy: []string{}, FinalURL: "https://example.org"},
		StartTime:    start,
		EndTime:      start.Add(time.Second),
		RequestCount: 2,
	}
}

func TestTextReporter_Format(t *testing.T) {
	r := &TextReporter{}
	if got := r.Format(); got != "text" {
		t.Errorf("Format() = %q, want %q", got, "text")
	}
}

func TestTextReporter_Generate_WordPress(t *testing.T) {
	r := &TextReporter{}

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), newTestScanReport(t), &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"wpleech - WordPress Plugin Scan Results",
		"Target:     https://blog.example.com",
		"WordPress:  yes (confidence 100",
		"Version:    6.4.3",
		"Scan level: top 1000",
		"Duration:   12.3s",
		"Requests:   147",
		"Plugins (HTML parsing, common plugin checking (concurrent)):",
		"  - contact-form-7 5.4.2 [readme.txt]",
		"asset version hint: 5.4.1",
		"  - hidden-gem (version unknown) [asset file]",
		"[VULNERABLE] contact-form-7 5.4.2 (latest 5.5.0) - WPScan API",
		"    - Reflected XSS (CVE-2021-0001), fixed in: 5.4.3",
		"    - Open redirect, fixed in: not fixed",
		"[OK] akismet 5.3 (latest 5.3) - WordPress.org API (Up to date)",
		"[OUTDATED] hidden-gem (version unknown) - WordPress.org API",
		"    error: WordPress.org API error: 404",
		"Summary: 3 plugin(s) found, 1 vulnerable, 2 outdated, 2 vulnerabilities",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}

	if strings.Contains(output, "Warning:") || strings.Contains(output, "warning:") {
		t.Error("warnings shown at verbose level 0")
	}
}

func TestTextReporter_Generate_Verbose(t *testing.T) {
	r := &TextReporter{Verbose: 1}

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), newTestScanReport(t), &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "Warning:    REST API endpoint: slow") {
		t.Error("verbose output should contain detection warnings")
	}
	if !strings.Contains(output, "warning: readme.txt: timeout") {
		t.Error("verbose output should contain probe warnings")
	}
}

func TestTextReporter_Generate_NotWordPress(t *testing.T) {
	r := &TextReporter{}

	var buf bytes.Buffer
	if err := r.Generate(context.Background(), newNotWordPressReport(t), &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "WordPress:  no (confidence 0)") {
		t.Errorf("output should report a negative detection\n%s", output)
	}
	if !strings.Contains(output, "plugin scan skipped") {
		t.Error("output should say the plugin scan was skipped")
	}
	if !strings.Contains(output, "Scan level: full") {
		t.Error("output should show the full scan level")
	}
	if strings.Contains(output, "Summary:") {
		t.Error("non-WordPress output should not contain a plugin summary")
	}
}

func TestTextReporter_Generate_DetectionError(t *testing.T) {
	report := newNotWordPressReport(t)
	report.Detection.Error = "dial tcp: connection refused"

	var buf bytes.Buffer
	if err := (&TextReporter{}).Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(buf.String(), "Error:      dial tcp: connection refused") {
		t.Errorf("output should contain the detection error\n%s", buf.String())
	}
}

func TestTextReporter_Generate_NoPlugins(t *testing.T) {
	report := newTestScanReport(t)
	report.Plugins = &engine.EnumerationResult{Plugins: []engine.PluginRecord{}, DetectionMethods: []string{engine.MethodCandidates}}
	report.Vulnerabilities = nil

	var buf bytes.Buffer
	if err := (&TextReporter{}).Generate(context.Background(), report, &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "No plugins found.") {
		t.Error("output should contain 'No plugins found.'")
	}
	if !strings.Contains(output, "Summary: 0 plugin(s) found, 0 vulnerable, 0 outdated, 0 vulnerabilities") {
		t.Errorf("unexpected summary\n%s", output)
	}
}

func TestTextReporter_Generate_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := (&TextReporter{}).Generate(ctx, newTestScanReport(t), &buf); err == nil {
		t.Error("Generate() with cancelled context should return error")
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written for a cancelled context")
	}
}

func TestTextReporter_Generate_Separators(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextReporter{}).Generate(context.Background(), newTestScanReport(t), &buf); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, strings.Repeat(doubleLine, lineWidth)) {
		t.Error("output should contain double-line separator")
	}
	if !strings.Contains(output, strings.Repeat(singleLine, lineWidth)) {
		t.Error("output should contain single-line separator")
	}
}
