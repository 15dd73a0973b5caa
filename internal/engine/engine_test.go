package engine

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewScanTarget(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr error
	}{
		{"example.com", "https://example.com", nil},
		{"  http://Example.COM/path/?q=1#frag ", "http://example.com", nil},
		{"https://example.com:8443/", "https://example.com:8443", nil},
		{"HTTPS://example.com", "https://example.com", nil},
		{"", "", ErrEmptyTarget},
		{"   ", "", ErrEmptyTarget},
		{"ftp://example.com", "", ErrInvalidTarget},
		{"http://", "", ErrInvalidTarget},
	}
	for _, tt := range tests {
		got, err := NewScanTarget(tt.raw)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewScanTarget(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewScanTarget(%q) unexpected error: %v", tt.raw, err)
			continue
		}
		if got.URL() != tt.want {
			t.Errorf("NewScanTarget(%q) = %q, want %q", tt.raw, got.URL(), tt.want)
		}
	}
}

func TestScanTarget_WithURL(t *testing.T) {
	base, err := NewScanTarget("http://example.com")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.example.com/", "https://www.example.com"},
		{"https://example.com/blog/?p=1#top", "https://example.com/blog"},
		{"https://example.com/blog//", "https://example.com/blog"},
		{"https://example.com/a%20b/", "https://example.com/a%20b"},
	}
	for _, tt := range tests {
		got, err := base.WithURL(tt.raw)
		if err != nil {
			t.Errorf("WithURL(%q) error: %v", tt.raw, err)
			continue
		}
		if got.URL() != tt.want {
			t.Errorf("WithURL(%q) = %q, want %q", tt.raw, got.URL(), tt.want)
		}
	}

	got, err := base.WithURL("ftp://example.com/x")
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("WithURL(ftp) error = %v, want ErrInvalidTarget", err)
	}
	if got != base {
		t.Errorf("WithURL(ftp) = %v, want the original target", got)
	}
}

func TestScanTarget_Join(t *testing.T) {
	target, _ := NewScanTarget("https://example.com")
	if got := target.Join("/wp-json/"); got != "https://example.com/wp-json/" {
		t.Errorf("Join(/wp-json/) = %q", got)
	}
	if got := target.Join("wp-content/plugins/x/readme.txt"); got != "https://example.com/wp-content/plugins/x/readme.txt" {
		t.Errorf("Join(relative) = %q", got)
	}

	sub, _ := target.WithURL("https://example.com/blog/")
	if got := sub.Join("/wp-json/"); got != "https://example.com/blog/wp-json/" {
		t.Errorf("sub-directory Join = %q", got)
	}
}

func TestScanTarget_ZeroAndJSON(t *testing.T) {
	var zero ScanTarget
	if !zero.IsZero() {
		t.Error("zero ScanTarget IsZero = false")
	}
	target, _ := NewScanTarget("example.com")
	if target.IsZero() {
		t.Error("built ScanTarget IsZero = true")
	}
	if target.String() != target.URL() {
		t.Errorf("String = %q, URL = %q", target.String(), target.URL())
	}

	data, err := json.Marshal(struct {
		Target ScanTarget `json:"target"`
	}{target})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"target":"https://example.com"}` {
		t.Errorf("JSON = %s", data)
	}
}

func TestScanLevel(t *testing.T) {
	tests := []struct {
		level     ScanLevel
		normal    ScanLevel
		formatted string
	}{
		{ScanLevelFull, ScanLevelFull, "full"},
		{0, DefaultScanLevel, "top 1000"},
		{-7, DefaultScanLevel, "top 1000"},
		{50, 50, "top 50"},
	}
	for _, tt := range tests {
		got := tt.level.Normalize()
		if got != tt.normal {
			t.Errorf("ScanLevel(%d).Normalize() = %d, want %d", tt.level, got, tt.normal)
		}
		if s := got.String(); s != tt.formatted {
			t.Errorf("ScanLevel(%d).String() = %q, want %q", got, s, tt.formatted)
		}
	}
}

func TestDetectionResult_Decide(t *testing.T) {
	var d DetectionResult
	d.Decide()
	if d.IsWordPress {
		t.Error("empty result IsWordPress = true")
	}

	d.AddSignal("a", WordPressThreshold-1)
	d.Decide()
	if d.IsWordPress {
		t.Errorf("confidence %d IsWordPress = true", d.Confidence)
	}

	d.AddSignal("b", 1)
	d.Decide()
	if !d.IsWordPress || d.Confidence != WordPressThreshold {
		t.Errorf("confidence %d IsWordPress = %v", d.Confidence, d.IsWordPress)
	}
	if len(d.DetectedBy) != 2 || d.DetectedBy[0] != "a" || d.DetectedBy[1] != "b" {
		t.Errorf("DetectedBy = %v", d.DetectedBy)
	}
}

func TestSourceLabel(t *testing.T) {
	tests := []struct {
		src  Source
		want string
	}{
		{SourceFreeRegistry, "WordPress.org API"},
		{SourceFreeRegistryUpToDate, "WordPress.org API (Up to date)"},
		{SourcePaidDatabase, "WPScan API"},
		{SourceUnknown, "N/A"},
		{"", "N/A"},
	}
	for _, tt := range tests {
		if got := tt.src.Label(); got != tt.want {
			t.Errorf("Source(%q).Label() = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestScanReport_Counts(t *testing.T) {
	r := &ScanReport{
		Vulnerabilities: []PluginVulnerabilityReport{
			{Slug: "a", IsOutdated: true, Findings: []VulnerabilityFinding{{Title: "x"}}},
			{Slug: "b", IsOutdated: true, Findings: []VulnerabilityFinding{}},
			{Slug: "c", Findings: []VulnerabilityFinding{{Title: "y"}, {Title: "z"}}},
			{Slug: "d"},
		},
	}
	if got := r.VulnerableCount(); got != 2 {
		t.Errorf("VulnerableCount = %d, want 2", got)
	}
	if got := r.OutdatedCount(); got != 2 {
		t.Errorf("OutdatedCount = %d, want 2", got)
	}
}

func TestEnumerationResult_Slugs(t *testing.T) {
	e := &EnumerationResult{Plugins: []PluginRecord{{Slug: "b"}, {Slug: "a"}}}
	got := e.Slugs()
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("Slugs = %v", got)
	}
}
