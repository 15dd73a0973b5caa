// Package engine provides the core scan orchestration pipeline: WordPress
// detection, plugin enumeration and per-plugin vulnerability resolution.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrEmptyTarget is returned when no target URL was supplied.
	ErrEmptyTarget = errors.New("target URL is required")

	// ErrInvalidTarget is returned when the target URL cannot be parsed
	// into an http(s) scheme and host.
	ErrInvalidTarget = errors.New("invalid target URL")
)

// ScanTarget is the normalized base URL of a scan. The zero value is not
// usable; build one with NewScanTarget.
type ScanTarget struct {
	base string
}

// NewScanTarget normalizes raw into a scan target: https:// is assumed when
// no scheme is given and everything after the host (path, query, fragment)
// is dropped.
func NewScanTarget(raw string) (ScanTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ScanTarget{}, ErrEmptyTarget
	}
	u, err := parseHTTPURL(raw)
	if err != nil {
		return ScanTarget{}, err
	}
	return ScanTarget{base: u.Scheme + "://" + u.Host}, nil
}

// WithURL returns the canonical target for a post-redirect URL. Query and
// fragment are dropped and trailing slashes trimmed; a path is kept so a
// redirect into a sub-directory install is followed by later probes.
func (t ScanTarget) WithURL(raw string) (ScanTarget, error) {
	u, err := parseHTTPURL(strings.TrimSpace(raw))
	if err != nil {
		return t, err
	}
	return ScanTarget{base: u.Scheme + "://" + u.Host + strings.TrimRight(u.EscapedPath(), "/")}, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(raw, "://") {
			return nil, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidTarget, raw)
		}
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidTarget, raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u, nil
}

// URL returns the base URL without a trailing slash.
func (t ScanTarget) URL() string {
	return t.base
}

// Join appends an absolute path (e.g. "/wp-json/") to the base URL.
func (t ScanTarget) Join(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return t.base + path
}

// IsZero reports whether t was not built by NewScanTarget.
func (t ScanTarget) IsZero() bool {
	return t.base == ""
}

// String implements fmt.Stringer.
func (t ScanTarget) String() string {
	return t.base
}

// MarshalJSON encodes the target as its base URL string.
func (t ScanTarget) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.base)
}

// ScanLevel bounds how many candidate slugs are probed.
type ScanLevel int

const (
	// ScanLevelFull probes every available candidate slug.
	ScanLevelFull ScanLevel = -1

	// DefaultScanLevel is used when no level (or a non-positive one) is given.
	DefaultScanLevel ScanLevel = 1000
)

// Normalize maps anything that is neither positive nor ScanLevelFull to
// DefaultScanLevel.
func (l ScanLevel) Normalize() ScanLevel {
	if l == ScanLevelFull || l > 0 {
		return l
	}
	return DefaultScanLevel
}

// String returns "full" or the numeric level.
func (l ScanLevel) String() string {
	if l == ScanLevelFull {
		return "full"
	}
	return fmt.Sprintf("top %d", int(l))
}

// WordPressThreshold is the minimum confidence for a positive detection.
const WordPressThreshold = 30

// DetectionResult is the outcome of WordPress fingerprinting.
type DetectionResult struct {
	IsWordPress bool     `json:"is_wordpress"`
	Confidence  int      `json:"confidence"`
	DetectedBy  []string `json:"detected_by"`
	WPVersion   string   `json:"wp_version,omitempty"`
	FinalURL    string   `json:"url"`
	Error       string   `json:"error,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// AddSignal records a matched signal and its weight.
func (d *DetectionResult) AddSignal(name string, weight int) {
	d.DetectedBy = append(d.DetectedBy, name)
	d.Confidence += weight
}

// Decide sets IsWordPress from the accumulated confidence.
func (d *DetectionResult) Decide() {
	d.IsWordPress = d.Confidence >= WordPressThreshold
}

// Plugin detection methods.
const (
	DetectedByReadme = "readme.txt"
	DetectedByAsset  = "asset file"
)

// Enumeration methods reported in EnumerationResult.DetectionMethods.
const (
	MethodHTML       = "HTML parsing"
	MethodCandidates = "common plugin checking (concurrent)"
)

// PluginProbeResult is the outcome of probing a single plugin slug.
type PluginProbeResult struct {
	Slug       string `json:"slug"`
	Installed  bool   `json:"installed"`
	Version    string `json:"version,omitempty"`
	DetectedBy string `json:"detected_by,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`

	// AssetVersion is the ?ver= hint seen on the homepage, if any.
	AssetVersion string `json:"asset_version,omitempty"`

	// Warnings lists probe steps that failed at the network level.
	Warnings []string `json:"warnings,omitempty"`
}

// PluginRecord is a probe result with Installed == true.
type PluginRecord = PluginProbeResult

// EnumerationResult is the merged, deduplicated plugin list of a scan.
type EnumerationResult struct {
	Plugins          []PluginRecord `json:"plugins"`
	TotalFound       int            `json:"total_found"`
	DetectionMethods []string       `json:"detection_methods"`
}

// Slugs returns the slugs of all enumerated plugins.
func (e *EnumerationResult) Slugs() []string {
	out := make([]string, len(e.Plugins))
	for i, p := range e.Plugins {
		out[i] = p.Slug
	}
	return out
}

// NotFixed marks a vulnerability without a fixed-in version.
const NotFixed = "not fixed"

// VulnerabilityFinding is one known vulnerability that applies to the
// installed plugin version.
type VulnerabilityFinding struct {
	Title   string `json:"title"`
	CVE     string `json:"cve,omitempty"`
	FixedIn string `json:"fixed_in"`
}

// Source identifies which data source produced a vulnerability report.
type Source string

const (
	SourceFreeRegistry         Source = "FreeRegistry"
	SourceFreeRegistryUpToDate Source = "FreeRegistryUpToDate"
	SourcePaidDatabase         Source = "PaidDatabase"
	SourceUnknown              Source = "Unknown"
)

// Label returns a human-readable name for the source.
func (s Source) Label() string {
	switch s {
	case SourceFreeRegistry:
		return "WordPress.org API"
	case SourceFreeRegistryUpToDate:
		return "WordPress.org API (Up to date)"
	case SourcePaidDatabase:
		return "WPScan API"
	default:
		return "N/A"
	}
}

// PluginVulnerabilityReport is the vulnerability resolution outcome for one
// plugin.
type PluginVulnerabilityReport struct {
	Slug             string                 `json:"slug"`
	InstalledVersion string                 `json:"version,omitempty"`
	LatestVersion    string                 `json:"latest_version,omitempty"`
	IsOutdated       bool                   `json:"is_outdated"`
	Source           Source                 `json:"source"`
	Findings         []VulnerabilityFinding `json:"vulnerabilities"`
	Error            string                 `json:"error,omitempty"`
}

// ScanReport is the aggregate result handed back to the caller.
type ScanReport struct {
	Target          ScanTarget                  `json:"target"`
	Level           ScanLevel                   `json:"scan_level"`
	Detection       DetectionResult             `json:"wp_check"`
	Plugins         *EnumerationResult          `json:"plugins,omitempty"`
	Vulnerabilities []PluginVulnerabilityReport `json:"vulnerabilities,omitempty"`
	StartTime       time.Time                   `json:"start_time"`
	EndTime         time.Time                   `json:"end_time"`
	RequestCount    int64                       `json:"request_count"`
}

// VulnerableCount returns the number of plugins with at least one finding.
func (r *ScanReport) VulnerableCount() int {
	n := 0
	for _, v := range r.Vulnerabilities {
		if len(v.Findings) > 0 {
			n++
		}
	}
	return n
}

// OutdatedCount returns the number of plugins reported as outdated.
func (r *ScanReport) OutdatedCount() int {
	n := 0
	for _, v := range r.Vulnerabilities {
		if v.IsOutdated {
			n++
		}
	}
	return n
}
