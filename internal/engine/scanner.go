package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/0x6d61/wpleech/internal/slugs"
	"github.com/0x6d61/wpleech/internal/transport"
)

// ScanConfig holds configuration for a scan.
type ScanConfig struct {
	Level          ScanLevel // Candidate slugs to probe (ScanLevelFull = all)
	ProbeWorkers   int       // Concurrent plugin probes (default 20)
	ResolveWorkers int       // Concurrent vulnerability lookups (default 10)
}

// DefaultScanConfig returns sensible defaults.
func DefaultScanConfig() *ScanConfig {
	return &ScanConfig{
		Level:          DefaultScanLevel,
		ProbeWorkers:   20,
		ResolveWorkers: 10,
	}
}

// --------------------------------------------------------------------------
// Interfaces for dependency injection (break import cycles)
// --------------------------------------------------------------------------

// DetectFunc fingerprints a target as WordPress.
type DetectFunc func(ctx context.Context, target ScanTarget) DetectionResult

// ProbeFunc checks whether a single plugin slug is installed on target.
type ProbeFunc func(ctx context.Context, target ScanTarget, slug string) PluginProbeResult

// SlugExtractor returns the plugin slugs referenced by an HTML page.
type SlugExtractor func(html string) []string

// AssetVersionExtractor returns slug -> ?ver= hints found in an HTML page.
type AssetVersionExtractor func(html string) map[string]string

// ResolveFunc produces the vulnerability report for one installed plugin.
type ResolveFunc func(ctx context.Context, slug, installedVersion string) PluginVulnerabilityReport

// --------------------------------------------------------------------------
// Scanner
// --------------------------------------------------------------------------

// Scanner orchestrates the full scan pipeline.
type Scanner struct {
	client        transport.Client
	config        *ScanConfig
	logger        *slog.Logger
	detect        DetectFunc
	probe         ProbeFunc
	extractSlugs  SlugExtractor
	assetVersions AssetVersionExtractor
	slugSource    slugs.Provider
	resolve       ResolveFunc

	// Progress callback
	onProgress func(msg string)
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithDetector sets the WordPress detection function.
func WithDetector(fn DetectFunc) ScannerOption {
	return func(s *Scanner) {
		s.detect = fn
	}
}

// WithProber sets the plugin probe function.
func WithProber(fn ProbeFunc) ScannerOption {
	return func(s *Scanner) {
		s.probe = fn
	}
}

// WithSlugExtractor sets the homepage slug extractor.
func WithSlugExtractor(fn SlugExtractor) ScannerOption {
	return func(s *Scanner) {
		s.extractSlugs = fn
	}
}

// WithAssetVersionExtractor sets the homepage ?ver= hint extractor.
func WithAssetVersionExtractor(fn AssetVersionExtractor) ScannerOption {
	return func(s *Scanner) {
		s.assetVersions = fn
	}
}

// WithSlugProvider sets the candidate slug list source.
func WithSlugProvider(p slugs.Provider) ScannerOption {
	return func(s *Scanner) {
		s.slugSource = p
	}
}

// WithResolver sets the vulnerability resolution function.
func WithResolver(fn ResolveFunc) ScannerOption {
	return func(s *Scanner) {
		s.resolve = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScanner creates a scanner with all components wired up.
func NewScanner(client transport.Client, config *ScanConfig, opts ...ScannerOption) *Scanner {
	if config == nil {
		config = DefaultScanConfig()
	}
	cfg := *config
	cfg.Level = cfg.Level.Normalize()
	if cfg.ProbeWorkers <= 0 {
		cfg.ProbeWorkers = 20
	}
	if cfg.ResolveWorkers <= 0 {
		cfg.ResolveWorkers = 10
	}

	s := &Scanner{
		client: client,
		config: &cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Config returns the effective scan configuration.
func (s *Scanner) Config() ScanConfig {
	return *s.config
}

// WithLevel returns a copy of the scanner that probes level candidates.
// The copy shares the client and all wired components.
func (s *Scanner) WithLevel(level ScanLevel) *Scanner {
	cfg := *s.config
	cfg.Level = level.Normalize()
	clone := *s
	clone.config = &cfg
	return &clone
}

// SetProgressCallback sets a function called with status messages.
func (s *Scanner) SetProgressCallback(fn func(string)) {
	s.onProgress = fn
}

// progress sends a status message via the progress callback if set.
func (s *Scanner) progress(format string, args ...any) {
	if s.onProgress != nil {
		s.onProgress(fmt.Sprintf(format, args...))
	}
}

// Scan runs the full pipeline against a target.
//
// Pipeline:
//  1. Fingerprint the target as WordPress (post-redirect URL becomes canonical)
//  2. Stop if the target is not WordPress
//  3. Enumerate installed plugins
//  4. Resolve vulnerabilities for every installed plugin via worker pool
//
// Per-probe failures never abort the scan; they are recorded on the results.
func (s *Scanner) Scan(ctx context.Context, target ScanTarget) (*ScanReport, error) {
	report := &ScanReport{
		Target:    target,
		Level:     s.config.Level,
		StartTime: time.Now(),
	}

	defer func() {
		report.EndTime = time.Now()
		if s.client != nil {
			if stats := s.client.Stats(); stats != nil {
				report.RequestCount = stats.TotalRequests
			}
		}
	}()

	if target.IsZero() {
		return report, ErrEmptyTarget
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("scan cancelled before start: %w", err)
	}
	if s.detect == nil {
		return report, fmt.Errorf("engine: no detector configured")
	}

	// Step 1: Fingerprint.
	det := s.detect(ctx, target)
	report.Detection = det
	if det.FinalURL != "" {
		if canonical, err := target.WithURL(det.FinalURL); err == nil {
			target = canonical
			report.Target = canonical
		} else {
			s.logger.Warn("ignoring unusable final URL", "url", det.FinalURL, "error", err)
		}
	}
	if det.Error != "" {
		s.logger.Warn("wordpress detection failed", "target", target.URL(), "error", det.Error)
	}

	// Step 2: Gate on the detection verdict.
	if !det.IsWordPress {
		s.progress("target does not look like WordPress (confidence %d)", det.Confidence)
		return report, nil
	}
	s.progress("WordPress detected (confidence %d, version %q)", det.Confidence, det.WPVersion)

	// Step 3: Enumerate plugins.
	enum := s.Enumerate(ctx, target, s.config.Level)
	report.Plugins = &enum

	// Step 4: Resolve vulnerabilities.
	report.Vulnerabilities = s.ResolveAll(ctx, enum.Plugins)

	s.progress("scan complete: %d plugin(s), %d vulnerable, %d outdated",
		enum.TotalFound, report.VulnerableCount(), report.OutdatedCount())

	return report, nil
}

// Enumerate discovers installed plugins on a confirmed WordPress target.
// Slugs referenced by the homepage are probed first; candidate slugs already
// discovered there are never probed again.
func (s *Scanner) Enumerate(ctx context.Context, target ScanTarget, level ScanLevel) EnumerationResult {
	result := EnumerationResult{
		Plugins:          []PluginRecord{},
		DetectionMethods: []string{},
	}
	discovered := make(map[string]bool)

	merge := func(found []PluginProbeResult) {
		sort.Slice(found, func(i, j int) bool { return found[i].Slug < found[j].Slug })
		for _, r := range found {
			if discovered[r.Slug] {
				continue
			}
			discovered[r.Slug] = true
			result.Plugins = append(result.Plugins, r)
		}
	}

	// Step 1: Slugs referenced by the homepage.
	var hints map[string]string
	if html, ok := s.fetchHomepage(ctx, target); ok {
		if s.assetVersions != nil {
			hints = s.assetVersions(html)
		}
		var htmlSlugs []string
		if s.extractSlugs != nil {
			htmlSlugs = s.extractSlugs(html)
		}
		if len(htmlSlugs) > 0 {
			result.DetectionMethods = append(result.DetectionMethods, MethodHTML)
			s.progress("found %d plugin reference(s) in homepage", len(htmlSlugs))
			merge(s.probeAll(ctx, target, "html", htmlSlugs))
		}
	}

	// Step 2: Candidate list, minus anything already recorded.
	candidates := s.loadCandidates(ctx, level)
	result.DetectionMethods = append(result.DetectionMethods, MethodCandidates)

	seen := make(map[string]bool, len(candidates))
	remaining := make([]string, 0, len(candidates))
	for _, slug := range candidates {
		if discovered[slug] || seen[slug] {
			continue
		}
		seen[slug] = true
		remaining = append(remaining, slug)
	}
	s.progress("checking %d candidate plugin(s) with %d workers", len(remaining), s.config.ProbeWorkers)
	merge(s.probeAll(ctx, target, "candidates", remaining))

	for i := range result.Plugins {
		if v, ok := hints[result.Plugins[i].Slug]; ok {
			result.Plugins[i].AssetVersion = v
		}
	}
	result.TotalFound = len(result.Plugins)
	return result
}

// ResolveAll resolves vulnerabilities for every plugin concurrently. The
// reports are sorted by slug.
func (s *Scanner) ResolveAll(ctx context.Context, plugins []PluginRecord) []PluginVulnerabilityReport {
	if s.resolve == nil || len(plugins) == 0 {
		return nil
	}

	reports := runPool(ctx, s.logger, "resolve", s.config.ResolveWorkers, plugins,
		func(ctx context.Context, p PluginRecord) (PluginVulnerabilityReport, bool) {
			r := s.resolve(ctx, p.Slug, p.Version)
			if r.Findings == nil {
				r.Findings = []VulnerabilityFinding{}
			}
			if r.Error != "" {
				s.logger.Info("vulnerability lookup degraded", "plugin", p.Slug, "error", r.Error)
			}
			return r, true
		})

	sort.Slice(reports, func(i, j int) bool { return reports[i].Slug < reports[j].Slug })
	return reports
}

// probeAll probes slugs through the bounded pool and returns installed ones.
func (s *Scanner) probeAll(ctx context.Context, target ScanTarget, stage string, list []string) []PluginProbeResult {
	if s.probe == nil {
		return nil
	}
	return runPool(ctx, s.logger, stage, s.config.ProbeWorkers, list,
		func(ctx context.Context, slug string) (PluginProbeResult, bool) {
			r := s.probe(ctx, target, slug)
			for _, w := range r.Warnings {
				s.logger.Debug("plugin probe warning", "plugin", slug, "warning", w)
			}
			if r.Installed {
				s.logger.Info("plugin found", "plugin", r.Slug, "version", r.Version, "via", r.DetectedBy)
				s.progress("plugin found: %s %s", r.Slug, r.Version)
			}
			return r, r.Installed
		})
}

// fetchHomepage returns the root page body. Failure is non-fatal.
func (s *Scanner) fetchHomepage(ctx context.Context, target ScanTarget) (string, bool) {
	if s.client == nil {
		return "", false
	}
	resp, err := s.client.Do(ctx, transport.Get(target.URL()))
	if err != nil {
		s.logger.Warn("homepage fetch failed", "target", target.URL(), "error", err)
		return "", false
	}
	return resp.BodyString(), true
}

// loadCandidates returns the first level slugs of the candidate list. The
// built-in default replaces a missing, failing or empty source and is
// always used whole.
func (s *Scanner) loadCandidates(ctx context.Context, level ScanLevel) []string {
	if s.slugSource == nil {
		return slugs.DefaultSlugs()
	}
	list, err := s.slugSource.Slugs(ctx)
	if err != nil {
		s.logger.Warn("candidate slug list unavailable, using defaults", "error", err)
		return slugs.DefaultSlugs()
	}
	if len(list) == 0 {
		s.logger.Warn("candidate slug list is empty, using defaults")
		return slugs.DefaultSlugs()
	}
	return slugs.Limit(list, int(level.Normalize()))
}
