package vulndb

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/0x6d61/wpleech/internal/detector"
	"github.com/0x6d61/wpleech/internal/engine"
	"github.com/0x6d61/wpleech/internal/version"
)

// Resolver produces per-plugin vulnerability reports. The registry is always
// consulted; WPScan only when the plugin looks outdated (or is unknown to the
// registry) and a token is configured.
type Resolver struct {
	registry *RegistryClient
	wpscan   *WPScanClient
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver. wpscan may be nil.
func NewResolver(registry *RegistryClient, wpscan *WPScanClient, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry: registry,
		wpscan:   wpscan,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve builds the report for slug at installedVersion (may be empty).
// Upstream failures are recorded in the report's Error field.
func (r *Resolver) Resolve(ctx context.Context, slug, installedVersion string) engine.PluginVulnerabilityReport {
	report := engine.PluginVulnerabilityReport{
		Slug:             slug,
		InstalledVersion: installedVersion,
		Source:           engine.SourceFreeRegistry,
		Findings:         []engine.VulnerabilityFinding{},
	}

	if err := detector.ValidateSlug(slug); err != nil {
		report.Source = engine.SourceUnknown
		report.Error = err.Error()
		return report
	}

	var errs []string

	// Tier 1: free registry.
	info, err := r.registry.PluginInfo(ctx, slug)
	if err != nil {
		// Without the registry we cannot prove the plugin is current.
		report.IsOutdated = true
		errs = append(errs, "WordPress.org API error: "+err.Error())
		r.logger.Debug("registry lookup failed", "plugin", slug, "error", err)
	} else {
		report.LatestVersion = info.Version
		if installedVersion != "" && report.LatestVersion != "" {
			report.IsOutdated = isOutdated(installedVersion, report.LatestVersion)
		}
	}

	// Tier 2: paid database.
	unknown := installedVersion != "" && report.LatestVersion == ""
	hasToken := r.wpscan.Enabled()
	if (report.IsOutdated || unknown) && hasToken {
		report.Source = engine.SourcePaidDatabase
		p, err := r.wpscan.Plugin(ctx, slug)
		if err != nil {
			errs = append(errs, "WPScan API error: "+err.Error())
			r.logger.Debug("wpscan lookup failed", "plugin", slug, "error", err)
		} else {
			if p.LatestVersion != "" {
				report.LatestVersion = p.LatestVersion
				if installedVersion != "" {
					report.IsOutdated = isOutdated(installedVersion, report.LatestVersion)
				}
			}
			report.Findings = applicable(p.Vulnerabilities, installedVersion)
		}
	} else if hasToken && !report.IsOutdated {
		report.Source = engine.SourceFreeRegistryUpToDate
	}

	if len(errs) > 0 {
		report.Error = strings.Join(errs, "; ")
	}
	return report
}

// isOutdated compares dotted versions; an unparsable pair counts as outdated.
func isOutdated(installed, latest string) bool {
	less, err := version.Less(installed, latest)
	if err != nil {
		return true
	}
	return less
}

// applicable keeps the vulnerabilities that affect installed. Entries without
// a fix always apply; with no installed version every entry applies; an
// unparsable comparison keeps the entry.
func applicable(vulns []WPScanVulnerability, installed string) []engine.VulnerabilityFinding {
	findings := []engine.VulnerabilityFinding{}
	for _, v := range vulns {
		finding := engine.VulnerabilityFinding{
			Title:   v.Title,
			CVE:     v.CVEID(),
			FixedIn: v.FixedIn,
		}
		if v.FixedIn == "" {
			finding.FixedIn = engine.NotFixed
			findings = append(findings, finding)
			continue
		}
		if installed != "" {
			less, err := version.Less(installed, v.FixedIn)
			if err == nil && !less {
				continue
			}
		}
		findings = append(findings, finding)
	}
	return findings
}
