package detector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/0x6d61/wpleech/internal/engine"
	"github.com/0x6d61/wpleech/internal/transport"
)

// ErrInvalidSlug is returned for slugs that cannot name a plugin directory.
var ErrInvalidSlug = errors.New("invalid plugin slug")

// ValidateSlug rejects empty slugs, "." and "..", and slugs containing a
// path separator.
func ValidateSlug(slug string) error {
	switch {
	case slug == "":
		return fmt.Errorf("%w: empty", ErrInvalidSlug)
	case slug == "." || slug == "..":
		return fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	case strings.ContainsAny(slug, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidSlug, slug)
	}
	return nil
}

// Prober decides whether a single plugin is installed.
type Prober struct {
	client transport.Client
}

// NewProber creates a prober sending requests through client.
func NewProber(client transport.Client) *Prober {
	return &Prober{client: client}
}

// Probe checks the plugin's readme.txt, then its main stylesheet. Network
// failures are recorded as warnings and never returned; probing the same
// slug twice against an unchanged site gives the same result.
func (p *Prober) Probe(ctx context.Context, target engine.ScanTarget, slug string) engine.PluginProbeResult {
	result := engine.PluginProbeResult{Slug: slug}

	if err := ValidateSlug(slug); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
		return result
	}
	escaped := url.PathEscape(slug)
	base := target.Join("/wp-content/plugins/" + escaped + "/")

	// Step 1: readme.txt
	readmeURL := base + "readme.txt"
	resp, err := p.client.Do(ctx, transport.Get(readmeURL))
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("readme.txt: %v", err))
	case resp.OK():
		result.Installed = true
		result.DetectedBy = engine.DetectedByReadme
		result.SourceURL = readmeURL
		result.Version = ParseReadmeVersion(resp.BodyString())
		return result
	}

	// Step 2: assets/css/<slug>.css
	assetURL := base + "assets/css/" + escaped + ".css"
	resp, err = p.client.Do(ctx, transport.Head(assetURL))
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("asset file: %v", err))
	case resp.OK():
		result.Installed = true
		result.DetectedBy = engine.DetectedByAsset
		result.SourceURL = assetURL
	}

	return result
}
