// Package detector probes a WordPress site for individual plugins and
// extracts plugin hints from page content.
package detector

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pluginPathPattern matches a plugin directory reference and captures the slug.
var pluginPathPattern = regexp.MustCompile(`/wp-content/plugins/([^/'"]+)`)

// stableTagPattern captures the version from a readme.txt "Stable tag" line.
var stableTagPattern = regexp.MustCompile(`(?i)Stable tag:\s*([0-9.]+)`)

// ExtractPluginSlugs returns the distinct plugin slugs referenced by html,
// in order of first appearance.
func ExtractPluginSlugs(html string) []string {
	matches := pluginPathPattern.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		slug := m[1]
		if seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, slug)
	}
	return out
}

// ParseReadmeVersion returns the "Stable tag" version of a plugin readme,
// or "" if there is none.
func ParseReadmeVersion(readme string) string {
	m := stableTagPattern.FindStringSubmatch(readme)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractAssetVersions maps plugin slugs to the ?ver= query value of the
// first stylesheet or script the page loads from that plugin's directory.
func ExtractAssetVersions(html string) map[string]string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	versions := make(map[string]string)
	visit := func(raw string) {
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		m := pluginPathPattern.FindStringSubmatch(u.Path)
		if m == nil {
			return
		}
		ver := u.Query().Get("ver")
		if ver == "" {
			return
		}
		if _, ok := versions[m[1]]; !ok {
			versions[m[1]] = ver
		}
	}

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		visit(href)
	})
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		visit(src)
	})

	return versions
}
