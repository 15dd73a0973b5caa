// Package slugs manages the candidate plugin slug list used by plugin
// enumeration: loading it from a text file or SQLite, caching it per
// process, and rebuilding it from the WordPress.org plugin directory.
package slugs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Provider supplies the ordered candidate slug list.
type Provider interface {
	Slugs(ctx context.Context) ([]string, error)
}

// Sink receives a freshly built list.
type Sink interface {
	Publish(ctx context.Context, entries []Entry) error
}

// Entry is one plugin of a built list. Only Slug is required.
type Entry struct {
	Slug           string `json:"slug"`
	Name           string `json:"name,omitempty"`
	Version        string `json:"version,omitempty"`
	ActiveInstalls int    `json:"active_installs,omitempty"`
}

// defaultSlugs is used when no list can be loaded.
var defaultSlugs = []string{
	"akismet",
	"contact-form-7",
	"wordpress-seo",
	"jetpack",
	"wordfence",
	"elementor",
	"woocommerce",
}

// DefaultSlugs returns a copy of the built-in fallback list.
func DefaultSlugs() []string {
	out := make([]string, len(defaultSlugs))
	copy(out, defaultSlugs)
	return out
}

// Limit returns at most n slugs from the front of list. A negative n keeps
// everything.
func Limit(list []string, n int) []string {
	if n < 0 || n >= len(list) {
		return list
	}
	return list[:n]
}

// SlugsOf returns the slugs of entries in order.
func SlugsOf(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Slug
	}
	return out
}

// ParseList reads a plugin list. Each line is either a bare slug or
// "slug|name|version|active_installs"; blank lines and lines starting with
// '#' are skipped, and duplicate slugs keep their first occurrence.
func ParseList(r io.Reader) ([]Entry, error) {
	var entries []Entry
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e := parseLine(line)
		if e.Slug == "" || seen[e.Slug] {
			continue
		}
		seen[e.Slug] = true
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("slugs: read list: %w", err)
	}
	return entries, nil
}

func parseLine(line string) Entry {
	parts := strings.Split(line, "|")
	e := Entry{Slug: strings.TrimSpace(parts[0])}

	switch {
	case len(parts) >= 4:
		// The name may itself contain '|'.
		last := strings.TrimSpace(parts[len(parts)-1])
		if n, err := strconv.Atoi(last); err == nil {
			e.ActiveInstalls = n
			e.Version = strings.TrimSpace(parts[len(parts)-2])
			e.Name = strings.TrimSpace(strings.Join(parts[1:len(parts)-2], "|"))
		} else {
			e.Name = strings.TrimSpace(parts[1])
			e.Version = strings.TrimSpace(parts[2])
		}
	case len(parts) == 3:
		e.Name = strings.TrimSpace(parts[1])
		e.Version = strings.TrimSpace(parts[2])
	case len(parts) == 2:
		e.Name = strings.TrimSpace(parts[1])
	}

	switch strings.ToLower(e.Version) {
	case "null", "unknown", "0", "n/a", "none":
		e.Version = ""
	}
	return e
}

// formatLine renders e in the list file format. Entries without metadata
// are written as a bare slug.
func formatLine(e Entry) string {
	if e.Name == "" && e.Version == "" && e.ActiveInstalls == 0 {
		return e.Slug
	}
	return fmt.Sprintf("%s|%s|%s|%d", e.Slug, e.Name, e.Version, e.ActiveInstalls)
}

// MultiSink publishes to every sink in order and stops at the first error.
type MultiSink []Sink

// Publish implements Sink.
func (m MultiSink) Publish(ctx context.Context, entries []Entry) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, entries); err != nil {
			return err
		}
	}
	return nil
}
