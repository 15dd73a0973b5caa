// Package testutil provides mock servers for integration testing of the
// wpleech scanner: a configurable WordPress site plus stand-ins for the
// WordPress.org plugin API and the WPScan vulnerability API.
//
// All values embedded in generated pages are HTML-escaped via html/template.
package testutil

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Plugin describes a plugin installed on the mock WordPress site.
type Plugin struct {
	Slug    string
	Version string // readme "Stable tag"; empty writes a readme without one

	// NoReadme hides readme.txt so only the asset stylesheet reveals the plugin.
	NoReadme bool

	// InHTML makes the homepage load the plugin's stylesheet.
	InHTML bool
}

// SiteConfig describes what the mock WordPress site exposes.
type SiteConfig struct {
	// Generator is the WordPress version in the meta generator tag.
	// Empty omits the tag.
	Generator string

	// CorePaths adds /wp-includes/ and /wp-content/ references to the
	// homepage even when no plugin is referenced.
	CorePaths bool

	// RESTAPI serves a WordPress REST index at /wp-json/.
	RESTAPI bool

	// Plugins are the installed plugins.
	Plugins []Plugin
}

// FullSite returns a config that trips every detection signal.
func FullSite(plugins ...Plugin) SiteConfig {
	return SiteConfig{
		Generator: "6.4.3",
		CorePaths: true,
		RESTAPI:   true,
		Plugins:   plugins,
	}
}

var homeTmpl = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html lang="en-US">
<head>
<meta charset="UTF-8">
<title>Just another WordPress site</title>
{{- if .Generator}}
<meta name="generator" content="WordPress {{.Generator}}" />
{{- end}}
{{- if .CorePaths}}
<link rel='stylesheet' id='wp-block-library-css' href='/wp-includes/css/dist/block-library/style.min.css?ver={{.Generator}}' media='all' />
{{- end}}
{{- range .Plugins}}{{if .InHTML}}
<link rel='stylesheet' id='{{.Slug}}-css' href='/wp-content/plugins/{{.Slug}}/assets/css/{{.Slug}}.css?ver={{.Version}}' media='all' />
{{- end}}{{end}}
</head>
<body class="home blog">
<h1>Hello world!</h1>
{{- if .CorePaths}}
<script src='/wp-content/themes/twentytwentyfour/assets/js/navigation.js'></script>
{{- end}}
</body>
</html>
`))

var readmeTmpl = template.Must(template.New("readme").Parse(`=== {{.Slug}} ===
Contributors: example
Tags: testing
Requires at least: 5.0
Tested up to: 6.4
{{- if .Version}}
Stable tag: {{.Version}}
{{- end}}
License: GPLv2 or later

A mock plugin.
`))

// WordPressSite is a running mock WordPress site.
type WordPressSite struct {
	*httptest.Server

	cfg     SiteConfig
	plugins map[string]Plugin

	mu   sync.Mutex
	hits map[string]int
}

// NewWordPressServer starts a mock WordPress site. Close it after use.
func NewWordPressServer(cfg SiteConfig) *WordPressSite {
	s := &WordPressSite{
		cfg:     cfg,
		plugins: make(map[string]Plugin, len(cfg.Plugins)),
		hits:    make(map[string]int),
	}
	for _, p := range cfg.Plugins {
		s.plugins[p.Slug] = p
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Hits returns how many requests were made for path.
func (s *WordPressSite) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests served.
func (s *WordPressSite) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

func (s *WordPressSite) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/":
		s.serveHome(w)
	case r.URL.Path == "/wp-json/" || r.URL.Path == "/wp-json":
		s.serveREST(w, r)
	case strings.HasPrefix(r.URL.Path, "/wp-content/plugins/"):
		s.servePlugin(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *WordPressSite) serveHome(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	homeTmpl.Execute(w, s.cfg)
}

func (s *WordPressSite) serveREST(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.RESTAPI {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	json.NewEncoder(w).Encode(map[string]any{
		"name":       "Mock Site",
		"url":        "http://" + r.Host,
		"namespaces": []string{"oembed/1.0", "wp/v2", "wp-site-health/v1"},
	})
}

func (s *WordPressSite) servePlugin(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/wp-content/plugins/")
	slug, file, ok := strings.Cut(rest, "/")
	p, installed := s.plugins[slug]
	if !ok || !installed {
		http.NotFound(w, r)
		return
	}

	switch file {
	case "readme.txt":
		if p.NoReadme {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
		readmeTmpl.Execute(w, p)
	case "assets/css/" + slug + ".css":
		w.Header().Set("Content-Type", "text/css")
		if r.Method != http.MethodHead {
			w.Write([]byte("body{}\n"))
		}
	default:
		http.NotFound(w, r)
	}
}
