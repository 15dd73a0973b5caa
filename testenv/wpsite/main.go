// Mock WordPress site for end-to-end testing of wpleech. It also answers the
// WordPress.org plugin info and directory APIs so a full scan runs offline.
// DO NOT deploy this in any production environment.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type plugin struct {
	slug    string
	version string
	latest  string
	inHTML  bool
	readme  bool
}

// Installed plugins of the mock site.
var plugins = []plugin{
	{slug: "contact-form-7", version: "5.4.2", latest: "5.9.8", inHTML: true, readme: true},
	{slug: "akismet", version: "5.3", latest: "5.3", readme: true},
	{slug: "woocommerce", version: "8.0.0", latest: "9.1.2", inHTML: true, readme: false},
	{slug: "classic-editor", version: "1.6.3", latest: "1.6.3", readme: true},
}

// Directory listing served by the query_plugins mock. Installed plugins come
// first so a small --total still covers them.
var directory = []string{
	"akismet", "classic-editor", "contact-form-7", "woocommerce",
	"elementor", "jetpack", "wordpress-seo", "wpforms-lite",
	"really-simple-ssl", "all-in-one-seo-pack", "litespeed-cache", "duplicate-page",
}

func findPlugin(slug string) (plugin, bool) {
	for _, p := range plugins {
		if p.slug == slug {
			return p, true
		}
	}
	return plugin{}, false
}

func main() {
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":18080"
	}

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	// Site
	r.Get("/", homeHandler)
	r.Get("/wp-json/", restHandler)
	r.Get("/wp-content/plugins/{slug}/readme.txt", readmeHandler)
	r.Get("/wp-content/plugins/{slug}/assets/css/{file}", assetHandler)
	r.Head("/wp-content/plugins/{slug}/assets/css/{file}", assetHandler)

	// WordPress.org API mocks
	r.Get("/plugins/info/1.0/{file}", pluginInfoHandler)
	r.Get("/plugins/info/1.2/", queryPluginsHandler)

	log.Printf("mock WordPress site listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en-US"><head>
<meta charset="UTF-8">
<title>wpleech test site</title>
<meta name="generator" content="WordPress 6.4.3" />
<link rel='stylesheet' href='/wp-includes/css/dist/block-library/style.min.css?ver=6.4.3' media='all' />
`)
	for _, p := range plugins {
		if p.inHTML {
			fmt.Fprintf(w, "<link rel='stylesheet' id='%s-css' href='/wp-content/plugins/%s/assets/css/%s.css?ver=%s' media='all' />\n",
				p.slug, p.slug, p.slug, p.version)
		}
	}
	fmt.Fprint(w, `</head>
<body class="home blog"><h1>wpleech test site</h1>
<p>WARNING: This is a mock WordPress site for testing only.</p>
</body></html>
`)
}

func restHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	json.NewEncoder(w).Encode(map[string]any{
		"name":       "wpleech test site",
		"url":        "http://" + r.Host,
		"namespaces": []string{"oembed/1.0", "wp/v2"},
	})
}

func readmeHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := findPlugin(chi.URLParam(r, "slug"))
	if !ok || !p.readme {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	fmt.Fprintf(w, "=== %s ===\nRequires at least: 5.0\nStable tag: %s\nLicense: GPLv2\n\n== Description ==\nMock plugin.\n", p.slug, p.version)
}

func assetHandler(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, ok := findPlugin(slug); !ok || chi.URLParam(r, "file") != slug+".css" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css")
	if r.Method != http.MethodHead {
		fmt.Fprint(w, "body{}\n")
	}
}

func pluginInfoHandler(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSuffix(chi.URLParam(r, "file"), ".json")
	w.Header().Set("Content-Type", "application/json")
	p, ok := findPlugin(slug)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Plugin not found."})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"name":    p.slug,
		"slug":    p.slug,
		"version": p.latest,
	})
}

func queryPluginsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("action") != "query_plugins" {
		http.Error(w, "unsupported action", http.StatusBadRequest)
		return
	}
	page, _ := strconv.Atoi(q.Get("request[page]"))
	perPage, _ := strconv.Atoi(q.Get("request[per_page]"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 100
	}

	start := min((page-1)*perPage, len(directory))
	end := min(start+perPage, len(directory))
	results := make([]map[string]any, 0, end-start)
	for i, slug := range directory[start:end] {
		results = append(results, map[string]any{
			"slug":            slug,
			"name":            slug,
			"version":         "1.0",
			"active_installs": 1000000 / (start + i + 1),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"info": map[string]any{
			"page":    page,
			"pages":   (len(directory) + perPage - 1) / perPage,
			"results": len(directory),
		},
		"plugins": results,
	})
}
