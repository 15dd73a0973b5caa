package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
)

// NewRegistryServer starts a mock WordPress.org plugin info API. versions
// maps slug to the latest version; unknown slugs answer 404.
func NewRegistryServer(versions map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/plugins/info/1.0/") || !strings.HasSuffix(r.URL.Path, ".json") {
			http.NotFound(w, r)
			return
		}
		slug := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/plugins/info/1.0/"), ".json")
		version, ok := versions[slug]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "Plugin not found."})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"name":    slug,
			"slug":    slug,
			"version": version,
		})
	}))
}

// Vulnerability is a mock WPScan vulnerability entry.
type Vulnerability struct {
	Title   string
	FixedIn string // empty means not fixed
	CVE     string // bare number such as "2020-35489"
}

// WPScanPlugin is the mock WPScan record of a plugin.
type WPScanPlugin struct {
	LatestVersion   string
	Vulnerabilities []Vulnerability
}

// WPScanServer is a running mock WPScan API.
type WPScanServer struct {
	*httptest.Server
	calls atomic.Int64
}

// Calls returns the number of requests received.
func (s *WPScanServer) Calls() int64 {
	return s.calls.Load()
}

// NewWPScanServer starts a mock WPScan v3 plugin API that accepts only
// token. Unknown slugs answer 404.
func NewWPScanServer(token string, plugins map[string]WPScanPlugin) *WPScanServer {
	s := &WPScanServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")

		if r.Header.Get("Authorization") != "Token token="+token {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "unauthorized"})
			return
		}
		slug, ok := strings.CutPrefix(r.URL.Path, "/api/v3/plugins/")
		p, known := plugins[slug]
		if !ok || !known {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"status": "plugin not found"})
			return
		}

		vulns := make([]map[string]any, 0, len(p.Vulnerabilities))
		for _, v := range p.Vulnerabilities {
			entry := map[string]any{"title": v.Title}
			if v.FixedIn != "" {
				entry["fixed_in"] = v.FixedIn
			} else {
				entry["fixed_in"] = nil
			}
			if v.CVE != "" {
				entry["references"] = map[string]any{"cve": []string{v.CVE}}
			}
			vulns = append(vulns, entry)
		}
		json.NewEncoder(w).Encode(map[string]any{
			slug: map[string]any{
				"friendly_name":   slug,
				"latest_version":  p.LatestVersion,
				"vulnerabilities": vulns,
			},
		})
	}))
	return s
}

// DirectoryServer is a running mock of the WordPress.org query_plugins API.
type DirectoryServer struct {
	*httptest.Server
	calls atomic.Int64
}

// Calls returns the number of page requests received.
func (s *DirectoryServer) Calls() int64 {
	return s.calls.Load()
}

// NewDirectoryServer serves slugs in pages of request[per_page] under
// /plugins/info/1.2/. Pages past the end come back empty.
func NewDirectoryServer(slugs []string) *DirectoryServer {
	s := &DirectoryServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		q := r.URL.Query()
		if r.URL.Path != "/plugins/info/1.2/" || q.Get("action") != "query_plugins" {
			http.NotFound(w, r)
			return
		}
		page, _ := strconv.Atoi(q.Get("request[page]"))
		perPage, _ := strconv.Atoi(q.Get("request[per_page]"))
		if page < 1 || perPage < 1 {
			http.Error(w, "bad paging", http.StatusBadRequest)
			return
		}

		start := min((page-1)*perPage, len(slugs))
		end := min(start+perPage, len(slugs))
		plugins := make([]map[string]any, 0, end-start)
		for i, slug := range slugs[start:end] {
			plugins = append(plugins, map[string]any{
				"slug":            slug,
				"name":            strings.ToUpper(slug[:1]) + slug[1:],
				"version":         "1.0." + strconv.Itoa(i),
				"active_installs": 1000 * (len(slugs) - start - i),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"info": map[string]any{
				"page":    page,
				"pages":   (len(slugs) + perPage - 1) / perPage,
				"results": len(slugs),
			},
			"plugins": plugins,
		})
	}))
	return s
}

// SequentialSlugs returns n distinct slugs of the form prefix-N.
func SequentialSlugs(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + "-" + strconv.Itoa(i+1)
	}
	return out
}
