package vulndb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/0x6d61/wpleech/internal/transport"
)

// DefaultWPScanURL is the WPScan API base.
const DefaultWPScanURL = "https://wpscan.com"

// TokenEnv is the environment variable holding the WPScan API token.
const TokenEnv = "WPSCAN_API_TOKEN"

// WPScanVulnerability is one vulnerability entry of the WPScan API.
type WPScanVulnerability struct {
	Title      string `json:"title"`
	FixedIn    string `json:"fixed_in"`
	CVE        string `json:"cve"`
	References struct {
		CVE []string `json:"cve"`
	} `json:"references"`
}

// CVEID returns the CVE identifier of the entry, or "".
func (v WPScanVulnerability) CVEID() string {
	id := v.CVE
	if id == "" && len(v.References.CVE) > 0 {
		id = v.References.CVE[0]
	}
	if id == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToUpper(id), "CVE-") {
		id = "CVE-" + id
	}
	return id
}

// WPScanPlugin is the WPScan record of a plugin.
type WPScanPlugin struct {
	LatestVersion   string                `json:"latest_version"`
	Vulnerabilities []WPScanVulnerability `json:"vulnerabilities"`
}

// WPScanClient queries the WPScan v3 plugin API.
type WPScanClient struct {
	client  transport.Client
	baseURL string
	token   string
}

// NewWPScanClient creates a WPScan client. An empty baseURL means
// DefaultWPScanURL; an empty token disables the client.
func NewWPScanClient(client transport.Client, baseURL, token string) *WPScanClient {
	if baseURL == "" {
		baseURL = DefaultWPScanURL
	}
	return &WPScanClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Enabled reports whether a token is configured.
func (c *WPScanClient) Enabled() bool {
	return c != nil && c.token != ""
}

// Plugin fetches the WPScan record of slug. A response without an entry for
// slug yields an empty record.
func (c *WPScanClient) Plugin(ctx context.Context, slug string) (*WPScanPlugin, error) {
	req := transport.Get(c.baseURL + "/api/v3/plugins/" + url.PathEscape(slug))
	req.Headers = map[string]string{"Authorization": "Token token=" + c.token}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("wpscan request: %w", err)
	}
	if !resp.OK() {
		return nil, &StatusError{Service: "WPScan API", Code: resp.StatusCode}
	}

	var data map[string]WPScanPlugin
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("wpscan response: %w", err)
	}
	p := data[slug]
	return &p, nil
}
