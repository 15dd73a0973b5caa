// Package vulndb resolves whether an installed plugin is outdated and which
// known vulnerabilities apply to it, using the free WordPress.org plugin
// registry and, when a token is configured, the WPScan vulnerability API.
package vulndb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/0x6d61/wpleech/internal/transport"
)

// DefaultRegistryURL is the WordPress.org API base.
const DefaultRegistryURL = "https://api.wordpress.org"

// StatusError reports a non-200 answer from an upstream API.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
}

// PluginInfo is the subset of the registry's plugin record we use.
type PluginInfo struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Error   string `json:"error"`
}

// RegistryClient queries the WordPress.org plugin info API.
type RegistryClient struct {
	client  transport.Client
	baseURL string
}

// NewRegistryClient creates a registry client. An empty baseURL means
// DefaultRegistryURL.
func NewRegistryClient(client transport.Client, baseURL string) *RegistryClient {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	return &RegistryClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// PluginInfo fetches the registry record of slug. Network failures, non-200
// answers and undecodable bodies are all returned as errors.
func (c *RegistryClient) PluginInfo(ctx context.Context, slug string) (*PluginInfo, error) {
	endpoint := c.baseURL + "/plugins/info/1.0/" + url.PathEscape(slug) + ".json"

	resp, err := c.client.Do(ctx, transport.Get(endpoint))
	if err != nil {
		return nil, fmt.Errorf("registry request: %w", err)
	}
	if !resp.OK() {
		return nil, &StatusError{Service: "WordPress.org API", Code: resp.StatusCode}
	}

	var info PluginInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, fmt.Errorf("registry response: %w", err)
	}
	if info.Error != "" {
		return nil, fmt.Errorf("registry: %s", info.Error)
	}
	return &info, nil
}
