package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTimeout is the per-request timeout used when ClientOptions.Timeout
// is zero.
const DefaultTimeout = 10 * time.Second

// MaxBodySize caps how much of a response body is read. Anything beyond it
// is discarded.
const MaxBodySize = 5 << 20

// Client is the interface for the HTTP transport layer. Every probe the
// scanner sends goes through this interface.
type Client interface {
	// Do sends an HTTP request and returns the response.
	Do(ctx context.Context, req *Request) (*Response, error)

	// Stats returns transport statistics.
	Stats() *TransportStats
}

// TransportStats holds aggregate statistics for the transport client.
type TransportStats struct {
	TotalRequests  int64
	FailedRequests int64
	TotalDuration  time.Duration
	AvgDuration    time.Duration
}

// ClientOptions holds configuration for creating a new DefaultClient.
// A DefaultClient never changes its options after construction.
type ClientOptions struct {
	// Timeout is the timeout applied to every request (DefaultTimeout if zero).
	Timeout time.Duration

	// ProxyURL is the proxy URL (http, https, socks5 or socks5h).
	ProxyURL string

	// FollowRedirects controls whether redirects are followed.
	FollowRedirects bool

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// UserAgent is sent on every request without an explicit User-Agent
	// header. Empty means DefaultUserAgent.
	UserAgent string

	// RandomUserAgent picks a random browser User-Agent per request
	// instead of UserAgent.
	RandomUserAgent bool

	// MaxConnsPerHost bounds idle and active connections per host
	// (0 = 64).
	MaxConnsPerHost int
}

// DefaultClient is the default implementation of the Client interface,
// backed by net/http with a shared, keep-alive connection pool.
type DefaultClient struct {
	httpClient      *http.Client
	opts            ClientOptions
	mu              sync.RWMutex
	totalRequests   int64
	failedRequests  int64
	totalDurationNs int64
}

// NewClient creates a new DefaultClient with the given options.
func NewClient(opts ClientOptions) (*DefaultClient, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = 64
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        opts.MaxConnsPerHost * 2,
		MaxIdleConnsPerHost: opts.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: opts.Timeout,
	}

	if opts.ProxyURL != "" {
		if err := configureProxy(transport, opts.ProxyURL); err != nil {
			return nil, err
		}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}

	if !opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &DefaultClient{
		httpClient: client,
		opts:       opts,
	}, nil
}

// configureProxy routes the transport through an HTTP(S) or SOCKS5 proxy.
func configureProxy(transport *http.Transport, rawURL string) error {
	proxyURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}
	if proxyURL.Scheme == "" || proxyURL.Host == "" {
		return fmt.Errorf("invalid proxy URL: missing scheme or host")
	}

	switch proxyURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			auth = &proxy.Auth{User: proxyURL.User.Username()}
			auth.Password, _ = proxyURL.User.Password()
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("socks5 proxy: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return fmt.Errorf("unsupported proxy scheme %q (supported: http, https, socks5)", proxyURL.Scheme)
	}
	return nil
}

// Do sends an HTTP request and returns the response. It applies timing
// measurement, the shared User-Agent, custom headers and an optional
// redirect override. Bodies are truncated at MaxBodySize; HEAD responses
// carry an empty body.
func (c *DefaultClient) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if httpReq.Header.Get("User-Agent") == "" {
		if c.opts.RandomUserAgent {
			httpReq.Header.Set("User-Agent", RandomUserAgent())
		} else {
			httpReq.Header.Set("User-Agent", c.opts.UserAgent)
		}
	}

	// A redirect override uses a shallow copy so the shared transport
	// (and its connection pool) is reused.
	httpClient := c.httpClient
	if req.FollowRedirects != nil {
		cc := *c.httpClient
		if *req.FollowRedirects {
			cc.CheckRedirect = nil
		} else {
			cc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			}
		}
		httpClient = &cc
	}

	start := time.Now()
	httpResp, err := httpClient.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		c.record(duration, true)
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxBodySize))
	if err != nil {
		c.record(duration, true)
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.record(duration, false)

	return &Response{
		StatusCode:    httpResp.StatusCode,
		Headers:       httpResp.Header,
		Body:          body,
		ContentLength: httpResp.ContentLength,
		Duration:      duration,
		URL:           httpResp.Request.URL.String(),
		Protocol:      fmt.Sprintf("HTTP/%d.%d", httpResp.ProtoMajor, httpResp.ProtoMinor),
	}, nil
}

func (c *DefaultClient) record(d time.Duration, failed bool) {
	c.mu.Lock()
	c.totalRequests++
	c.totalDurationNs += d.Nanoseconds()
	if failed {
		c.failedRequests++
	}
	c.mu.Unlock()
}

// Stats returns aggregate transport statistics.
func (c *DefaultClient) Stats() *TransportStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &TransportStats{
		TotalRequests:  c.totalRequests,
		FailedRequests: c.failedRequests,
		TotalDuration:  time.Duration(c.totalDurationNs),
	}
	if c.totalRequests > 0 {
		stats.AvgDuration = time.Duration(c.totalDurationNs / c.totalRequests)
	}
	return stats
}
