// Package transport provides the HTTP transport abstraction layer used by
// every probe the scanner sends.
package transport

// Request represents an HTTP request to be sent by the transport client.
type Request struct {
	// Method is the HTTP method (GET or HEAD). Empty means GET.
	Method string

	// URL is the target URL.
	URL string

	// Headers contains custom HTTP headers to include.
	Headers map[string]string

	// FollowRedirects overrides the client-level redirect setting
	// for this specific request. nil means use the client default.
	FollowRedirects *bool
}

// Get returns a GET request for rawURL.
func Get(rawURL string) *Request {
	return &Request{Method: "GET", URL: rawURL}
}

// Head returns a HEAD request for rawURL.
func Head(rawURL string) *Request {
	return &Request{Method: "HEAD", URL: rawURL}
}
