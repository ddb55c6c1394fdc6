package crawler

import (
	"context"
	"net/url"
	"strings"
)

// Fetcher retrieves a single URL.
// Implementations must be safe to call repeatedly and must not carry state
// from one call into an unrelated one.
//
// A failed fetch returns a non-nil error, preferably a *FetchError so the
// failure can be classified. A successful fetch means a 2xx final response.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Response, error)
}

// LinkExtractor returns the raw href values found in a document, in document
// order. The values may be relative; the spider resolves them against base.
type LinkExtractor interface {
	ExtractLinks(body []byte, base *url.URL) ([]string, error)
}

// Response is a successful fetch result.
type Response struct {
	// URL is the final URL after redirects. Empty means the requested URL.
	URL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the value of the Content-Type header.
	ContentType string

	// Body is the (possibly truncated) response body.
	Body []byte
}

// IsHTML reports whether the response should be searched for links.
// An empty content type is treated as HTML, which is what browsers sniff
// most untyped pages to.
func (r *Response) IsHTML() bool {
	if r.ContentType == "" {
		return true
	}
	ct := strings.ToLower(r.ContentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, pageURL string) (*Response, error)

// Fetch calls f(ctx, pageURL).
func (f FetcherFunc) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	return f(ctx, pageURL)
}
