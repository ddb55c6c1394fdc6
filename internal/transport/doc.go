// Package transport builds the HTTP client used to fetch pages.
//
// The client follows redirects up to a fixed limit, keeps cookies in a jar
// that respects the public suffix list, and can route every connection
// through a SOCKS5 proxy. Per-site cookies and headers from the
// configuration file are added to each request by a wrapping RoundTripper.
//
// # Proxy check
//
// CheckProxy performs the SOCKS5 method negotiation against the configured
// proxy so that the CLI can fail before crawling when the proxy is missing
// or is an HTTP proxy.
package transport
