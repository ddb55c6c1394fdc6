package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultTimeout bounds one request, redirects included.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRedirects is the number of redirects followed per request.
	DefaultMaxRedirects = 10

	// checkProxyTimeout is the timeout for the SOCKS5 handshake in CheckProxy.
	checkProxyTimeout = 2 * time.Second
)

// Options configures the HTTP client returned by NewHTTPClient.
type Options struct {
	// Timeout bounds each request. 0 means DefaultTimeout.
	Timeout time.Duration

	// ProxyAddress routes connections through a SOCKS5 proxy in "host:port"
	// format. Empty means direct connections.
	ProxyAddress string

	// Host is the "host[:port]" that Cookie and Headers belong to. They are
	// only sent to requests for this host, so a redirect to another host
	// never carries them. Empty means they are never sent.
	Host string

	// Cookie is sent verbatim in the Cookie header of requests to Host.
	Cookie string

	// Headers are set on requests to Host, replacing existing values.
	Headers map[string]string

	// MaxRedirects caps the redirects per request. 0 means DefaultMaxRedirects.
	MaxRedirects int
}

// NewHTTPClient creates the HTTP client used for crawling.
//
// Design decisions:
//   - TLS certificates are verified; a site with a broken certificate is a
//     connection failure, not a page.
//   - The cookie jar uses the public suffix list so that a site cannot set
//     cookies for a whole TLD.
//   - Exceeding the redirect limit is an error rather than returning the last
//     redirect response, so that a loop is reported instead of a 3xx page.
func NewHTTPClient(opts Options) (*http.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}

	dialer := &net.Dialer{
		Timeout:   opts.Timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if opts.ProxyAddress != "" {
		if !isValidProxyAddress(opts.ProxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, opts.ProxyAddress)
		}
		// No auth: the proxy check only negotiates the no-auth method.
		socks, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		cd, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support contexts")
		}
		transport.Proxy = nil
		transport.DialContext = cd.DialContext
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var rt http.RoundTripper = transport
	if opts.Host != "" && (opts.Cookie != "" || len(opts.Headers) > 0) {
		rt = &headerInjectingTransport{
			base:    transport,
			host:    strings.ToLower(opts.Host),
			cookie:  opts.Cookie,
			headers: opts.Headers,
		}
	}

	maxRedirects := opts.MaxRedirects
	return &http.Client{
		Transport: rt,
		Timeout:   opts.Timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
// IPv6 hosts must be bracketed, as in "[::1]:1080".
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// headerInjectingTransport adds the configured cookie and headers to
// requests for host before handing them to base. Redirect hops pass through
// RoundTrip as well, so the host is checked on every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	host    string
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
// The request is cloned because a RoundTripper must not modify its input.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if requestHost(req.URL) != t.host {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())

	if t.cookie != "" {
		if existing := req.Header.Get("Cookie"); existing != "" {
			req.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			req.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	return t.base.RoundTrip(req)
}

// requestHost returns the lowercase "host[:port]" of u without the default
// port of its scheme.
func requestHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if port == "" || (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		return host
	}
	return host + ":" + port
}

// SOCKS5 protocol constants
const (
	socks5Version  = 0x05
	socks5AuthNone = 0x00
)

// CheckProxy verifies that a SOCKS5 proxy is listening at address and accepts
// clients without authentication. Only the method negotiation is performed;
// no connection through the proxy is opened.
func CheckProxy(ctx context.Context, address string) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// version + one method + "no authentication"
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	// version + selected method
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	// 0xFF means the proxy wants authentication, which is not supported.
	if resp[0] != socks5Version || resp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}
