package crawler

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/sitecrawl/internal/model"
)

// DefaultUserAgent is the User-Agent header sent when none is configured.
const DefaultUserAgent = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"

// DefaultMaxBodySize is the default limit for response bodies (10MB).
const DefaultMaxBodySize int64 = 10 * 1024 * 1024

// HTTPFetcher fetches pages with HTTP GET.
// It follows redirects as configured on the client and reports the final URL.
type HTTPFetcher struct {
	// client performs the requests. Timeouts, proxies and redirect policy are
	// configured on it.
	client *http.Client

	// userAgent is the User-Agent header to use.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per page.
// Larger bodies are truncated, not rejected.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates a fetcher that uses client.
// A nil client is replaced by one with a 30 second timeout.
//
// Design decision: We require an external client because:
//  1. Proxy, cookie and header configuration is handled by the transport package
//  2. Allows for different configurations in tests
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch retrieves pageURL. Only a 2xx final response is a success; every
// failure is returned as a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: model.ErrorKindOther, Message: "invalid request", Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPStatusError(resp.StatusCode, resp.Status)
	}

	out := &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	var body io.Reader = io.LimitReader(resp.Body, f.maxBodySize)
	if out.IsHTML() {
		// Link extraction works on UTF-8. If the declared charset is unknown
		// the body is read as is.
		if decoded, err := charset.NewReader(body, out.ContentType); err == nil {
			body = decoded
		}
	}

	out.Body, err = io.ReadAll(body)
	if err != nil {
		fe := classifyError(err)
		fe.Message = fmt.Sprintf("reading body: %s", fe.Message)
		return nil, fe
	}

	return out, nil
}

// classifyError maps a transport error onto a FetchError kind.
//
// Classification order matters: a dial that times out is both a *net.OpError
// and a timeout, and is reported as a timeout.
func classifyError(err error) *FetchError {
	cause := err
	var ue *url.Error
	if errors.As(err, &ue) {
		cause = ue.Err
	}

	switch {
	case isTimeout(err):
		return &FetchError{Kind: model.ErrorKindTimeout, Message: "request timed out", Err: cause}
	case isConnectionError(err):
		return &FetchError{Kind: model.ErrorKindConnectionFailed, Message: "connection failed", Err: cause}
	default:
		return &FetchError{Kind: model.ErrorKindOther, Message: "request failed", Err: cause}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnectionError(err error) bool {
	var (
		opErr       *net.OpError
		dnsErr      *net.DNSError
		addrErr     *net.AddrError
		recordErr   tls.RecordHeaderError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)

	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &addrErr):
		return true
	case errors.As(err, &recordErr), errors.As(err, &certErr):
		return true
	case errors.As(err, &unknownAuth), errors.As(err, &hostnameErr), errors.As(err, &invalidCert):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	default:
		return false
	}
}
