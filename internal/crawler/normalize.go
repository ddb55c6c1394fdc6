package crawler

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// Normalize resolves raw against base and returns the canonical form used for
// deduplication. A nil base requires raw to be absolute.
//
// The canonical form has:
//   - a lowercase http or https scheme (other schemes are rejected)
//   - a lowercase, punycode-encoded host without the scheme's default port
//   - no fragment
//   - "/" instead of an empty path, and no "." or ".." segments
//
// Every failure wraps ErrInvalidURL.
func Normalize(raw string, base *url.URL) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidURL)
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if base == nil {
		base = &url.URL{}
	}
	// ResolveReference returns a copy and removes dot segments, for absolute
	// references as well as relative ones.
	u := base.ResolveReference(ref)

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Opaque != "" {
		return nil, fmt.Errorf("%w: opaque URL %q", ErrInvalidURL, raw)
	}

	host, err := normalizeHost(u)
	if err != nil {
		return nil, err
	}
	u.Host = host

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false

	return u, nil
}

// NormalizeString is Normalize for callers that only need the string form.
func NormalizeString(raw string, base *url.URL) (string, error) {
	u, err := Normalize(raw, base)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// normalizeHost lowercases the host, converts internationalized names to
// their ASCII form and drops the default port for the scheme.
func normalizeHost(u *url.URL) (string, error) {
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	ipv6 := strings.Contains(hostname, ":")
	if !ipv6 {
		ascii, err := idna.Punycode.ToASCII(hostname)
		if err != nil {
			return "", fmt.Errorf("%w: host %q: %v", ErrInvalidURL, hostname, err)
		}
		hostname = ascii
	} else {
		hostname = "[" + hostname + "]"
	}

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port == "" {
		return hostname, nil
	}
	return hostname + ":" + port, nil
}

// SameDomain reports whether candidate has exactly the same host as root.
// Both URLs are expected to be normalized. The port is part of the host, so
// http://example.com:8080 and http://example.com are different domains.
func SameDomain(candidate, root *url.URL) bool {
	return candidate.Host == root.Host
}

// Scope selects how much of the web around the root counts as "same domain".
//
// Design decision: Whether subdomains belong to the root's domain is a
// policy question with no universally right answer, so it is an explicit
// setting. The default is the strictest option.
type Scope int

const (
	// ScopeHost accepts only URLs whose host equals the root's host.
	ScopeHost Scope = iota

	// ScopeSubdomains also accepts any subdomain of the root's hostname,
	// e.g. blog.example.com for a root of example.com. Ports are ignored.
	ScopeSubdomains

	// ScopeSite accepts any host under the same registrable domain (eTLD+1),
	// e.g. www.example.co.uk and shop.example.co.uk. Ports are ignored.
	ScopeSite
)

// String returns the configuration name of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeHost:
		return "host"
	case ScopeSubdomains:
		return "subdomains"
	case ScopeSite:
		return "site"
	default:
		return "unknown"
	}
}

// ParseScope converts a configuration name into a Scope.
// The empty string selects ScopeHost.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "host":
		return ScopeHost, nil
	case "subdomains":
		return ScopeSubdomains, nil
	case "site":
		return ScopeSite, nil
	default:
		return ScopeHost, fmt.Errorf("unknown scope %q (want host, subdomains or site)", s)
	}
}

// Matcher decides domain membership relative to a fixed root.
type Matcher struct {
	root     *url.URL
	scope    Scope
	rootSite string
}

// NewMatcher creates a Matcher for the given normalized root URL.
func NewMatcher(root *url.URL, scope Scope) *Matcher {
	m := &Matcher{root: root, scope: scope}
	if scope == ScopeSite {
		m.rootSite = registrableDomain(root.Hostname())
	}
	return m
}

// Match reports whether candidate is inside the matcher's scope.
func (m *Matcher) Match(candidate *url.URL) bool {
	switch m.scope {
	case ScopeSubdomains:
		host := candidate.Hostname()
		rootHost := m.root.Hostname()
		return host == rootHost || strings.HasSuffix(host, "."+rootHost)
	case ScopeSite:
		return registrableDomain(candidate.Hostname()) == m.rootSite
	default:
		return SameDomain(candidate, m.root)
	}
}

// registrableDomain returns the eTLD+1 of host, or host itself when it has
// none (IP addresses, single-label names such as localhost).
func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
