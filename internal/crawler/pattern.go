package crawler

import (
	"net/url"
	"path"
	"strings"
)

// PathFilter restricts which same-domain URLs the spider schedules, based on
// glob patterns over the URL path.
//
// Logic:
//  1. If the path matches any ignore pattern, the URL is skipped
//  2. If follow patterns are set and the path matches none, the URL is skipped
//  3. Otherwise the URL is scheduled
//
// The root URL is never filtered.
type PathFilter struct {
	ignore []string
	follow []string
}

// NewPathFilter creates a filter. Both slices may be nil.
func NewPathFilter(ignore, follow []string) *PathFilter {
	return &PathFilter{ignore: ignore, follow: follow}
}

// Allow reports whether u passes the filter.
func (f *PathFilter) Allow(u *url.URL) bool {
	if f == nil {
		return true
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range f.ignore {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(f.follow) == 0 {
		return true
	}
	for _, pattern := range f.follow {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// empty reports whether the filter has no patterns at all.
func (f *PathFilter) empty() bool {
	return f == nil || (len(f.ignore) == 0 && len(f.follow) == 0)
}

// matchPattern checks if a URL path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match everything below a directory
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/users" and "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[") {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}

	// URL paths always use "/", so path.Match rather than filepath.Match.
	if matched, err := path.Match(pattern, p); err == nil && matched {
		return true
	}

	// Patterns without a slash are matched against the last segment.
	if strings.ContainsAny(pattern, "*?") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(p)); err == nil && matched {
			return true
		}
	}

	return false
}
