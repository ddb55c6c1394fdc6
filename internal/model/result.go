package model

import (
	"fmt"
	"time"
)

// CrawlError records one failed fetch attempt.
// A URL that produced a CrawlError is never retried and never appears in
// CrawlResult.Visited.
type CrawlError struct {
	// URL is the normalized URL whose fetch failed.
	URL string `json:"url"`

	// Kind classifies the failure.
	Kind ErrorKind `json:"kind"`

	// StatusCode is the HTTP status for ErrorKindHTTPStatus, zero otherwise.
	StatusCode int `json:"status_code,omitempty"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`

	// Depth is the number of hops from the root at which the URL was scheduled.
	Depth int `json:"depth"`
}

// Error implements the error interface so a CrawlError can be logged or
// returned where an error is expected.
func (e CrawlError) Error() string {
	if e.Kind == ErrorKindHTTPStatus && e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s %d: %s", e.URL, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.URL, e.Kind, e.Message)
}

// CrawlResult is the terminal snapshot of a traversal.
// It is immutable once the crawl has finished and is owned by the caller.
//
// Design decision: Visited holds plain URL strings rather than richer page
// records because the ordering of visits is the product of the crawl. Any
// per-page data would have to be buffered for the whole run, which is not
// needed for reporting.
type CrawlResult struct {
	// Root is the normalized root URL the crawl started from.
	Root string `json:"root"`

	// MaxDepth is the effective depth limit used for the run.
	MaxDepth int `json:"max_depth"`

	// Visited lists every successfully fetched URL in breadth-first order.
	Visited []string `json:"visited"`

	// Errors lists every failed fetch attempt in the order it happened.
	Errors []CrawlError `json:"errors"`

	// StartedAt is when the traversal started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the traversal reached the Done state.
	// Zero for snapshots taken while the crawl is still running.
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Cancelled is true when the run was stopped by its context before the
	// frontier was exhausted.
	Cancelled bool `json:"cancelled"`

	// Truncated is true when the run stopped because the page cap was reached.
	Truncated bool `json:"truncated"`
}

// NewCrawlResult creates an empty result for the given root and depth limit.
// Slices are initialized so that JSON output contains [] rather than null.
func NewCrawlResult(root string, maxDepth int) *CrawlResult {
	return &CrawlResult{
		Root:     root,
		MaxDepth: maxDepth,
		Visited:  make([]string, 0),
		Errors:   make([]CrawlError, 0),
	}
}

// Attempts returns the total number of fetch attempts made.
func (r *CrawlResult) Attempts() int {
	return len(r.Visited) + len(r.Errors)
}

// Complete reports whether the frontier was exhausted.
func (r *CrawlResult) Complete() bool {
	return !r.Cancelled && !r.Truncated
}

// Duration returns how long the crawl took.
// It returns zero if the crawl has not finished.
func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrorCounts returns the number of errors per kind.
func (r *CrawlResult) ErrorCounts() map[ErrorKind]int {
	counts := make(map[ErrorKind]int)
	for _, e := range r.Errors {
		counts[e.Kind]++
	}
	return counts
}

// Status returns a short description of how the run ended.
func (r *CrawlResult) Status() string {
	switch {
	case r.Cancelled:
		return "cancelled (partial results)"
	case r.Truncated:
		return "page limit reached (partial results)"
	default:
		return "complete"
	}
}
