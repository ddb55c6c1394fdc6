package crawler

import (
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Accumulator collects the outcome of every fetch attempt of one crawl.
// It is append-only; Snapshot returns copies so the caller can never mutate
// what the accumulator holds.
type Accumulator struct {
	root      string
	maxDepth  int
	startedAt time.Time
	visited   []string
	errors    []model.CrawlError
}

// NewAccumulator creates an accumulator for a crawl of root.
func NewAccumulator(root string, maxDepth int, startedAt time.Time) *Accumulator {
	return &Accumulator{
		root:      root,
		maxDepth:  maxDepth,
		startedAt: startedAt,
		visited:   make([]string, 0),
		errors:    make([]model.CrawlError, 0),
	}
}

// RecordSuccess appends a successfully fetched URL.
func (a *Accumulator) RecordSuccess(u string) {
	a.visited = append(a.visited, u)
}

// RecordError appends a failed fetch attempt.
func (a *Accumulator) RecordError(e model.CrawlError) {
	a.errors = append(a.errors, e)
}

// Attempts returns the number of fetch attempts recorded so far.
func (a *Accumulator) Attempts() int {
	return len(a.visited) + len(a.errors)
}

// Snapshot returns the accumulated result.
// finishedAt may be zero for a snapshot of a crawl that is still running.
func (a *Accumulator) Snapshot(finishedAt time.Time, cancelled, truncated bool) *model.CrawlResult {
	r := model.NewCrawlResult(a.root, a.maxDepth)
	r.Visited = append(r.Visited, a.visited...)
	r.Errors = append(r.Errors, a.errors...)
	r.StartedAt = a.startedAt
	r.FinishedAt = finishedAt
	r.Cancelled = cancelled
	r.Truncated = truncated
	return r
}
