package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// State is the lifecycle state of a Spider.
type State int

const (
	// StateIdle means no crawl has been started.
	StateIdle State = iota

	// StateRunning means a crawl is in progress.
	StateRunning

	// StateDone means the last crawl has finished. A Done spider can start a
	// new crawl, which begins with empty state.
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// EventKind identifies what happened in an Event.
type EventKind int

const (
	// EventVisited is emitted after a successful fetch.
	EventVisited EventKind = iota

	// EventFailed is emitted after a failed fetch.
	EventFailed
)

// Event describes the outcome of one fetch attempt.
// Events are delivered synchronously on the crawling goroutine, so handlers
// must return quickly.
type Event struct {
	// Kind is the outcome of the attempt.
	Kind EventKind

	// URL is the normalized URL that was fetched.
	URL string

	// Depth is the number of hops from the root.
	Depth int

	// Err is set for EventFailed.
	Err *model.CrawlError

	// Attempts is the number of fetch attempts made so far, this one included.
	Attempts int

	// Pending is the number of URLs still waiting in the frontier.
	Pending int
}

// Spider crawls the pages of one site breadth-first.
// It owns a FIFO frontier, a registry of scheduled URLs and an accumulator
// of outcomes, all of which are created fresh for every call to Crawl.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. "Spider" is the traditional term for web crawlers
//  2. Distinguishes the component from the package name
//  3. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
//
// A traversal is single-threaded: at most one fetch is in flight. The mutex
// only makes State and Snapshot safe to call from other goroutines.
type Spider struct {
	// fetcher retrieves pages.
	fetcher Fetcher

	// extractor finds links in fetched HTML.
	extractor LinkExtractor

	// scope decides which hosts count as the root's domain.
	scope Scope

	// maxPages caps the number of fetch attempts. 0 means unlimited.
	maxPages int

	// filter applies ignore and follow path patterns.
	filter *PathFilter

	// onEvent observes every fetch attempt.
	onEvent func(Event)

	// logger receives debug and warning messages.
	logger *slog.Logger

	// mutex protects state, acc and last.
	mutex sync.Mutex
	state State
	acc   *Accumulator
	last  *model.CrawlResult
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithScope sets how same-domain membership is decided. The default is ScopeHost.
func WithScope(scope Scope) SpiderOption {
	return func(s *Spider) {
		s.scope = scope
	}
}

// WithMaxPages caps the number of fetch attempts per crawl.
// When the cap is reached the crawl stops with a truncated result.
// 0 (the default) means unlimited.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
// URLs matching any of these patterns will not be crawled.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.filter = NewPathFilter(patterns, s.filterFollow())
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
// Empty slice means all URLs are allowed (default behavior).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.filter = NewPathFilter(s.filterIgnore(), patterns)
	}
}

// WithEventHandler registers a function called after every fetch attempt.
func WithEventHandler(fn func(Event)) SpiderOption {
	return func(s *Spider) {
		s.onEvent = fn
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider that fetches with fetcher and finds links with
// extractor.
//
// Design decision: We take the fetch and extract steps as interfaces because
// the traversal rules (ordering, scoping, depth, failure isolation) are the
// part worth testing, and an in-memory site graph exercises them without any
// network.
func NewSpider(fetcher Fetcher, extractor LinkExtractor, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:   fetcher,
		extractor: extractor,
		scope:     ScopeHost,
		logger:    slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl traverses the site at rootURL breadth-first and returns every URL
// visited plus every fetch that failed.
//
// maxDepth is the number of hops to follow from the root: 0 fetches only the
// root, 1 also fetches the pages it links to, and so on.
//
// The returned error is non-nil only for invalid input, in which case nothing
// was fetched. Individual fetch failures are recorded in the result. When ctx
// is cancelled the crawl stops before the next fetch and the partial result
// is returned with Cancelled set.
func (s *Spider) Crawl(ctx context.Context, rootURL string, maxDepth int) (*model.CrawlResult, error) {
	if s.fetcher == nil || s.extractor == nil {
		return nil, ErrNoFetcher
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeDepth, maxDepth)
	}
	root, err := Normalize(rootURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidRootURL, rootURL, err)
	}

	acc := NewAccumulator(root.String(), maxDepth, time.Now())
	if err := s.start(acc); err != nil {
		return nil, err
	}

	if !s.filter.empty() {
		s.logger.Debug("path filter active",
			"root", root.String(),
			"ignore", s.filter.ignore,
			"follow", s.filter.follow,
		)
	}

	t := &traversal{
		spider:   s,
		root:     root,
		maxDepth: maxDepth,
		matcher:  NewMatcher(root, s.scope),
		registry: NewRegistry(),
		queue:    newFrontier(),
		acc:      acc,

		redirected: make(map[string]struct{}),
	}
	cancelled, truncated := t.run(ctx)

	result := acc.Snapshot(time.Now(), cancelled, truncated)
	s.finish(result)

	s.logger.Debug("crawl finished",
		"root", result.Root,
		"visited", len(result.Visited),
		"errors", len(result.Errors),
		"status", result.Status(),
	)

	return result, nil
}

// State returns the lifecycle state of the spider.
func (s *Spider) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Snapshot returns the progress of the current crawl, or the result of the
// last one once it is done. It returns nil before the first crawl.
// A snapshot of a running crawl has a zero FinishedAt.
func (s *Spider) Snapshot() *model.CrawlResult {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch {
	case s.state == StateRunning && s.acc != nil:
		return s.acc.Snapshot(time.Time{}, false, false)
	case s.last != nil:
		cp := *s.last
		cp.Visited = slices.Clone(s.last.Visited)
		cp.Errors = slices.Clone(s.last.Errors)
		return &cp
	default:
		return nil
	}
}

func (s *Spider) start(acc *Accumulator) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.state == StateRunning {
		return ErrSpiderRunning
	}
	s.state = StateRunning
	s.acc = acc
	s.last = nil
	return nil
}

func (s *Spider) finish(result *model.CrawlResult) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state = StateDone
	s.acc = nil
	s.last = result
}

func (s *Spider) filterIgnore() []string {
	if s.filter == nil {
		return nil
	}
	return s.filter.ignore
}

func (s *Spider) filterFollow() []string {
	if s.filter == nil {
		return nil
	}
	return s.filter.follow
}

// traversal holds the state of one crawl.
type traversal struct {
	spider   *Spider
	root     *url.URL
	maxDepth int
	matcher  *Matcher
	registry *Registry
	queue    *frontier
	acc      *Accumulator

	// redirected holds in-scope redirect targets whose content has been
	// fetched under another URL. Queued entries for them are dropped.
	redirected map[string]struct{}
}

// run processes the frontier until it is empty or the crawl is stopped early.
func (t *traversal) run(ctx context.Context) (cancelled, truncated bool) {
	rootKey := t.root.String()
	t.registry.TryRegister(rootKey)
	t.queue.push(entry{url: rootKey, depth: 0})

	for {
		if ctx.Err() != nil {
			return true, false
		}
		if t.queue.len() == 0 {
			return false, false
		}
		if t.spider.maxPages > 0 && t.acc.Attempts() >= t.spider.maxPages {
			return false, true
		}

		e, _ := t.queue.pop()
		if _, ok := t.redirected[e.url]; ok {
			t.spider.logger.Debug("already fetched through a redirect", "url", e.url, "depth", e.depth)
			continue
		}
		if interrupted := t.visit(ctx, e); interrupted {
			return true, false
		}
	}
}

// visit fetches one entry and schedules its children.
// It reports true when the fetch was interrupted by cancellation of ctx, in
// which case nothing is recorded for the entry.
func (t *traversal) visit(ctx context.Context, e entry) bool {
	s := t.spider

	resp, err := s.fetcher.Fetch(ctx, e.url)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("fetch interrupted", "url", e.url, "error", err)
			return true
		}
		ce := toCrawlError(e.url, e.depth, err)
		s.record(func() { t.acc.RecordError(ce) })
		s.logger.Debug("fetch failed", "url", e.url, "depth", e.depth, "kind", ce.Kind.String(), "error", ce.Message)
		t.emit(Event{Kind: EventFailed, URL: e.url, Depth: e.depth, Err: &ce})
		return false
	}

	s.record(func() { t.acc.RecordSuccess(e.url) })
	s.logger.Debug("visited", "url", e.url, "depth", e.depth, "status", resp.StatusCode)

	base, _ := url.Parse(e.url)
	if resp.URL != "" && resp.URL != e.url {
		if final, err := Normalize(resp.URL, nil); err == nil {
			base = final
			// The redirect target has now been fetched as well.
			if t.matcher.Match(final) {
				key := final.String()
				t.registry.TryRegister(key)
				t.redirected[key] = struct{}{}
			}
		}
	}

	if e.depth < t.maxDepth && resp.IsHTML() {
		t.enqueueLinks(resp, base, e.depth+1)
	}

	t.emit(Event{Kind: EventVisited, URL: e.url, Depth: e.depth})
	return false
}

// enqueueLinks schedules every new in-scope link found in resp at depth.
func (t *traversal) enqueueLinks(resp *Response, base *url.URL, depth int) {
	s := t.spider

	links, err := s.extractor.ExtractLinks(resp.Body, base)
	if err != nil {
		s.logger.Warn("link extraction failed", "url", base.String(), "error", err)
	}

	for _, raw := range links {
		u, err := Normalize(raw, base)
		if err != nil {
			s.logger.Debug("skipping link", "href", raw, "error", err)
			continue
		}
		if !t.matcher.Match(u) {
			continue
		}
		if !s.filter.Allow(u) {
			s.logger.Debug("link filtered by pattern", "url", u.String())
			continue
		}
		key := u.String()
		if t.registry.TryRegister(key) {
			t.queue.push(entry{url: key, depth: depth})
		}
	}
}

func (t *traversal) emit(ev Event) {
	if t.spider.onEvent == nil {
		return
	}
	ev.Attempts = t.acc.Attempts()
	ev.Pending = t.queue.len()
	t.spider.onEvent(ev)
}

// record runs fn with the spider's mutex held so that Snapshot never sees a
// half-appended slice.
func (s *Spider) record(fn func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fn()
}
