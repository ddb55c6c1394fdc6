// Package crawler provides the breadth-first site traversal engine.
//
// # Architecture
//
// The crawler package is designed around the Spider type, which owns one
// traversal at a time. A traversal seeds a FIFO frontier with the root URL,
// then repeatedly pops an entry, fetches it and schedules the links found on
// the page one level deeper. Deduplication happens when a link is scheduled,
// so no URL is ever fetched twice within a run, and failures are recorded
// without stopping the traversal.
//
// Fetching and link extraction sit behind the Fetcher and LinkExtractor
// interfaces. HTTPFetcher and HTMLExtractor are the production
// implementations; tests drive the Spider with an in-memory site.
//
// # Components
//
//   - Spider: the traversal engine with Idle, Running and Done states
//   - Normalize and Matcher: canonical URLs and same-domain decisions
//   - Registry: every URL scheduled during a run
//   - Accumulator: visited URLs and failed fetches in the order they happened
//   - HTTPFetcher: GET over an *http.Client with failure classification
//   - HTMLExtractor: <a href> and <area href> in document order
//   - PathFilter: optional ignore/follow glob patterns
//
// # Depth
//
// The root is at depth 0. A page at depth == maxDepth is fetched but its
// links are not followed, so maxDepth 0 fetches exactly one page.
//
// # Usage
//
//	spider := crawler.NewSpider(
//		crawler.NewHTTPFetcher(client),
//		crawler.NewHTMLExtractor(),
//		crawler.WithScope(crawler.ScopeHost),
//	)
//	result, err := spider.Crawl(ctx, "https://example.com", 2)
package crawler
