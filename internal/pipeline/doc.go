// Package pipeline runs crawl jobs through a sequence of steps.
//
// A job is one root URL with the spider configured for it. The pipeline
// crawls the root (CrawlStep) and, when the archive is enabled, stores the
// result (ArchiveStep). Each step receives the Run produced by the previous
// steps.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
//
// BatchProcessor processes several jobs with bounded concurrency using
// errgroup and returns the runs in input order.
package pipeline
