// Package model defines the data structures shared by the crawler, the report
// writers and the results archive.
//
// This package contains the following main types:
//   - CrawlResult: The terminal snapshot of one traversal
//   - CrawlError: A single failed fetch attempt
//   - ErrorKind: The classification of a failed fetch
//   - RunSummary: An archived crawl as listed by the history command
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler produces these values while the report and
// database packages consume them, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
