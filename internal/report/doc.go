// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - TextWriter: one visited URL per line, optionally followed by the failed requests
//   - JSONWriter: the full crawl result for tool integration
//   - MarkdownWriter: tables, an outcome chart and alerts for sharing
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) to follow the single responsibility
// principle. This allows adding new output formats without modifying
// the core data structures.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output. Each writer can also
// list archived runs for the history command.
package report
