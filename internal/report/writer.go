package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.CrawlResult) (int, error)
}

// RunsWriter outputs a listing of archived crawl runs.
type RunsWriter interface {
	WriteRuns(runs []model.RunSummary) (int, error)
}

// FormatWriter is implemented by every writer New can return.
type FormatWriter interface {
	Writer
	RunsWriter
}

// Report formats understood by New.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Options configures the writer returned by New.
type Options struct {
	// ShowErrors adds the failed requests to the text report.
	// JSON and Markdown reports always contain them.
	ShowErrors bool

	// Pretty indents JSON output.
	Pretty bool
}

// New returns the Writer for format, writing to output.
// Format names are matched case-insensitively.
func New(format string, output io.Writer, opts Options) (FormatWriter, error) {
	switch strings.ToLower(format) {
	case FormatText, "":
		return NewTextWriter(output, WithErrors(opts.ShowErrors)), nil
	case FormatJSON:
		var jsonOpts []JSONWriterOption
		if opts.Pretty {
			jsonOpts = append(jsonOpts, WithPrettyPrint())
		}
		return NewJSONWriter(output, jsonOpts...), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
